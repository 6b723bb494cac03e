package snippets

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrValidation indicates that a required snippet field is missing or malformed.
	ErrValidation = errors.New("snippets: validation failed")
	// ErrNotFound indicates that no snippet exists for the requested identifier.
	ErrNotFound = errors.New("snippets: snippet not found")
	// ErrConflict is reserved for duplicate-key semantics; bulk upsert currently
	// resolves identifier collisions by overwrite instead of raising it.
	ErrConflict = errors.New("snippets: conflict")
)

// Snippet is the unit of storage: a code fragment plus its metadata.
type Snippet struct {
	ID           string     `json:"id"`
	Content      string     `json:"content"`
	Language     string     `json:"language"`
	Title        string     `json:"title"`
	Tags         []string   `json:"tags"`
	Description  string     `json:"description,omitempty"`
	UseCount     int64      `json:"useCount"`
	QualityScore float64    `json:"qualityScore"`
	IsFavorited  bool       `json:"isFavorited"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastUsedAt   *time.Time `json:"lastUsedAt,omitempty"`
}

// HasTag reports whether the snippet carries the tag, case-insensitively.
func (s Snippet) HasTag(tag string) bool {
	needle := strings.ToLower(strings.TrimSpace(tag))
	for _, candidate := range s.Tags {
		if strings.ToLower(candidate) == needle {
			return true
		}
	}
	return false
}

// clone returns a value copy with its own tag slice, so callers never alias
// store-owned memory.
func (s Snippet) clone() Snippet {
	copied := s
	copied.Tags = append(make([]string, 0, len(s.Tags)), s.Tags...)
	if s.LastUsedAt != nil {
		lastUsed := *s.LastUsedAt
		copied.LastUsedAt = &lastUsed
	}
	return copied
}

// CreateInput carries the caller-supplied fields for a new snippet.
type CreateInput struct {
	Content     string   `json:"content"`
	Language    string   `json:"language"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if strings.TrimSpace(in.Language) == "" {
		return fmt.Errorf("%w: language is required", ErrValidation)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return nil
}

// UpdateInput carries a partial update. Empty fields mean "leave unchanged";
// there is no way to clear a field through an update.
type UpdateInput struct {
	Content     string   `json:"content"`
	Language    string   `json:"language"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

// NormalizeTags trims every tag, drops blanks, and collapses duplicates
// case-insensitively while preserving first-seen order and casing.
func NormalizeTags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, duplicate := seen[key]; duplicate {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

// SupportedLanguages lists the language identifiers accepted by the upload
// surface. Exposed verbatim through the languages endpoint.
var SupportedLanguages = []string{
	"javascript", "typescript", "python", "java", "cpp", "c", "csharp", "php", "ruby", "go",
	"rust", "swift", "kotlin", "scala", "dart", "lua", "perl", "html", "css", "scss",
	"less", "sql", "bash", "shell", "json", "yaml", "xml", "dockerfile", "powershell",
	"r", "matlab", "julia", "elixir", "clojure", "haskell", "erlang",
}
