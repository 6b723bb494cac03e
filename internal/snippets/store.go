package snippets

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StoreConfig bundles the dependencies of a Store. Every field is optional;
// zero values fall back to production defaults.
type StoreConfig struct {
	Clock      func() time.Time
	IDProvider IDProvider
	Scorer     Scorer
	Suggester  TagSuggester
	Logger     *zap.Logger
}

// Store owns the identifier → snippet mapping for one process. All state
// lives in memory: the store starts empty and is discarded at shutdown.
//
// A single mutex serializes every read-modify-write (including the use-count
// increment performed by Get), so concurrent operations on the same
// identifier are never lost. Read paths copy record values under the read
// lock and therefore hand out tear-free snapshots.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Snippet

	clock     func() time.Time
	ids       IDProvider
	scorer    Scorer
	suggester TagSuggester
	logger    *zap.Logger
}

// NewStore constructs an empty Store.
func NewStore(cfg StoreConfig) *Store {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = NewUUIDProvider()
	}
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = HeuristicScorer{}
	}
	suggester := cfg.Suggester
	if suggester == nil {
		suggester = HeuristicTagSuggester{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		records:   make(map[string]*Snippet),
		clock:     clock,
		ids:       ids,
		scorer:    scorer,
		suggester: suggester,
		logger:    logger,
	}
}

// Create validates the input, assigns a fresh identifier, computes the
// quality score, and stores the record. When the caller supplies no tags the
// configured suggester proposes them.
func (s *Store) Create(input CreateInput) (Snippet, error) {
	if err := input.validate(); err != nil {
		return Snippet{}, err
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Snippet{}, fmt.Errorf("assigning snippet id: %w", err)
	}

	content := strings.TrimSpace(input.Content)
	title := strings.TrimSpace(input.Title)
	tags := NormalizeTags(input.Tags)
	description := strings.TrimSpace(input.Description)
	if len(tags) == 0 {
		suggestedTags, suggestedDescription := s.suggester.Suggest(content, title)
		tags = NormalizeTags(suggestedTags)
		if description == "" {
			description = suggestedDescription
		}
	}

	record := &Snippet{
		ID:           id,
		Content:      content,
		Language:     strings.ToLower(strings.TrimSpace(input.Language)),
		Title:        title,
		Tags:         tags,
		Description:  description,
		UseCount:     0,
		QualityScore: clampScore(s.scorer.Score(content)),
		IsFavorited:  false,
		CreatedAt:    s.clock(),
	}

	s.mu.Lock()
	s.records[id] = record
	s.mu.Unlock()

	s.logger.Info("snippet created",
		zap.String("snippet_id", id),
		zap.String("language", record.Language),
	)

	return record.clone(), nil
}

// Get returns the snippet and records the access as a use: the use count is
// incremented and the last-used timestamp set. Reads through search or list
// deliberately do not count as uses.
func (s *Store) Get(id string) (Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return Snippet{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	record.UseCount++
	usedAt := s.clock()
	record.LastUsedAt = &usedAt

	return record.clone(), nil
}

// Update overwrites the fields present in the partial input. Empty fields are
// left unchanged; identifier and creation time are immutable. A changed
// content re-computes the quality score.
func (s *Store) Update(id string, input UpdateInput) (Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return Snippet{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if content := strings.TrimSpace(input.Content); content != "" {
		record.Content = content
		record.QualityScore = clampScore(s.scorer.Score(content))
	}
	if language := strings.ToLower(strings.TrimSpace(input.Language)); language != "" {
		record.Language = language
	}
	if title := strings.TrimSpace(input.Title); title != "" {
		record.Title = title
	}
	if tags := NormalizeTags(input.Tags); len(tags) > 0 {
		record.Tags = tags
	}
	if description := strings.TrimSpace(input.Description); description != "" {
		record.Description = description
	}

	s.logger.Info("snippet updated", zap.String("snippet_id", id))

	return record.clone(), nil
}

// Delete removes the snippet.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.records, id)

	s.logger.Info("snippet deleted", zap.String("snippet_id", id))
	return nil
}

// ToggleFavorite flips the favorite flag and returns the updated record.
func (s *Store) ToggleFavorite(id string) (Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return Snippet{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	record.IsFavorited = !record.IsFavorited

	return record.clone(), nil
}

// Snapshot returns value copies of every record at one instant, with no
// use-count side effect. Ranking and export consume this view.
func (s *Store) Snapshot() []Snippet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]Snippet, 0, len(s.records))
	for _, record := range s.records {
		snapshot = append(snapshot, record.clone())
	}
	return snapshot
}

// Len reports the number of stored snippets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// BulkError records one failed record inside a bulk upsert.
type BulkError struct {
	Index   int    `json:"index"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// BulkUpsert inserts or replaces each record independently: a record carrying
// the identifier of an existing snippet fully replaces it (last writer wins),
// anything else is inserted under a fresh identifier. Per-record validation
// failures are collected and never abort the rest of the batch.
//
// Inputs are expected to be normalized already (see the sync reconciler);
// required-field validation still happens here so no caller can bypass it.
func (s *Store) BulkUpsert(records []Snippet) ([]Snippet, []BulkError) {
	saved := make([]Snippet, 0, len(records))
	var failures []BulkError

	s.mu.Lock()
	defer s.mu.Unlock()

	for index, record := range records {
		if err := s.upsertLocked(&record); err != nil {
			failures = append(failures, BulkError{
				Index:   index,
				Title:   record.Title,
				Message: err.Error(),
			})
			continue
		}
		saved = append(saved, record.clone())
	}

	if len(failures) > 0 {
		s.logger.Warn("bulk upsert completed with failures",
			zap.Int("saved", len(saved)),
			zap.Int("failed", len(failures)),
		)
	}

	return saved, failures
}

func (s *Store) upsertLocked(record *Snippet) error {
	if strings.TrimSpace(record.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if strings.TrimSpace(record.Language) == "" {
		return fmt.Errorf("%w: language is required", ErrValidation)
	}
	if strings.TrimSpace(record.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}

	if record.ID == "" {
		id, err := s.ids.NewID()
		if err != nil {
			return fmt.Errorf("assigning snippet id: %w", err)
		}
		record.ID = id
	}

	stored := record.clone()
	s.records[record.ID] = &stored
	return nil
}
