package snippets

import (
	"sort"
	"strings"
)

const (
	// DefaultPageLimit applies when a caller omits the page size.
	DefaultPageLimit = 50
	// MaxPageLimit caps the page size regardless of what the caller asks for.
	MaxPageLimit = 100
)

// Query describes a search: every field is optional, absent fields filter
// nothing.
type Query struct {
	Term         string
	Language     string
	Tags         []string
	FavoriteOnly bool
	Offset       int
	Limit        int
}

// PageMeta reports pagination bookkeeping alongside a result page.
type PageMeta struct {
	Total   int  `json:"total"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

// SearchResult is one page of ranked snippets.
type SearchResult struct {
	Data []Snippet `json:"data"`
	Meta PageMeta  `json:"meta"`
}

// Search filters and ranks a point-in-time snapshot of the store. It is
// read-only: use counts are not touched.
func (s *Store) Search(query Query) SearchResult {
	matched := make([]Snippet, 0)
	for _, candidate := range s.Snapshot() {
		if matchesQuery(candidate, query) {
			matched = append(matched, candidate)
		}
	}

	rankSnippets(matched)
	return paginate(matched, query.Offset, query.Limit)
}

// ListFilter narrows a plain listing; unlike Search it ranks nothing and
// orders by creation time only.
type ListFilter struct {
	Language string
	Tags     []string
	Offset   int
	Limit    int
}

// List returns snippets ordered most-recently-created first, optionally
// narrowed by language and tags. No use-count side effect.
func (s *Store) List(filter ListFilter) SearchResult {
	matched := make([]Snippet, 0)
	for _, candidate := range s.Snapshot() {
		if filter.Language != "" && !strings.EqualFold(candidate.Language, filter.Language) {
			continue
		}
		if len(filter.Tags) > 0 && !hasAnyTag(candidate, filter.Tags) {
			continue
		}
		matched = append(matched, candidate)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	return paginate(matched, filter.Offset, filter.Limit)
}

func matchesQuery(candidate Snippet, query Query) bool {
	if term := strings.ToLower(strings.TrimSpace(query.Term)); term != "" && !matchesTerm(candidate, term) {
		return false
	}
	if query.Language != "" && !strings.EqualFold(candidate.Language, query.Language) {
		return false
	}
	if len(query.Tags) > 0 && !hasAnyTag(candidate, query.Tags) {
		return false
	}
	if query.FavoriteOnly && !candidate.IsFavorited {
		return false
	}
	return true
}

func matchesTerm(candidate Snippet, term string) bool {
	if strings.Contains(strings.ToLower(candidate.Title), term) {
		return true
	}
	if strings.Contains(strings.ToLower(candidate.Content), term) {
		return true
	}
	if strings.Contains(strings.ToLower(candidate.Description), term) {
		return true
	}
	for _, tag := range candidate.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

func hasAnyTag(candidate Snippet, tags []string) bool {
	for _, tag := range tags {
		if candidate.HasTag(tag) {
			return true
		}
	}
	return false
}

// rankSnippets orders by use count, then quality score, then recency. The
// identifier breaks any remaining tie so the order is fully deterministic.
func rankSnippets(results []Snippet) {
	sort.Slice(results, func(i, j int) bool {
		left, right := results[i], results[j]
		if left.UseCount != right.UseCount {
			return left.UseCount > right.UseCount
		}
		if left.QualityScore != right.QualityScore {
			return left.QualityScore > right.QualityScore
		}
		if !left.CreatedAt.Equal(right.CreatedAt) {
			return left.CreatedAt.After(right.CreatedAt)
		}
		return left.ID < right.ID
	})
}

func paginate(results []Snippet, offset, limit int) SearchResult {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	total := len(results)
	page := []Snippet{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		page = results[offset:end]
	}

	return SearchResult{
		Data: page,
		Meta: PageMeta{
			Total:   total,
			Offset:  offset,
			Limit:   limit,
			HasMore: offset+limit < total,
		},
	}
}
