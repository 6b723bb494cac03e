package snippets

import (
	"fmt"
	"time"
)

// fixedClock returns a clock that advances one second per call, so records
// created in sequence carry strictly increasing timestamps.
func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(time.Second)
		return now
	}
}

type sequentialIDs struct {
	next int
}

func (p *sequentialIDs) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("id-%04d", p.next), nil
}

type staticSuggester struct {
	tags        []string
	description string
}

func (s staticSuggester) Suggest(content, title string) ([]string, string) {
	return s.tags, s.description
}

func newTestStore() *Store {
	return NewStore(StoreConfig{
		Clock:      fixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		IDProvider: &sequentialIDs{},
		Suggester:  staticSuggester{},
	})
}

func mustCreate(store *Store, input CreateInput) Snippet {
	created, err := store.Create(input)
	if err != nil {
		panic(err)
	}
	return created
}
