package listview

import (
	"context"
	"fmt"
	"sync"

	"github.com/rentease/admin/pkg/models"
)

// Loader fetches the full collection of a page.
type Loader func(ctx context.Context) ([]models.Record, error)

// Store owns the collection of one page and keeps its filtered view current.
// Load, Filter, ApplyPatch and Remove are the only mutators.
//
// Records handed out by the store are shared and must not be modified.
type Store struct {
	mu         sync.RWMutex
	load       Loader
	matcher    Matcher
	collection []models.Record
	view       []models.Record
	criteria   Criteria
	loaded     bool
}

func NewStore(matcher Matcher, load Loader) *Store {
	return &Store{
		load:     load,
		matcher:  matcher,
		criteria: Criteria{Status: StatusAll},
	}
}

// Load replaces the collection with a fresh fetch. On error the previous
// collection is kept.
func (s *Store) Load(ctx context.Context) error {
	records, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection = records
	s.loaded = true
	s.recompute()
	return nil
}

// Filter sets the query and status filter and returns the new view.
func (s *Store) Filter(query, status string) []models.Record {
	if status == "" {
		status = StatusAll
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = Criteria{Query: query, Status: status}
	s.recompute()
	return copyRecords(s.view)
}

// ApplyPatch replaces the record with id by its merge with fields.
// It reports whether the record was present.
func (s *Store) ApplyPatch(id string, fields map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.collection {
		if r.ID() == id {
			s.collection[i] = r.Merge(fields)
			s.recompute()
			return true
		}
	}
	return false
}

// Remove drops the record with id. It reports whether the record was present.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.collection {
		if r.ID() == id {
			s.collection = append(s.collection[:i:i], s.collection[i+1:]...)
			s.recompute()
			return true
		}
	}
	return false
}

// Get returns the record with id from the collection.
func (s *Store) Get(id string) (models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.collection {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

// View returns the current filtered view.
func (s *Store) View() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRecords(s.view)
}

// Collection returns the full collection.
func (s *Store) Collection() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRecords(s.collection)
}

func (s *Store) Criteria() Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

// Loaded reports whether a fetch has completed successfully.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) recompute() {
	s.view = Filter(s.collection, s.criteria, s.matcher)
}

func copyRecords(in []models.Record) []models.Record {
	out := make([]models.Record, len(in))
	copy(out, in)
	return out
}
