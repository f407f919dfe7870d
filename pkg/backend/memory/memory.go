// Package memory provides an in-process implementation of
// [github.com/rentease/admin/pkg/backend.DataStore].
//
// Tables are created on first write and keep insertion order. A store can be
// seeded from a YAML document mapping table names to lists of rows:
//
//	profiles:
//	  - id: p1
//	    name: Ann
//	product_listings:
//	  - id: pr1
//	    name: Drill
//	    owner1: p1
//	    approved: "no"
package memory

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/models"
)

type Store struct {
	mu     sync.RWMutex
	tables map[string][]models.Record
}

func New() *Store {
	return &Store{tables: make(map[string][]models.Record)}
}

// NewFromSeed returns a store holding the tables described by the YAML in r.
func NewFromSeed(r io.Reader) (*Store, error) {
	var seed map[string][]map[string]any
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	s := New()
	for table, rows := range seed {
		if _, err := s.Insert(context.Background(), table, rows); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// OpenSeedFile seeds a store from the YAML file at path.
func OpenSeedFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return NewFromSeed(f)
}

func (s *Store) Select(ctx context.Context, table string, q backend.Query) ([]models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	rows := make([]models.Record, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		rows = append(rows, r.Clone())
	}
	s.mu.RUnlock()

	return backend.Shape(ctx, s, rows, q)
}

func (s *Store) Update(ctx context.Context, table, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.tables[table] {
		if r.ID() == id {
			s.tables[table][i] = r.Merge(fields)
			return nil
		}
	}
	return fmt.Errorf("%s %s: %w", table, id, backend.ErrNotFound)
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tables[table]
	for i, r := range rows {
		if r.ID() == id {
			s.tables[table] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, table string, rows []map[string]any) ([]models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(rows))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		r := models.Record(row).Clone()
		if r.ID() == "" {
			r["id"] = uuid.NewString()
		} else {
			r["id"] = r.ID()
		}
		s.tables[table] = append(s.tables[table], r)
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *Store) Close() error {
	return nil
}
