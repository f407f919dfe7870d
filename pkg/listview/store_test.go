package listview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentease/admin/pkg/models"
)

func newProductStore(t *testing.T, records []models.Record) *Store {
	t.Helper()
	products, _ := models.LookupResource("products")
	s := NewStore(MatcherFor(products), func(context.Context) ([]models.Record, error) {
		return records, nil
	})
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestStoreLoad(t *testing.T) {
	t.Run("success replaces collection", func(t *testing.T) {
		s := newProductStore(t, []models.Record{{"id": "1", "name": "Drill"}})
		assert.True(t, s.Loaded())
		assert.Len(t, s.Collection(), 1)
		assert.Len(t, s.View(), 1)
	})

	t.Run("failure keeps previous state", func(t *testing.T) {
		calls := 0
		s := NewStore(Matcher{}, func(context.Context) ([]models.Record, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("network down")
			}
			return []models.Record{{"id": "1"}}, nil
		})
		require.NoError(t, s.Load(context.Background()))
		err := s.Load(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "network down")
		assert.Len(t, s.Collection(), 1)
	})

	t.Run("cancelled context discards result", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		s := NewStore(Matcher{}, func(context.Context) ([]models.Record, error) {
			cancel()
			return []models.Record{{"id": "1"}}, nil
		})
		require.ErrorIs(t, s.Load(ctx), context.Canceled)
		assert.False(t, s.Loaded())
		assert.Empty(t, s.Collection())
	})
}

func TestStoreApplyPatch(t *testing.T) {
	s := newProductStore(t, []models.Record{
		{"id": "1", "name": "Drill", "approved": "no"},
		{"id": "2", "name": "Saw", "approved": "no"},
	})
	s.Filter("", "yes")
	require.Empty(t, s.View())

	require.True(t, s.ApplyPatch("1", map[string]any{"approved": "yes"}))

	count := 0
	for _, r := range s.Collection() {
		if r.ID() == "1" {
			count++
			assert.Equal(t, "yes", r["approved"])
			assert.Equal(t, "Drill", r["name"])
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"1"}, ids(s.View()), "view reflects the patch without a re-fetch")

	assert.False(t, s.ApplyPatch("missing", map[string]any{"approved": "yes"}))
	assert.Len(t, s.Collection(), 2)
}

func TestStoreRemove(t *testing.T) {
	s := newProductStore(t, []models.Record{{"id": "1", "name": "Drill"}, {"id": "2", "name": "Saw"}})
	before := s.View()

	require.True(t, s.Remove("1"))
	assert.Equal(t, []string{"2"}, ids(s.Collection()))
	assert.Equal(t, []string{"2"}, ids(s.View()))
	assert.Equal(t, []string{"1", "2"}, ids(before), "earlier snapshots are unaffected")

	assert.False(t, s.Remove("1"))
	assert.Len(t, s.Collection(), 1)
}

func TestStoreFilterKeepsCriteria(t *testing.T) {
	s := newProductStore(t, []models.Record{
		{"id": "1", "name": "Drill", "category": "tools"},
		{"id": "2", "name": "Tent", "category": "camping"},
	})
	view := s.Filter("TOOL", "")
	assert.Equal(t, []string{"1"}, ids(view))
	assert.Equal(t, Criteria{Query: "TOOL", Status: StatusAll}, s.Criteria())

	s.ApplyPatch("2", map[string]any{"category": "power tools"})
	assert.Equal(t, []string{"1", "2"}, ids(s.View()))

	r, ok := s.Get("2")
	require.True(t, ok)
	assert.Equal(t, "power tools", r["category"])
}
