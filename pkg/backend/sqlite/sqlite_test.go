package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/models"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	_, err := s.Insert(ctx, models.TableProfiles, []map[string]any{
		{"id": "u1", "name": "Ann"},
		{"id": "u2", "name": "Bob"},
	})
	require.NoError(t, err)
	inserted, err := s.Insert(ctx, models.TableDamageReports, []map[string]any{
		{"title": "Leak", "status": "unresolved", "user_id": "u1", "clash_partner_id": "u2"},
		{"title": "Crack", "status": "resolved", "user_id": "u2"},
	})
	require.NoError(t, err)
	require.Len(t, inserted, 2)
	leakID := inserted[0].ID()
	assert.NotEmpty(t, leakID)

	reports, _ := models.LookupResource("damage-reports")

	t.Run("select keeps insertion order and resolves joins", func(t *testing.T) {
		rows, err := s.Select(ctx, models.TableDamageReports, backend.Query{Joins: reports.Joins})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Leak", rows[0]["title"])
		assert.Equal(t, "Ann", rows[0].Text("user.name"))
		assert.Equal(t, "Bob", rows[0].Text("clash_partner.name"))
		assert.Nil(t, rows[1]["clash_partner"])
	})

	t.Run("update merges", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, models.TableDamageReports, leakID, map[string]any{"status": "resolved"}))
		rows, err := s.Select(ctx, models.TableDamageReports, backend.Query{Where: map[string]any{"id": leakID}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "resolved", rows[0]["status"])
		assert.Equal(t, "Leak", rows[0]["title"])
	})

	t.Run("update missing", func(t *testing.T) {
		err := s.Update(ctx, models.TableDamageReports, "nope", map[string]any{"status": "resolved"})
		assert.ErrorIs(t, err, backend.ErrNotFound)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := s.Insert(ctx, models.TableProfiles, []map[string]any{{"id": "u1"}})
		assert.Error(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, models.TableDamageReports, leakID))
		require.NoError(t, s.Delete(ctx, models.TableDamageReports, leakID))
		rows, err := s.Select(ctx, models.TableDamageReports, backend.Query{})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Insert(ctx, models.TableAdmins, []map[string]any{{"id": "a1", "full_name": "Root"}})
	require.NoError(t, err)
	rows, err := s.Select(ctx, models.TableAdmins, backend.Query{})
	require.NoError(t, err)
	assert.Equal(t, "Root", rows[0]["full_name"])
}
