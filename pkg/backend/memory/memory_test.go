package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/models"
)

const seed = `
profiles:
  - id: p1
    name: Ann
    phone: "0711"
    expo_push_token: ExponentPushToken[ann]
  - id: p2
    name: Bob
product_listings:
  - id: pr1
    name: Drill
    owner1: p1
    owner2: p2
    approved: "no"
  - id: pr2
    name: Tent
    owner1: p9
`

func seeded(t *testing.T) *Store {
	t.Helper()
	s, err := NewFromSeed(strings.NewReader(seed))
	require.NoError(t, err)
	return s
}

func TestSelect(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	products, _ := models.LookupResource("products")

	rows, err := s.Select(ctx, models.TableProducts, backend.Query{Joins: products.Joins})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "pr1", rows[0].ID())
	assert.Equal(t, "Ann", rows[0].Text("owner1_profile.name"))
	assert.Equal(t, "ExponentPushToken[ann]", rows[0].Text("owner1_profile.expo_push_token"))
	assert.Equal(t, "Bob", rows[0].Text("owner2_profile.name"))

	assert.Nil(t, rows[1]["owner1_profile"], "dangling reference embeds nil")
	assert.Nil(t, rows[1]["owner2_profile"])

	t.Run("where", func(t *testing.T) {
		rows, err := s.Select(ctx, models.TableProfiles, backend.Query{Where: map[string]any{"name": "Bob"}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "p2", rows[0].ID())
	})

	t.Run("columns", func(t *testing.T) {
		rows, err := s.Select(ctx, models.TableProfiles, backend.Query{Columns: []string{"name"}})
		require.NoError(t, err)
		assert.Equal(t, models.Record{"id": "p1", "name": "Ann"}, rows[0])
	})

	t.Run("unknown table is empty", func(t *testing.T) {
		rows, err := s.Select(ctx, "nope", backend.Query{})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	require.NoError(t, s.Update(ctx, models.TableProducts, "pr1", map[string]any{"approved": "yes"}))
	rows, err := s.Select(ctx, models.TableProducts, backend.Query{Where: map[string]any{"id": "pr1"}})
	require.NoError(t, err)
	assert.Equal(t, "yes", rows[0]["approved"])
	assert.Equal(t, "Drill", rows[0]["name"])

	assert.ErrorIs(t, s.Update(ctx, models.TableProducts, "missing", map[string]any{"approved": "yes"}), backend.ErrNotFound)

	require.NoError(t, s.Delete(ctx, models.TableProducts, "pr1"))
	require.NoError(t, s.Delete(ctx, models.TableProducts, "pr1"), "deleting a missing row succeeds")
	rows, err = s.Select(ctx, models.TableProducts, backend.Query{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "pr2", rows[0].ID())
}

func TestInsertAssignsIDs(t *testing.T) {
	ctx := context.Background()
	s := New()

	out, err := s.Insert(ctx, models.TableNotifications, []map[string]any{
		{"profile_id": "p1", "title": "Product Approved"},
		{"id": 12, "profile_id": "p2"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.NotEmpty(t, out[0].ID())
	assert.Equal(t, "12", out[1].ID())

	out[0]["title"] = "changed"
	rows, err := s.Select(ctx, models.TableNotifications, backend.Query{})
	require.NoError(t, err)
	assert.Equal(t, "Product Approved", rows[0]["title"], "returned rows are copies")
}

func TestSelectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Select(ctx, models.TableProfiles, backend.Query{})
	assert.ErrorIs(t, err, context.Canceled)
}
