package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentease/admin/pkg/models"
)

type fakeCollection map[string]models.Record

func (c fakeCollection) lookup(id string) (models.Record, bool) {
	r, ok := c[id]
	return r, ok
}

func newMachine() (*Machine, fakeCollection) {
	c := fakeCollection{
		"1": {"id": "1", "name": "Drill", "category": "tools", "approved": "no"},
		"2": {"id": "2", "name": "Tent", "category": "camping"},
	}
	return New(c.lookup, []string{"name", "category"}), c
}

func TestViewing(t *testing.T) {
	m, _ := newMachine()
	assert.Equal(t, Idle, m.State())

	require.NoError(t, m.Select("1"))
	snap := m.Snapshot()
	assert.Equal(t, Viewing, snap.State)
	assert.Equal(t, "Drill", snap.Record["name"])

	require.NoError(t, m.Select("2"), "selecting another record replaces the selection")
	assert.Equal(t, "Tent", m.Snapshot().Record["name"])

	require.NoError(t, m.Close())
	assert.Equal(t, Idle, m.State())
	assert.ErrorIs(t, m.Close(), ErrInvalidTransition)
}

func TestSelectUnknown(t *testing.T) {
	m, _ := newMachine()
	assert.ErrorIs(t, m.Select("9"), ErrNotFound)
	assert.Equal(t, Idle, m.State())
}

func TestFullImage(t *testing.T) {
	m, _ := newMachine()
	assert.ErrorIs(t, m.OpenImage("https://cdn/x.png"), ErrInvalidTransition)

	require.NoError(t, m.Select("1"))
	require.NoError(t, m.OpenImage("https://cdn/x.png"))
	snap := m.Snapshot()
	assert.Equal(t, FullImage, snap.State)
	assert.Equal(t, "https://cdn/x.png", snap.Image)

	require.NoError(t, m.CloseImage())
	assert.Equal(t, Viewing, m.State())
	assert.Empty(t, m.Snapshot().Image)

	require.NoError(t, m.OpenImage("https://cdn/y.png"))
	require.NoError(t, m.Close())
	assert.Equal(t, Idle, m.State())
}

func TestEditFromFullImage(t *testing.T) {
	m, _ := newMachine()
	require.NoError(t, m.Select("1"))
	require.NoError(t, m.OpenImage("https://cdn/x.png"))

	require.NoError(t, m.Edit("1"))
	snap := m.Snapshot()
	assert.Equal(t, Editing, snap.State)
	assert.Empty(t, snap.Image)
	assert.Equal(t, "Drill", snap.Buffer["name"])
	assert.ErrorIs(t, m.CloseImage(), ErrInvalidTransition)

	require.NoError(t, m.Cancel())
	assert.Equal(t, Idle, m.State())
}

func TestEditing(t *testing.T) {
	t.Run("seed set and commit", func(t *testing.T) {
		m, c := newMachine()
		require.NoError(t, m.Edit("1"))
		snap := m.Snapshot()
		assert.Equal(t, Editing, snap.State)
		assert.Equal(t, map[string]any{"name": "Drill", "category": "tools"}, snap.Buffer)

		require.NoError(t, m.SetField("name", "Hammer Drill"))
		assert.ErrorIs(t, m.SetField("approved", "yes"), ErrNotEditable)
		assert.Equal(t, "Drill", c["1"]["name"], "buffer is detached from the record")

		id, fields, err := m.Commit()
		require.NoError(t, err)
		assert.Equal(t, "1", id)
		assert.Equal(t, "Hammer Drill", fields["name"])
		assert.Equal(t, Editing, m.State(), "commit waits for the save result")

		m.Saved("1")
		assert.Equal(t, Idle, m.State())
	})

	t.Run("cancel discards buffer", func(t *testing.T) {
		m, _ := newMachine()
		require.NoError(t, m.Select("2"))
		require.NoError(t, m.Edit("2"))
		require.NoError(t, m.SetField("name", "Tarp"))
		require.NoError(t, m.Cancel())
		assert.Equal(t, Idle, m.State())
		assert.Nil(t, m.Snapshot().Buffer)
	})

	t.Run("editing excludes viewing", func(t *testing.T) {
		m, _ := newMachine()
		require.NoError(t, m.Edit("1"))
		assert.ErrorIs(t, m.Select("2"), ErrInvalidTransition)
		assert.ErrorIs(t, m.Close(), ErrInvalidTransition)
		assert.ErrorIs(t, m.Edit("2"), ErrInvalidTransition)
	})

	t.Run("operations outside editing", func(t *testing.T) {
		m, _ := newMachine()
		assert.ErrorIs(t, m.SetField("name", "x"), ErrInvalidTransition)
		assert.ErrorIs(t, m.Cancel(), ErrInvalidTransition)
		_, _, err := m.Commit()
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("saved for another id is ignored", func(t *testing.T) {
		m, _ := newMachine()
		require.NoError(t, m.Edit("1"))
		m.Saved("2")
		assert.Equal(t, Editing, m.State())
	})
}

func TestStaleSelection(t *testing.T) {
	t.Run("viewing", func(t *testing.T) {
		m, c := newMachine()
		require.NoError(t, m.Select("1"))
		c["1"] = models.Record{"id": "1", "name": "Drill", "approved": "yes"}
		assert.Equal(t, "yes", m.Snapshot().Record["approved"], "selection reads the live record")

		delete(c, "1")
		snap := m.Snapshot()
		assert.Equal(t, Idle, snap.State)
		assert.Nil(t, snap.Record)
	})

	t.Run("editing", func(t *testing.T) {
		m, c := newMachine()
		require.NoError(t, m.Edit("2"))
		delete(c, "2")
		_, _, err := m.Commit()
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, Idle, m.State())
	})
}
