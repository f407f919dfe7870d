// Package selection tracks which record of a page is being viewed or edited.
//
// A page is in exactly one of four states:
//
//	Idle ──Select──▶ Viewing ──OpenImage──▶ FullImage
//	 ▲  ◀──Close───    │    ◀──CloseImage──     │
//	 │                Edit                      │
//	 │                 ▼                        │
//	 └─Cancel/Saved── Editing ◀──────Edit───────┘
//
// Edit is accepted from Idle, Viewing and FullImage and closes any open image.
// Viewing and Editing are mutually exclusive. The machine stores the id of
// the selected record and resolves it through a Lookup on every read, so a
// record removed from the page's collection drops the machine back to Idle.
//
// A Machine is not safe for concurrent use.
package selection

import (
	"errors"
	"fmt"

	"github.com/rentease/admin/pkg/models"
)

var (
	ErrInvalidTransition = errors.New("invalid selection transition")
	ErrNotEditable       = errors.New("field is not editable")
	ErrNotFound          = errors.New("record not found")
)

type State int

const (
	Idle State = iota
	Viewing
	Editing
	FullImage
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Viewing:
		return "viewing"
	case Editing:
		return "editing"
	case FullImage:
		return "viewing+image"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Lookup resolves a record id against the page's collection.
type Lookup func(id string) (models.Record, bool)

// Snapshot is a read-only view of the machine.
type Snapshot struct {
	State  State          `json:"state"`
	Record models.Record  `json:"record,omitempty"`
	Buffer map[string]any `json:"buffer,omitempty"`
	Image  string         `json:"image,omitempty"`
}

type Machine struct {
	lookup   Lookup
	editable []string
	state    State
	id       string
	image    string
	buffer   map[string]any
}

// New returns an Idle machine. editable lists the fields seeded into, and
// accepted by, the edit buffer.
func New(lookup Lookup, editable []string) *Machine {
	return &Machine{lookup: lookup, editable: editable}
}

// State returns the current state after dropping a stale selection.
func (m *Machine) State() State {
	m.refresh()
	return m.state
}

// Snapshot returns the current state together with the live record.
func (m *Machine) Snapshot() Snapshot {
	rec := m.refresh()
	s := Snapshot{State: m.state, Record: rec, Image: m.image}
	if m.state == Editing {
		s.Buffer = copyFields(m.buffer)
	}
	return s
}

// Select opens the detail view of the record with id.
func (m *Machine) Select(id string) error {
	m.refresh()
	if m.state != Idle && m.state != Viewing {
		return m.invalid("select")
	}
	if _, ok := m.lookup(id); !ok {
		return fmt.Errorf("select %s: %w", id, ErrNotFound)
	}
	m.state, m.id, m.image = Viewing, id, ""
	return nil
}

// Close leaves the detail view, including an open full-size image.
func (m *Machine) Close() error {
	m.refresh()
	if m.state != Viewing && m.state != FullImage {
		return m.invalid("close")
	}
	m.reset()
	return nil
}

// OpenImage shows url full-size on top of the detail view.
func (m *Machine) OpenImage(url string) error {
	m.refresh()
	if m.state != Viewing {
		return m.invalid("open image")
	}
	m.state, m.image = FullImage, url
	return nil
}

// CloseImage returns to the detail view.
func (m *Machine) CloseImage() error {
	m.refresh()
	if m.state != FullImage {
		return m.invalid("close image")
	}
	m.state, m.image = Viewing, ""
	return nil
}

// Edit starts editing the record with id, seeding the buffer from its
// editable fields.
func (m *Machine) Edit(id string) error {
	m.refresh()
	if m.state == Editing {
		return m.invalid("edit")
	}
	rec, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("edit %s: %w", id, ErrNotFound)
	}
	buf := make(map[string]any, len(m.editable))
	for _, f := range m.editable {
		buf[f] = rec[f]
	}
	m.state, m.id, m.image, m.buffer = Editing, id, "", buf
	return nil
}

// SetField changes one field of the edit buffer.
func (m *Machine) SetField(field string, value any) error {
	m.refresh()
	if m.state != Editing {
		return m.invalid("set field")
	}
	if !m.isEditable(field) {
		return fmt.Errorf("%s: %w", field, ErrNotEditable)
	}
	m.buffer[field] = value
	return nil
}

// Cancel discards the edit buffer.
func (m *Machine) Cancel() error {
	m.refresh()
	if m.state != Editing {
		return m.invalid("cancel")
	}
	m.reset()
	return nil
}

// Commit returns the id and a copy of the buffer to save. The machine stays
// in Editing until Saved is called, so a failed save keeps the buffer.
func (m *Machine) Commit() (string, map[string]any, error) {
	m.refresh()
	if m.state != Editing {
		return "", nil, m.invalid("commit")
	}
	return m.id, copyFields(m.buffer), nil
}

// Saved finishes an edit after the save succeeded.
func (m *Machine) Saved(id string) {
	if m.state == Editing && m.id == id {
		m.reset()
	}
}

func (m *Machine) refresh() models.Record {
	if m.state == Idle {
		return nil
	}
	rec, ok := m.lookup(m.id)
	if !ok {
		m.reset()
		return nil
	}
	return rec
}

func (m *Machine) reset() {
	m.state, m.id, m.image, m.buffer = Idle, "", "", nil
}

func (m *Machine) isEditable(field string) bool {
	for _, f := range m.editable {
		if f == field {
			return true
		}
	}
	return false
}

func (m *Machine) invalid(op string) error {
	return fmt.Errorf("%s from %s: %w", op, m.state, ErrInvalidTransition)
}

func copyFields(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
