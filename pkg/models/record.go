package models

import (
	"fmt"
	"strings"
)

// Record is a single row of a moderated table.
type Record map[string]any

// ID returns the record identifier as a string.
func (r Record) ID() string {
	return Stringify(r["id"])
}

// Lookup resolves a dotted path such as "user1.name" through embedded records.
func (r Record) Lookup(path string) (any, bool) {
	var cur any = r
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Text returns the string value at path, or "" if it is missing or not a string.
func (r Record) Text(path string) string {
	v, ok := r.Lookup(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Embedded returns the record embedded under alias, if any.
func (r Record) Embedded(alias string) (Record, bool) {
	m, ok := asMap(r[alias])
	if !ok {
		return nil, false
	}
	return Record(m), true
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a copy of the record with fields applied on top.
// The id is never overwritten.
func (r Record) Merge(fields map[string]any) Record {
	out := r.Clone()
	for k, v := range fields {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}

// Project returns a copy holding only the named columns and the id.
// An empty column list keeps every field.
func (r Record) Project(columns []string) Record {
	if len(columns) == 0 {
		return r.Clone()
	}
	out := make(Record, len(columns)+1)
	if id, ok := r["id"]; ok {
		out["id"] = id
	}
	for _, c := range columns {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

// Stringify renders an identifier or scalar for comparison and display.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}
