// Package listview holds the fetched collection of a dashboard page and the
// filtered view derived from it.
//
// The view is always recomputed eagerly from the collection, the free-text
// query, and the status filter. It is an order-preserving subset of the
// collection: no sorting and no deduplication.
package listview

import (
	"strings"

	"github.com/rentease/admin/pkg/models"
)

const (
	StatusAll        = "all"
	StatusResolved   = "resolved"
	StatusUnresolved = "unresolved"
)

// Criteria is the user-controlled filter input.
type Criteria struct {
	Query  string `json:"query"`
	Status string `json:"status"`
}

// Matcher decides whether a record satisfies Criteria.
type Matcher struct {
	SearchFields []string
	StatusField  string
	Mode         models.StatusMode
}

// MatcherFor builds the matcher of a resource page.
func MatcherFor(res models.Resource) Matcher {
	return Matcher{
		SearchFields: res.SearchFields,
		StatusField:  res.StatusField,
		Mode:         res.StatusMode,
	}
}

// Match reports whether r satisfies both the query and the status filter.
func (m Matcher) Match(r models.Record, c Criteria) bool {
	return m.matchQuery(r, c.Query) && m.matchStatus(r, c.Status)
}

func (m Matcher) matchQuery(r models.Record, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, f := range m.SearchFields {
		v, ok := r.Lookup(f)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

func (m Matcher) matchStatus(r models.Record, status string) bool {
	if status == "" || strings.EqualFold(status, StatusAll) || m.Mode == models.StatusNone {
		return true
	}
	value := r.Text(m.StatusField)
	if m.Mode == models.StatusResolution {
		switch strings.ToLower(status) {
		case StatusResolved:
			return strings.EqualFold(value, models.StatusResolved)
		case StatusUnresolved:
			return !strings.EqualFold(value, models.StatusResolved)
		}
	}
	return strings.EqualFold(value, status)
}

// Filter returns the records of collection matching c, in collection order.
func Filter(collection []models.Record, c Criteria, m Matcher) []models.Record {
	out := make([]models.Record, 0, len(collection))
	for _, r := range collection {
		if m.Match(r, c) {
			out = append(out, r)
		}
	}
	return out
}
