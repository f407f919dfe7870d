package backend

import (
	"context"
	"fmt"

	"github.com/rentease/admin/pkg/models"
)

// ResolveJoins embeds the related rows named by joins into rows. Each
// referenced table is fetched once. A reference with no matching row embeds
// nil, the way an outer join would.
func ResolveJoins(ctx context.Context, ds DataStore, rows []models.Record, joins []models.Join) error {
	if len(joins) == 0 || len(rows) == 0 {
		return nil
	}
	index := make(map[string]map[string]models.Record)
	for _, j := range joins {
		byID, ok := index[j.Table]
		if !ok {
			related, err := ds.Select(ctx, j.Table, Query{})
			if err != nil {
				return fmt.Errorf("resolve join %s: %w", j.Alias, err)
			}
			byID = make(map[string]models.Record, len(related))
			for _, r := range related {
				byID[r.ID()] = r
			}
			index[j.Table] = byID
		}
		for _, row := range rows {
			ref := models.Stringify(row[j.Column])
			related, ok := byID[ref]
			if ref == "" || !ok {
				row[j.Alias] = nil
				continue
			}
			row[j.Alias] = map[string]any(related.Project(j.Columns))
		}
	}
	return nil
}

// Shape applies the where clause, the projection and the joins of q to rows
// read from a table.
func Shape(ctx context.Context, ds DataStore, rows []models.Record, q Query) ([]models.Record, error) {
	out := make([]models.Record, 0, len(rows))
	for _, r := range rows {
		if !MatchWhere(r, q.Where) {
			continue
		}
		out = append(out, r.Project(q.Columns))
	}
	if err := ResolveJoins(ctx, ds, out, q.Joins); err != nil {
		return nil, err
	}
	return out, nil
}
