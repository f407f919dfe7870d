// Package analytics computes the dashboard's summary counts.
package analytics

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/models"
)

// Count is one bar or slice of a chart.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type Stats struct {
	DamageReports       []Count `json:"damage_reports"`
	UserActivity        []Count `json:"user_activity"`
	UserVerification    []Count `json:"user_verification"`
	DonationsByCategory []Count `json:"donations_by_category"`
	ProductsByCategory  []Count `json:"products_by_category"`
	Queries             []Count `json:"queries"`
}

// Collect reads the five source tables concurrently and aggregates them.
func Collect(ctx context.Context, ds backend.DataStore) (Stats, error) {
	var (
		reports, profiles, donations, products, queries []models.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range []struct {
		table string
		cols  []string
		dst   *[]models.Record
	}{
		{models.TableDamageReports, []string{"status"}, &reports},
		{models.TableProfiles, []string{"isActive", "verification"}, &profiles},
		{models.TableDonations, []string{"category"}, &donations},
		{models.TableProducts, []string{"category"}, &products},
		{models.TableQueries, []string{"status"}, &queries},
	} {
		src := src
		g.Go(func() error {
			rows, err := ds.Select(gctx, src.table, backend.Query{Columns: src.cols})
			if err != nil {
				return fmt.Errorf("%s: %w", src.table, err)
			}
			*src.dst = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	return Stats{
		DamageReports:       ResolutionCounts(reports),
		UserActivity:        ActivityCounts(profiles),
		UserVerification:    VerificationCounts(profiles),
		DonationsByCategory: CategoryCounts(donations, "category"),
		ProductsByCategory:  CategoryCounts(products, "category"),
		Queries:             ResolutionCounts(queries),
	}, nil
}

// ResolutionCounts counts rows whose status is exactly "resolved" or
// "unresolved". Other values are not counted.
func ResolutionCounts(rows []models.Record) []Count {
	var resolved, unresolved int
	for _, r := range rows {
		switch r.Text("status") {
		case "resolved":
			resolved++
		case "unresolved":
			unresolved++
		}
	}
	return []Count{{"Resolved", resolved}, {"Unresolved", unresolved}}
}

func ActivityCounts(rows []models.Record) []Count {
	var active int
	for _, r := range rows {
		if truthy(r["isActive"]) {
			active++
		}
	}
	return []Count{{"Active", active}, {"Inactive", len(rows) - active}}
}

func VerificationCounts(rows []models.Record) []Count {
	var yes, no int
	for _, r := range rows {
		switch r.Text("verification") {
		case "Yes":
			yes++
		case "No":
			no++
		}
	}
	return []Count{{"Verified", yes}, {"Non-Verified", no}}
}

// CategoryCounts groups rows by field, in order of first appearance.
func CategoryCounts(rows []models.Record, field string) []Count {
	index := make(map[string]int)
	out := []Count{}
	for _, r := range rows {
		label := r.Text(field)
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, Count{Label: label})
		}
		out[i].Count++
	}
	return out
}

// truthy follows JavaScript truthiness, as the mobile app stores isActive
// loosely: any non-empty string counts, including "false" and "0".
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int32:
		return x != 0
	case int64:
		return x != 0
	case float32:
		return x != 0 && !math.IsNaN(float64(x))
	case float64:
		return x != 0 && !math.IsNaN(x)
	default:
		return true
	}
}
