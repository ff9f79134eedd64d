// Package pipeline turns a record set and filter criteria into the
// aggregates the dashboard renders. Every function is pure and total:
// empty inputs produce zero or empty outputs.
package pipeline

import (
	"sales-dashboard/internal/models"
)

// Filter returns the records matching every criterion, preserving input order.
func Filter(records []models.SalesRecord, c models.FilterCriteria) []models.SalesRecord {
	products := toSet(c.Products)
	regions := toSet(c.Regions)

	out := make([]models.SalesRecord, 0, len(records))
	for _, r := range records {
		if !products[r.Product] || !regions[r.Region] {
			continue
		}
		if r.Date.Before(c.DateStart) || r.Date.After(c.DateEnd) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
