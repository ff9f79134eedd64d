package pipeline

import (
	"sales-dashboard/internal/models"
)

// MinForecastDates is the number of distinct dates a series must exceed
// before a forecast is attempted.
const MinForecastDates = 30

// Run filters the records and computes every derived view in sequence.
func Run(records []models.SalesRecord, c models.FilterCriteria) models.Snapshot {
	filtered := Filter(records, c)
	series := DailySeries(filtered)
	deltas := RegionDeltas(filtered)

	return models.Snapshot{
		Criteria:         c,
		RecordCount:      len(filtered),
		Summary:          Summarize(filtered),
		Series:           series,
		RiskMatrix:       BuildRiskMatrix(filtered),
		Deltas:           deltas,
		Narrative:        Insights(deltas),
		AlertRegions:     RiskAlerts(filtered),
		ForecastEligible: len(series) > MinForecastDates,
	}
}

// Options describes the distinct values present in a record set, in order
// of first appearance, plus its date bounds.
func Options(records []models.SalesRecord) models.FilterOptions {
	opts := models.FilterOptions{Products: []string{}, Regions: []string{}}
	seenProduct := make(map[string]bool)
	seenRegion := make(map[string]bool)
	for i, r := range records {
		if !seenProduct[r.Product] {
			seenProduct[r.Product] = true
			opts.Products = append(opts.Products, r.Product)
		}
		if !seenRegion[r.Region] {
			seenRegion[r.Region] = true
			opts.Regions = append(opts.Regions, r.Region)
		}
		if i == 0 || r.Date.Before(opts.MinDate) {
			opts.MinDate = r.Date
		}
		if i == 0 || r.Date.After(opts.MaxDate) {
			opts.MaxDate = r.Date
		}
	}
	return opts
}
