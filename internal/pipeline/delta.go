package pipeline

import (
	"fmt"
	"math"

	"sales-dashboard/internal/models"
)

const (
	// WindowDays is the length of each comparison window.
	WindowDays = 30
	// InsightThreshold is the absolute percent change that earns a narrative line.
	InsightThreshold = 20.0
)

// RegionDeltas compares each region's revenue over the last WindowDays
// against the WindowDays before that, anchored at the latest date. Regions
// with no revenue in the earlier window have no comparison and are omitted.
func RegionDeltas(records []models.SalesRecord) []models.RegionDelta {
	latest, ok := maxDate(records)
	if !ok {
		return []models.RegionDelta{}
	}
	cutoff := latest.AddDate(0, 0, -WindowDays)
	floor := cutoff.AddDate(0, 0, -WindowDays)

	var order []string
	last := make(map[string]float64)
	prev := make(map[string]float64)
	seen := make(map[string]bool)
	for _, r := range records {
		if !seen[r.Region] {
			seen[r.Region] = true
			order = append(order, r.Region)
		}
		switch {
		case r.Date.After(cutoff):
			last[r.Region] += r.Revenue
		case r.Date.After(floor):
			prev[r.Region] += r.Revenue
		}
	}

	deltas := make([]models.RegionDelta, 0, len(order))
	for _, region := range order {
		p := prev[region]
		if p <= 0 {
			continue
		}
		l := last[region]
		deltas = append(deltas, models.RegionDelta{
			Region:      region,
			LastRevenue: l,
			PrevRevenue: p,
			ChangePct:   (l - p) / p * 100,
		})
	}
	return deltas
}

// Insights classifies each delta; changes within the threshold produce no line.
func Insights(deltas []models.RegionDelta) models.Narrative {
	n := models.Narrative{Insights: []models.Insight{}}
	for _, d := range deltas {
		switch {
		case d.ChangePct < -InsightThreshold:
			n.Insights = append(n.Insights, models.Insight{
				Region:    d.Region,
				Kind:      models.InsightDrop,
				ChangePct: d.ChangePct,
				Message: fmt.Sprintf("⚠️ Sales in the %s region dropped %s%% compared to the previous month.",
					d.Region, models.FormatPercent(math.Abs(d.ChangePct))),
			})
		case d.ChangePct > InsightThreshold:
			n.Insights = append(n.Insights, models.Insight{
				Region:    d.Region,
				Kind:      models.InsightIncrease,
				ChangePct: d.ChangePct,
				Message: fmt.Sprintf("✅ Sales in the %s region increased %s%% compared to the previous month.",
					d.Region, models.FormatPercent(d.ChangePct)),
			})
		}
	}
	n.Stable = len(n.Insights) == 0
	return n
}
