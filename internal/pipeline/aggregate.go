package pipeline

import (
	"math"
	"slices"
	"time"

	"sales-dashboard/internal/models"
)

// Summarize computes the KPI cards. AvgDailyUnits is NaN when there are no dates.
func Summarize(records []models.SalesRecord) models.KPISummary {
	var s models.KPISummary
	for _, r := range records {
		s.TotalRevenue += r.Revenue
		s.TotalUnits += int64(r.UnitsSold)
		if r.RiskFlag {
			s.RiskAlerts++
		}
	}

	days := DailySeries(records)
	if len(days) == 0 {
		s.AvgDailyUnits = math.NaN()
		return s
	}
	var units int64
	for _, d := range days {
		units += d.Units
	}
	s.AvgDailyUnits = float64(units) / float64(len(days))
	return s
}

// DailySeries sums units and revenue per distinct date, ascending.
func DailySeries(records []models.SalesRecord) []models.DailyTotal {
	byDate := make(map[time.Time]*models.DailyTotal)
	for _, r := range records {
		d := byDate[r.Date]
		if d == nil {
			d = &models.DailyTotal{Date: r.Date}
			byDate[r.Date] = d
		}
		d.Units += int64(r.UnitsSold)
		d.Revenue += r.Revenue
	}

	result := make([]models.DailyTotal, 0, len(byDate))
	for _, d := range byDate {
		result = append(result, *d)
	}
	slices.SortFunc(result, func(a, b models.DailyTotal) int {
		return a.Date.Compare(b.Date)
	})
	return result
}

// BuildRiskMatrix sums risk flags per (region, date). Regions ascend
// alphabetically, dates ascend, absent combinations are zero.
func BuildRiskMatrix(records []models.SalesRecord) models.RiskMatrix {
	regionSet := make(map[string]bool)
	dateSet := make(map[time.Time]bool)
	for _, r := range records {
		regionSet[r.Region] = true
		dateSet[r.Date] = true
	}

	m := models.RiskMatrix{
		Regions: make([]string, 0, len(regionSet)),
		Dates:   make([]time.Time, 0, len(dateSet)),
	}
	for region := range regionSet {
		m.Regions = append(m.Regions, region)
	}
	for d := range dateSet {
		m.Dates = append(m.Dates, d)
	}
	slices.Sort(m.Regions)
	slices.SortFunc(m.Dates, func(a, b time.Time) int { return a.Compare(b) })

	regionIdx := make(map[string]int, len(m.Regions))
	for i, region := range m.Regions {
		regionIdx[region] = i
	}
	dateIdx := make(map[time.Time]int, len(m.Dates))
	for i, d := range m.Dates {
		dateIdx[d] = i
	}

	m.Cells = make([][]int, len(m.Regions))
	for i := range m.Cells {
		m.Cells[i] = make([]int, len(m.Dates))
	}
	for _, r := range records {
		if r.RiskFlag {
			m.Cells[regionIdx[r.Region]][dateIdx[r.Date]]++
		}
	}
	return m
}

// RiskAlerts lists the regions flagged on the most recent date, in order of
// first appearance.
func RiskAlerts(records []models.SalesRecord) []string {
	latest, ok := maxDate(records)
	if !ok {
		return []string{}
	}

	seen := make(map[string]bool)
	regions := []string{}
	for _, r := range records {
		if !r.Date.Equal(latest) || !r.RiskFlag || seen[r.Region] {
			continue
		}
		seen[r.Region] = true
		regions = append(regions, r.Region)
	}
	return regions
}

func maxDate(records []models.SalesRecord) (time.Time, bool) {
	if len(records) == 0 {
		return time.Time{}, false
	}
	latest := records[0].Date
	for _, r := range records[1:] {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}
	return latest, true
}
