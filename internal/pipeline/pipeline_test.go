package pipeline

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sales-dashboard/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var (
	testProducts = []string{"Product A", "Product B", "Product C"}
	testRegions  = []string{"North", "South", "East", "West"}
)

// randomRecords builds one row per (date, product, region) over the given
// number of days starting at 2023-01-01.
func randomRecords(t *testing.T, days int) []models.SalesRecord {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 11))
	start := day(2023, 1, 1)

	var records []models.SalesRecord
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		for _, p := range testProducts {
			for _, r := range testRegions {
				units := rng.IntN(40)
				records = append(records, models.SalesRecord{
					Date:      date,
					Product:   p,
					Region:    r,
					UnitsSold: units,
					Revenue:   float64(units) * (10 + rng.Float64()*40),
					RiskFlag:  rng.Float64() < 0.05,
				})
			}
		}
	}
	return records
}

func allCriteria(records []models.SalesRecord) models.FilterCriteria {
	return Options(records).Defaults()
}

func TestFilter_MatchesBruteForce(t *testing.T) {
	records := randomRecords(t, 120)

	tests := []struct {
		name     string
		criteria models.FilterCriteria
	}{
		{
			name:     "everything",
			criteria: allCriteria(records),
		},
		{
			name: "single product and region",
			criteria: models.FilterCriteria{
				Products:  []string{"Product B"},
				Regions:   []string{"East"},
				DateStart: day(2023, 1, 1),
				DateEnd:   day(2023, 12, 31),
			},
		},
		{
			name: "narrow date window",
			criteria: models.FilterCriteria{
				Products:  testProducts,
				Regions:   []string{"North", "West"},
				DateStart: day(2023, 2, 10),
				DateEnd:   day(2023, 2, 12),
			},
		},
		{
			name: "single day",
			criteria: models.FilterCriteria{
				Products:  []string{"Product A", "Product C"},
				Regions:   testRegions,
				DateStart: day(2023, 3, 1),
				DateEnd:   day(2023, 3, 1),
			},
		},
		{
			name: "range outside data",
			criteria: models.FilterCriteria{
				Products:  testProducts,
				Regions:   testRegions,
				DateStart: day(2030, 1, 1),
				DateEnd:   day(2030, 2, 1),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(records, tt.criteria)

			var want []models.SalesRecord
			for _, r := range records {
				productOK := false
				for _, p := range tt.criteria.Products {
					if p == r.Product {
						productOK = true
					}
				}
				regionOK := false
				for _, g := range tt.criteria.Regions {
					if g == r.Region {
						regionOK = true
					}
				}
				if productOK && regionOK &&
					!r.Date.Before(tt.criteria.DateStart) && !r.Date.After(tt.criteria.DateEnd) {
					want = append(want, r)
				}
			}

			if len(got) != len(want) {
				t.Fatalf("Filter() returned %d records, brute force found %d", len(got), len(want))
			}
			if len(want) > 0 {
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestSummarize_PartitionSumConsistency(t *testing.T) {
	records := randomRecords(t, 60)
	total := Summarize(records)

	var revenue float64
	var units int64
	var alerts int
	for _, p := range testProducts {
		for _, r := range testRegions {
			part := Summarize(Filter(records, models.FilterCriteria{
				Products:  []string{p},
				Regions:   []string{r},
				DateStart: day(2023, 1, 1),
				DateEnd:   day(2023, 12, 31),
			}))
			revenue += part.TotalRevenue
			units += part.TotalUnits
			alerts += part.RiskAlerts
		}
	}

	if math.Abs(revenue-total.TotalRevenue) > 1e-6 {
		t.Errorf("partition revenue = %f, total = %f", revenue, total.TotalRevenue)
	}
	if units != total.TotalUnits {
		t.Errorf("partition units = %d, total = %d", units, total.TotalUnits)
	}
	if alerts != total.RiskAlerts {
		t.Errorf("partition alerts = %d, total = %d", alerts, total.RiskAlerts)
	}
}

func TestSummarize_AverageDailyUnits(t *testing.T) {
	records := []models.SalesRecord{
		{Date: day(2024, 1, 1), Region: "North", UnitsSold: 10},
		{Date: day(2024, 1, 1), Region: "South", UnitsSold: 20},
		{Date: day(2024, 1, 2), Region: "North", UnitsSold: 6, RiskFlag: true},
	}

	s := Summarize(records)
	if s.AvgDailyUnits != 18 {
		t.Errorf("AvgDailyUnits = %f, want 18", s.AvgDailyUnits)
	}
	if s.TotalUnits != 36 {
		t.Errorf("TotalUnits = %d, want 36", s.TotalUnits)
	}
	if s.RiskAlerts != 1 {
		t.Errorf("RiskAlerts = %d, want 1", s.RiskAlerts)
	}
}

func TestDailySeries_OrderedAndConsistent(t *testing.T) {
	records := randomRecords(t, 45)
	// Shuffle so ordering cannot come from the input.
	rng := rand.New(rand.NewPCG(1, 2))
	rng.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })

	series := DailySeries(records)
	if len(series) != 45 {
		t.Fatalf("expected 45 dates, got %d", len(series))
	}

	var revenue float64
	for i, d := range series {
		if i > 0 && !d.Date.After(series[i-1].Date) {
			t.Fatalf("dates not strictly increasing at %d: %v then %v", i, series[i-1].Date, d.Date)
		}
		revenue += d.Revenue
	}

	total := Summarize(records).TotalRevenue
	if math.Abs(revenue-total) > 1e-6 {
		t.Errorf("series revenue = %f, KPI revenue = %f", revenue, total)
	}
}

func TestBuildRiskMatrix(t *testing.T) {
	records := randomRecords(t, 30)
	m := BuildRiskMatrix(records)

	if len(m.Regions) != len(testRegions) {
		t.Fatalf("expected %d regions, got %d", len(testRegions), len(m.Regions))
	}
	if len(m.Dates) != 30 {
		t.Fatalf("expected 30 dates, got %d", len(m.Dates))
	}
	for i := 1; i < len(m.Regions); i++ {
		if m.Regions[i-1] >= m.Regions[i] {
			t.Errorf("regions not sorted: %v", m.Regions)
		}
	}
	for _, row := range m.Cells {
		if len(row) != len(m.Dates) {
			t.Fatalf("row has %d cells, want %d", len(row), len(m.Dates))
		}
		for _, v := range row {
			if v < 0 {
				t.Errorf("negative cell %d", v)
			}
		}
	}
	if got, want := m.Total(), Summarize(records).RiskAlerts; got != want {
		t.Errorf("matrix total = %d, KPI risk alerts = %d", got, want)
	}
}

func TestBuildRiskMatrix_FillsMissingWithZero(t *testing.T) {
	records := []models.SalesRecord{
		{Date: day(2024, 5, 1), Region: "North", RiskFlag: true},
		{Date: day(2024, 5, 2), Region: "South", RiskFlag: true},
		{Date: day(2024, 5, 2), Region: "South", RiskFlag: true},
	}

	got := BuildRiskMatrix(records)
	want := models.RiskMatrix{
		Regions: []string{"North", "South"},
		Dates:   []time.Time{day(2024, 5, 1), day(2024, 5, 2)},
		Cells:   [][]int{{1, 0}, {0, 2}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildRiskMatrix() mismatch (-want +got):\n%s", diff)
	}
}

func TestRegionDeltas_EndToEnd(t *testing.T) {
	d := day(2024, 6, 30)
	records := []models.SalesRecord{
		{Date: d, Region: "North", Revenue: 100},
		{Date: d.AddDate(0, 0, -31), Region: "North", Revenue: 50},
		{Date: d, Region: "South", Revenue: 10},
	}

	got := RegionDeltas(records)
	want := []models.RegionDelta{
		{Region: "North", LastRevenue: 100, PrevRevenue: 50, ChangePct: 100},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RegionDeltas() mismatch (-want +got):\n%s", diff)
	}
}

func TestRegionDeltas_SkipsRegionWithoutPriorRevenue(t *testing.T) {
	d := day(2024, 6, 30)
	records := []models.SalesRecord{
		{Date: d, Region: "East", Revenue: 1_000_000},
		{Date: d.AddDate(0, 0, -10), Region: "East", Revenue: 500_000},
		// Older than both windows, must not count as prior revenue.
		{Date: d.AddDate(0, 0, -61), Region: "East", Revenue: 75},
		{Date: d.AddDate(0, 0, -40), Region: "West", Revenue: 0},
	}

	for _, delta := range RegionDeltas(records) {
		if delta.Region == "East" || delta.Region == "West" {
			t.Errorf("region %s should be skipped, got %+v", delta.Region, delta)
		}
	}
}

func TestRegionDeltas_WindowBoundaries(t *testing.T) {
	d := day(2024, 3, 31)
	records := []models.SalesRecord{
		{Date: d, Region: "North", Revenue: 10},
		{Date: d.AddDate(0, 0, -29), Region: "North", Revenue: 10}, // last window
		{Date: d.AddDate(0, 0, -30), Region: "North", Revenue: 40}, // prev window, inclusive upper bound
		{Date: d.AddDate(0, 0, -59), Region: "North", Revenue: 10}, // prev window
		{Date: d.AddDate(0, 0, -60), Region: "North", Revenue: 99}, // excluded
	}

	got := RegionDeltas(records)
	if len(got) != 1 {
		t.Fatalf("expected one delta, got %d", len(got))
	}
	if got[0].LastRevenue != 20 || got[0].PrevRevenue != 50 {
		t.Errorf("windows = (%f, %f), want (20, 50)", got[0].LastRevenue, got[0].PrevRevenue)
	}
	if math.Abs(got[0].ChangePct-(-60)) > 1e-9 {
		t.Errorf("ChangePct = %f, want -60", got[0].ChangePct)
	}
}

func TestInsights(t *testing.T) {
	tests := []struct {
		name       string
		deltas     []models.RegionDelta
		wantKinds  []models.InsightKind
		wantStable bool
		wantFirst  string
		wantLast   string
	}{
		{
			name:       "no deltas",
			deltas:     nil,
			wantStable: true,
		},
		{
			name: "all within threshold",
			deltas: []models.RegionDelta{
				{Region: "North", ChangePct: 19.9},
				{Region: "South", ChangePct: -20},
			},
			wantStable: true,
		},
		{
			name: "drop and increase",
			deltas: []models.RegionDelta{
				{Region: "North", ChangePct: -25.25},
				{Region: "South", ChangePct: 5},
				{Region: "East", ChangePct: 42.04},
			},
			wantKinds: []models.InsightKind{models.InsightDrop, models.InsightIncrease},
			wantFirst: "⚠️ Sales in the North region dropped 25.3% compared to the previous month.",
			wantLast:  "✅ Sales in the East region increased 42.0% compared to the previous month.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Insights(tt.deltas)
			if n.Stable != tt.wantStable {
				t.Errorf("Stable = %v, want %v", n.Stable, tt.wantStable)
			}
			if len(n.Insights) != len(tt.wantKinds) {
				t.Fatalf("got %d insights, want %d", len(n.Insights), len(tt.wantKinds))
			}
			for i, kind := range tt.wantKinds {
				if n.Insights[i].Kind != kind {
					t.Errorf("insight %d kind = %s, want %s", i, n.Insights[i].Kind, kind)
				}
			}
			if tt.wantFirst != "" && n.Insights[0].Message != tt.wantFirst {
				t.Errorf("message = %q, want %q", n.Insights[0].Message, tt.wantFirst)
			}
			if tt.wantLast != "" && n.Insights[len(n.Insights)-1].Message != tt.wantLast {
				t.Errorf("message = %q, want %q", n.Insights[len(n.Insights)-1].Message, tt.wantLast)
			}
		})
	}
}

func TestRiskAlerts(t *testing.T) {
	latest := day(2024, 12, 31)
	records := []models.SalesRecord{
		{Date: latest.AddDate(0, 0, -1), Region: "North", RiskFlag: true},
		{Date: latest, Region: "West", RiskFlag: true},
		{Date: latest, Region: "South", RiskFlag: false},
		{Date: latest, Region: "East", RiskFlag: true},
		{Date: latest, Region: "West", RiskFlag: true},
	}

	got := RiskAlerts(records)
	want := []string{"West", "East"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RiskAlerts() mismatch (-want +got):\n%s", diff)
	}

	if got := RiskAlerts(nil); len(got) != 0 {
		t.Errorf("RiskAlerts(nil) = %v, want empty", got)
	}
}

func TestRun_EmptySelection(t *testing.T) {
	records := randomRecords(t, 10)
	c := allCriteria(records)
	c.DateStart = day(2031, 1, 1)
	c.DateEnd = day(2031, 1, 31)

	snap := Run(records, c)

	if snap.Summary.TotalRevenue != 0 || snap.Summary.TotalUnits != 0 || snap.Summary.RiskAlerts != 0 {
		t.Errorf("expected zero KPIs, got %+v", snap.Summary)
	}
	if !math.IsNaN(snap.Summary.AvgDailyUnits) {
		t.Errorf("AvgDailyUnits = %f, want NaN", snap.Summary.AvgDailyUnits)
	}
	if len(snap.Series) != 0 {
		t.Errorf("expected empty series, got %d", len(snap.Series))
	}
	if !snap.RiskMatrix.Empty() {
		t.Errorf("expected empty risk matrix, got %+v", snap.RiskMatrix)
	}
	if len(snap.Deltas) != 0 || len(snap.AlertRegions) != 0 {
		t.Errorf("expected no deltas or alerts, got %v / %v", snap.Deltas, snap.AlertRegions)
	}
	if !snap.Narrative.Stable {
		t.Error("empty selection should read as stable")
	}
	if snap.ForecastEligible {
		t.Error("empty selection should not be forecast eligible")
	}
}

func TestRun_ForecastEligibility(t *testing.T) {
	tests := []struct {
		days int
		want bool
	}{
		{days: 30, want: false},
		{days: 31, want: true},
	}

	for _, tt := range tests {
		records := randomRecords(t, tt.days)
		snap := Run(records, allCriteria(records))
		if snap.ForecastEligible != tt.want {
			t.Errorf("%d days: ForecastEligible = %v, want %v", tt.days, snap.ForecastEligible, tt.want)
		}
	}
}

func TestOptions(t *testing.T) {
	records := randomRecords(t, 5)
	opts := Options(records)

	if diff := cmp.Diff(testProducts, opts.Products); diff != "" {
		t.Errorf("products mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(testRegions, opts.Regions); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
	if !opts.MinDate.Equal(day(2023, 1, 1)) || !opts.MaxDate.Equal(day(2023, 1, 5)) {
		t.Errorf("date bounds = %v..%v", opts.MinDate, opts.MaxDate)
	}
}
