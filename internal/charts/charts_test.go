package charts

import (
	"bytes"
	"context"
	"image/png"
	"testing"
	"time"

	"gonum.org/v1/plot/palette"

	"sales-dashboard/internal/forecast"
	"sales-dashboard/internal/models"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func assertPNG(t *testing.T, name string, data []byte, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: render failed: %v", name, err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Fatalf("%s: output is not a PNG", name)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("%s: PNG does not decode: %v", name, err)
	}
}

func sampleSeries(days int) []models.DailyTotal {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make([]models.DailyTotal, days)
	for i := range series {
		series[i] = models.DailyTotal{
			Date:    start.AddDate(0, 0, i),
			Units:   int64(200 + i%7),
			Revenue: 6000 + float64(i%7)*120,
		}
	}
	return series
}

func TestRevenueOverTime(t *testing.T) {
	data, err := RevenueOverTime(sampleSeries(45))
	assertPNG(t, "populated", data, err)

	data, err = RevenueOverTime(nil)
	assertPNG(t, "empty", data, err)
}

func TestRiskHeatmap(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := models.RiskMatrix{
		Regions: []string{"East", "North"},
		Dates:   []time.Time{start, start.AddDate(0, 0, 1), start.AddDate(0, 0, 2)},
		Cells:   [][]int{{0, 1, 0}, {2, 0, 0}},
	}
	data, err := RiskHeatmap(m)
	assertPNG(t, "populated", data, err)

	single := models.RiskMatrix{
		Regions: []string{"West"},
		Dates:   []time.Time{start},
		Cells:   [][]int{{0}},
	}
	data, err = RiskHeatmap(single)
	assertPNG(t, "single cell", data, err)

	data, err = RiskHeatmap(models.RiskMatrix{})
	assertPNG(t, "empty", data, err)
}

func TestRiskPalette(t *testing.T) {
	heat := palette.Heat(12, 1)
	p := riskPalette{heat}

	want := heat.Colors()
	got := p.Colors()
	if len(got) != len(want) {
		t.Fatalf("palette has %d colors, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[len(want)-1-i] {
			t.Fatalf("color %d = %v, want %v", i, got[i], want[len(want)-1-i])
		}
	}
	if heat.Colors()[0] != want[0] {
		t.Error("reversing must not modify the underlying palette")
	}
}

func TestForecastCharts(t *testing.T) {
	series := sampleSeries(60)
	obs := make([]forecast.Observation, len(series))
	for i, d := range series {
		obs[i] = forecast.Observation{Date: d.Date, Value: d.Revenue}
	}
	result, err := forecast.NewAdditive().Forecast(context.Background(), obs, forecast.DefaultHorizon)
	if err != nil {
		t.Fatalf("Forecast() failed: %v", err)
	}

	data, err := ForecastPlot(result)
	assertPNG(t, "forecast", data, err)

	data, err = ForecastComponents(result)
	assertPNG(t, "components", data, err)

	data, err = ForecastPlot(nil)
	assertPNG(t, "nil forecast", data, err)
}

func TestDeltaBars(t *testing.T) {
	deltas := []models.RegionDelta{
		{Region: "North", ChangePct: 12.5},
		{Region: "South", ChangePct: -30},
		{Region: "East", ChangePct: 0},
	}
	data, err := DeltaBars(deltas)
	assertPNG(t, "populated", data, err)

	data, err = DeltaBars(nil)
	assertPNG(t, "empty", data, err)
}

func TestDateIndexTicks(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, 100)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}

	ticks := dateIndexTicks(dates).Ticks(0, 99)
	if len(ticks) > 8 {
		t.Errorf("expected at most 8 ticks, got %d", len(ticks))
	}
	if ticks[0].Label != "2024-01-01" {
		t.Errorf("first tick label = %q", ticks[0].Label)
	}
}
