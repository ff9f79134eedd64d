package services

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/forecast"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// dailyRecords builds one North/Product A row per day.
func dailyRecords(days int) []models.SalesRecord {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]models.SalesRecord, days)
	for i := range records {
		records[i] = models.SalesRecord{
			Date:      start.AddDate(0, 0, i),
			Product:   "Product A",
			Region:    "North",
			UnitsSold: 10 + i%5,
			Revenue:   300 + float64(i%7)*10,
			RiskFlag:  i%10 == 0,
		}
	}
	return records
}

func TestNewAnalytics(t *testing.T) {
	a := NewAnalytics()
	if a == nil {
		t.Fatal("NewAnalytics() returned nil")
	}
	if a.logger == nil {
		t.Error("logger should be initialized")
	}
	if a.forecaster == nil {
		t.Error("forecaster should be initialized")
	}
	if got := len(a.Dataset().Records); got != 0 {
		t.Errorf("new analytics should start empty, got %d records", got)
	}
}

func TestAnalytics_SetData(t *testing.T) {
	a := NewAnalytics(WithLogger(quietLogger()))
	records := []models.SalesRecord{
		{Date: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), Product: "Product B", Region: "South", UnitsSold: 3, Revenue: 90},
		{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Product: "Product A", Region: "North", UnitsSold: 5, Revenue: 150},
		{Date: time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), Product: "Product B", Region: "North", UnitsSold: 1, Revenue: 20},
	}
	a.SetData(records)

	want := models.FilterOptions{
		Products: []string{"Product B", "Product A"},
		Regions:  []string{"South", "North"},
		MinDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		MaxDate:  time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, a.Options()); diff != "" {
		t.Errorf("Options() mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalytics_Snapshot(t *testing.T) {
	a := NewAnalytics(WithLogger(quietLogger()))
	a.SetData(dailyRecords(10))

	snap := a.Snapshot(a.Options().Defaults())
	if snap.RecordCount != 10 {
		t.Errorf("RecordCount = %d, want 10", snap.RecordCount)
	}
	if len(snap.Series) != 10 {
		t.Errorf("Series length = %d, want 10", len(snap.Series))
	}
	if snap.Summary.RiskAlerts != 1 {
		t.Errorf("RiskAlerts = %d, want 1", snap.Summary.RiskAlerts)
	}
	if snap.ForecastEligible {
		t.Error("10 dates should not be forecast eligible")
	}

	none := a.Options().Defaults()
	none.Products = []string{}
	if got := a.Snapshot(none).RecordCount; got != 0 {
		t.Errorf("empty product selection should match nothing, got %d", got)
	}
}

func TestAnalytics_MinPoints(t *testing.T) {
	a := NewAnalytics(WithLogger(quietLogger()), WithMinPoints(5))
	a.SetData(dailyRecords(6))

	if !a.Snapshot(a.Options().Defaults()).ForecastEligible {
		t.Error("6 dates should be eligible with a threshold of 5")
	}
	if _, err := a.Forecast(context.Background(), a.Options().Defaults()); err != nil {
		t.Errorf("Forecast() error = %v", err)
	}
}

func TestAnalytics_Forecast(t *testing.T) {
	a := NewAnalytics(WithLogger(quietLogger()), WithForecaster(forecast.NewAdditive(), 14))
	a.SetData(dailyRecords(30))

	_, err := a.Forecast(context.Background(), a.Options().Defaults())
	if !stderrors.Is(err, ErrNotEnoughData) {
		t.Fatalf("30 dates: error = %v, want ErrNotEnoughData", err)
	}

	a.SetData(dailyRecords(31))
	result, err := a.Forecast(context.Background(), a.Options().Defaults())
	if err != nil {
		t.Fatalf("31 dates: Forecast() error = %v", err)
	}
	if result.History != 31 {
		t.Errorf("History = %d, want 31", result.History)
	}
	if got := len(result.Future()); got != 14 {
		t.Errorf("future points = %d, want 14", got)
	}
}

type failingForecaster struct{}

func (failingForecaster) Forecast(context.Context, []forecast.Observation, int) (*forecast.Result, error) {
	return nil, stderrors.New("solver exploded")
}

func TestAnalytics_ForecastError(t *testing.T) {
	a := NewAnalytics(WithLogger(quietLogger()), WithForecaster(failingForecaster{}, 30))
	a.SetData(dailyRecords(40))

	_, err := a.Forecast(context.Background(), a.Options().Defaults())
	if err == nil || !strings.Contains(err.Error(), "solver exploded") {
		t.Errorf("Forecast() error = %v, want wrapped forecaster error", err)
	}
}

func TestAnalytics_LoadFromFile_ValidData(t *testing.T) {
	validCSV := "Date,Product,Region,Units Sold,Revenue,Risk Flag\n" +
		"2024-01-01,Product A,North,10,250.5,0\n" +
		"2024-01-02,Product B,South,4,80,1\n"

	a := NewAnalytics(WithLogger(quietLogger()))
	if err := a.LoadFromFile(context.Background(), createTempCSV(t, validCSV)); err != nil {
		t.Fatalf("LoadFromFile() with valid data should not error, got: %v", err)
	}

	ds := a.Dataset()
	if ds.Source != "sales.csv" {
		t.Errorf("Source = %q, want sales.csv", ds.Source)
	}
	if len(ds.Records) != 2 {
		t.Errorf("loaded %d records, want 2", len(ds.Records))
	}
}

func TestAnalytics_LoadFromFile_InvalidData(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty file", ""},
		{"missing column", "Date,Product,Region,Units Sold,Revenue\n2024-01-01,A,North,1,10\n"},
		{"invalid date", "Date,Product,Region,Units Sold,Revenue,Risk Flag\nnot-a-date,A,North,1,10,0\n"},
		{"invalid units", "Date,Product,Region,Units Sold,Revenue,Risk Flag\n2024-01-01,A,North,many,10,0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalytics(WithLogger(quietLogger()))
			a.SetData(dailyRecords(3))
			before := a.Dataset()

			if err := a.LoadFromFile(context.Background(), createTempCSV(t, tt.csv)); err == nil {
				t.Error("LoadFromFile() should error")
			}
			if a.Dataset() != before {
				t.Error("failed load must keep the previous dataset")
			}
		})
	}
}

func TestAnalytics_LoadFromFile_Missing(t *testing.T) {
	a := NewAnalytics(WithLogger(quietLogger()))
	if err := a.LoadFromFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("LoadFromFile() should error for a missing file")
	}
}

func TestAnalytics_Upload(t *testing.T) {
	metrics := observability.NewMetrics()
	a := NewAnalytics(WithLogger(quietLogger()), WithMetrics(metrics))
	a.SetData(dailyRecords(3))
	before := a.Dataset()

	_, err := a.Upload(context.Background(), "sales.txt", strings.NewReader("whatever"))
	if !stderrors.Is(err, dataset.ErrUnsupportedFormat) {
		t.Fatalf("Upload(.txt) error = %v, want ErrUnsupportedFormat", err)
	}
	if a.Dataset() != before {
		t.Fatal("failed upload must keep the previous dataset")
	}

	var sb strings.Builder
	if err := dataset.EncodeCSV(&sb, dailyRecords(8)); err != nil {
		t.Fatal(err)
	}
	preview, err := a.Upload(context.Background(), "upload.csv", strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(preview) != previewRows {
		t.Errorf("preview rows = %d, want %d", len(preview), previewRows)
	}
	if a.Dataset() == before || a.Dataset().Source != "upload.csv" {
		t.Error("successful upload should replace the dataset")
	}
	if len(a.Dataset().Records) != 8 {
		t.Errorf("active records = %d, want 8", len(a.Dataset().Records))
	}
}

func TestAnalytics_LoadGenerated(t *testing.T) {
	cfg := dataset.DefaultGeneratorConfig()
	cfg.EndDate = cfg.StartDate.AddDate(0, 0, 9)

	a := NewAnalytics(WithLogger(quietLogger()))
	a.LoadGenerated(cfg, dataset.NewCache(t.TempDir(), quietLogger()))

	ds := a.Dataset()
	if ds.Source != dataset.GeneratedSource {
		t.Errorf("Source = %q, want %q", ds.Source, dataset.GeneratedSource)
	}
	if want := 10 * len(cfg.Products) * len(cfg.Regions); len(ds.Records) != want {
		t.Errorf("generated %d records, want %d", len(ds.Records), want)
	}
}

func TestAnalytics_Stats(t *testing.T) {
	a := NewAnalytics(WithLogger(quietLogger()))
	a.SetData(dailyRecords(5))

	stats := a.Stats()
	if stats["record_count"] != 5 {
		t.Errorf("record_count = %v, want 5", stats["record_count"])
	}
	if stats["min_date"] != "2024-01-01" || stats["max_date"] != "2024-01-05" {
		t.Errorf("date bounds = %v..%v", stats["min_date"], stats["max_date"])
	}
}

func TestAnalytics_ConcurrentAccess(t *testing.T) {
	a := NewAnalytics(WithLogger(quietLogger()))
	a.SetData(dailyRecords(60))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				a.SetData(dailyRecords(40 + i))
				return
			}
			_ = a.Snapshot(a.Options().Defaults())
			_ = a.Filtered(a.Options().Defaults())
			_ = a.Stats()
		}(i)
	}
	wg.Wait()
}

func TestAnalytics_EmptyData(t *testing.T) {
	a := NewAnalytics(WithLogger(quietLogger()))

	snap := a.Snapshot(a.Options().Defaults())
	if snap.RecordCount != 0 {
		t.Errorf("RecordCount = %d, want 0", snap.RecordCount)
	}
	if len(snap.AlertRegions) != 0 {
		t.Errorf("AlertRegions = %v, want empty", snap.AlertRegions)
	}
	if _, err := a.Forecast(context.Background(), a.Options().Defaults()); !stderrors.Is(err, ErrNotEnoughData) {
		t.Errorf("Forecast() on empty data error = %v", err)
	}
}

func BenchmarkAnalytics_Snapshot(b *testing.B) {
	a := NewAnalytics(WithLogger(quietLogger()))
	a.LoadGenerated(dataset.DefaultGeneratorConfig(), nil)
	c := a.Options().Defaults()

	b.ResetTimer()
	for b.Loop() {
		_ = a.Snapshot(c)
	}
}
