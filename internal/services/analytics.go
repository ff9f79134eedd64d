package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/forecast"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/pipeline"
)

const previewRows = 5

var ErrNotEnoughData = errors.New("not enough data to generate forecast")

// Analytics holds the active dataset and answers every dashboard query
// against it. The dataset is read-only once set; an upload swaps it whole.
type Analytics struct {
	mu         sync.RWMutex
	dataset    *models.Dataset
	options    models.FilterOptions
	forecaster forecast.Forecaster
	horizon    int
	minPoints  int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

type Option func(*Analytics)

func WithForecaster(f forecast.Forecaster, horizon int) Option {
	return func(a *Analytics) {
		a.forecaster = f
		a.horizon = horizon
	}
}

// WithMinPoints sets the number of distinct dates a series must exceed
// before it is forecast.
func WithMinPoints(n int) Option {
	return func(a *Analytics) {
		a.minPoints = n
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(a *Analytics) {
		a.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) {
		a.logger = logger
	}
}

func NewAnalytics(opts ...Option) *Analytics {
	a := &Analytics{
		dataset:    models.NewDataset("empty", nil),
		options:    pipeline.Options(nil),
		forecaster: forecast.NewAdditive(),
		horizon:    forecast.DefaultHorizon,
		minPoints:  pipeline.MinForecastDates,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analytics) SetDataset(ds *models.Dataset) {
	opts := pipeline.Options(ds.Records)

	a.mu.Lock()
	a.dataset = ds
	a.options = opts
	a.mu.Unlock()

	a.metrics.SetDatasetRecords(len(ds.Records))
	a.logger.Info("active dataset replaced",
		"dataset_id", ds.ID,
		"source", ds.Source,
		"records", len(ds.Records),
	)
}

// SetData installs records as an anonymous dataset.
func (a *Analytics) SetData(records []models.SalesRecord) {
	a.SetDataset(models.NewDataset("memory", records))
}

// LoadGenerated installs the synthetic dataset, going through cache when given.
func (a *Analytics) LoadGenerated(cfg dataset.GeneratorConfig, cache *dataset.Cache) {
	start := time.Now()
	var records []models.SalesRecord
	if cache != nil {
		records = cache.Generate(cfg)
	} else {
		records = dataset.Generate(cfg)
	}
	a.logger.Info("generated dataset ready",
		"seed", cfg.Seed,
		"records", len(records),
		"duration", time.Since(start),
	)
	a.SetDataset(models.NewDataset(dataset.GeneratedSource, records))
}

// LoadFromFile installs a CSV or XLSX file from disk.
func (a *Analytics) LoadFromFile(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	start := time.Now()
	records, err := dataset.ParseUpload(ctx, filepath.Base(path), file)
	if err != nil {
		return err
	}

	duration := time.Since(start)
	a.logger.Info("dataset file processed",
		"path", path,
		"records", len(records),
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(len(records))/duration.Seconds()),
	)
	a.SetDataset(models.NewDataset(filepath.Base(path), records))
	return nil
}

// Upload parses an uploaded file and, only on success, makes it the active
// dataset. It returns the leading rows for preview.
func (a *Analytics) Upload(ctx context.Context, filename string, r io.Reader) ([]models.SalesRecord, error) {
	records, err := dataset.ParseUpload(ctx, filename, r)
	a.metrics.UploadResult(err == nil)
	if err != nil {
		a.logger.Warn("upload rejected", "filename", filename, "error", err)
		return nil, err
	}

	a.SetDataset(models.NewDataset(filename, records))
	return dataset.Preview(records, previewRows), nil
}

func (a *Analytics) Dataset() *models.Dataset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dataset
}

func (a *Analytics) Options() models.FilterOptions {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.options
}

func (a *Analytics) records() []models.SalesRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dataset.Records
}

func (a *Analytics) Filtered(c models.FilterCriteria) []models.SalesRecord {
	return pipeline.Filter(a.records(), c)
}

// Snapshot runs the full pipeline for c.
func (a *Analytics) Snapshot(c models.FilterCriteria) models.Snapshot {
	start := time.Now()
	snap := pipeline.Run(a.records(), c)
	snap.ForecastEligible = len(snap.Series) > a.minPoints
	a.metrics.ObservePipeline(time.Since(start))
	return snap
}

// Forecast projects daily revenue for the filtered set. Series with
// minPoints or fewer dates return ErrNotEnoughData.
func (a *Analytics) Forecast(ctx context.Context, c models.FilterCriteria) (*forecast.Result, error) {
	series := pipeline.DailySeries(a.Filtered(c))
	return a.ForecastSeries(ctx, series)
}

func (a *Analytics) ForecastSeries(ctx context.Context, series []models.DailyTotal) (*forecast.Result, error) {
	if len(series) <= a.minPoints {
		return nil, ErrNotEnoughData
	}

	obs := make([]forecast.Observation, len(series))
	for i, d := range series {
		obs[i] = forecast.Observation{Date: d.Date, Value: d.Revenue}
	}

	start := time.Now()
	result, err := a.forecaster.Forecast(ctx, obs, a.horizon)
	a.metrics.ObserveForecast(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	return result, nil
}

// Utility method for monitoring
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return map[string]any{
		"dataset_id":   a.dataset.ID.String(),
		"source":       a.dataset.Source,
		"record_count": len(a.dataset.Records),
		"loaded_at":    a.dataset.LoadedAt,
		"products":     len(a.options.Products),
		"regions":      len(a.options.Regions),
		"min_date":     a.options.MinDate.Format(models.DateLayout),
		"max_date":     a.options.MaxDate.Format(models.DateLayout),
	}
}
