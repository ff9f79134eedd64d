package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	pipelineDuration  prometheus.Histogram
	forecastDuration  prometheus.Histogram
	uploadsTotal      *prometheus.CounterVec
	datasetRecords    prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_duration_seconds",
			Help:    "Time spent filtering and aggregating the active dataset.",
			Buckets: prometheus.DefBuckets,
		}),
		forecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_duration_seconds",
			Help:    "Time spent fitting and projecting revenue forecasts.",
			Buckets: prometheus.DefBuckets,
		}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataset_uploads_total",
			Help: "Dataset uploads by outcome.",
		}, []string{"outcome"}),
		datasetRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dataset_records",
			Help: "Number of records in the active dataset.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.pipelineDuration,
		m.forecastDuration,
		m.uploadsTotal,
		m.datasetRecords,
	)

	return m
}

// ObserveRequest records one completed request. route should be the mux
// pattern, not the raw path, to bound label cardinality.
func (m *Metrics) ObserveRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) ObservePipeline(duration time.Duration) {
	if m == nil {
		return
	}
	m.pipelineDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObserveForecast(duration time.Duration) {
	if m == nil {
		return
	}
	m.forecastDuration.Observe(duration.Seconds())
}

func (m *Metrics) UploadResult(success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.uploadsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetDatasetRecords(n int) {
	if m == nil {
		return
	}
	m.datasetRecords.Set(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
