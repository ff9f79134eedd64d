package server

import (
	"log/slog"
	"net/http"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/handlers"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	mux         *http.ServeMux
	logger      *slog.Logger
	metrics     *observability.Metrics
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(cfg *config.Config, analytics *services.Analytics, metrics *observability.Metrics, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:   analytics,
		mux:         http.NewServeMux(),
		logger:      logger,
		metrics:     metrics,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger, cfg.Upload.MaxBytes),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger, cfg.Forecast.HorizonDays, cfg.Upload.MaxBytes),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	// REST API endpoints
	s.mux.HandleFunc("GET /api/options", s.apiHandlers.HandleOptions)
	s.mux.HandleFunc("GET /api/summary", s.apiHandlers.HandleSummary)
	s.mux.HandleFunc("GET /api/timeseries", s.apiHandlers.HandleTimeSeries)
	s.mux.HandleFunc("GET /api/risk-matrix", s.apiHandlers.HandleRiskMatrix)
	s.mux.HandleFunc("GET /api/deltas", s.apiHandlers.HandleDeltas)
	s.mux.HandleFunc("GET /api/alerts", s.apiHandlers.HandleAlerts)
	s.mux.HandleFunc("GET /api/forecast", s.apiHandlers.HandleForecast)
	s.mux.HandleFunc("GET /api/records", s.apiHandlers.HandleRecords)
	s.mux.HandleFunc("GET /api/help", s.apiHandlers.HandleHelp)
	s.mux.HandleFunc("POST /api/upload", s.apiHandlers.HandleUpload)

	// Downloads and rendered charts
	s.mux.HandleFunc("GET /export/filtered_sales.csv", s.apiHandlers.HandleExportCSV)
	s.mux.HandleFunc("GET /export/filtered_sales.xlsx", s.apiHandlers.HandleExportXLSX)
	s.mux.HandleFunc("GET /charts/{name}", s.apiHandlers.HandleChart)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/dashboard", s.sseHandlers.HandleDashboard)
	s.mux.HandleFunc("GET /sse/help", s.sseHandlers.HandleHelp)
	s.mux.HandleFunc("POST /sse/upload", s.sseHandlers.HandleUpload)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
