package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/forecast"
	"sales-dashboard/internal/help"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/server"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

const (
	renderTimeout   = 10 * time.Second
	datasetLoadTime = 30 * time.Second
)

// newDashboardHandler renders the page shell for the current dataset; every
// panel is filled in by /sse/dashboard once the page loads.
func newDashboardHandler(analytics *services.Analytics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		data := templates.PageData{
			Options:         analytics.Options(),
			HelpQuery:       help.DefaultQuery,
			CommonQuestions: help.CommonQuestions(),
		}

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.Dashboard(data).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

func generatorConfig(cfg config.DatasetConfig) dataset.GeneratorConfig {
	gen := dataset.DefaultGeneratorConfig()
	gen.Seed = cfg.Seed
	gen.StartDate = cfg.Start
	gen.EndDate = cfg.End
	return gen
}

func loadDataset(ctx context.Context, cfg config.DatasetConfig, analytics *services.Analytics, logger *slog.Logger) error {
	if cfg.File != "" {
		return analytics.LoadFromFile(ctx, cfg.File)
	}

	var cache *dataset.Cache
	if cfg.CacheDir != "" {
		cache = dataset.NewCache(cfg.CacheDir, logger)
	}
	analytics.LoadGenerated(generatorConfig(cfg), cache)
	return nil
}

func newAnalytics(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *services.Analytics {
	return services.NewAnalytics(
		services.WithForecaster(forecast.NewAdditive(), cfg.Forecast.HorizonDays),
		services.WithMinPoints(cfg.Forecast.MinPoints),
		services.WithMetrics(metrics),
		services.WithLogger(logger),
	)
}

func newHandler(cfg *config.Config, analytics *services.Analytics, metrics *observability.Metrics, logger *slog.Logger) http.Handler {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: newDashboardHandler(analytics),
	}

	srv := server.NewServer(cfg, analytics, metrics, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.Metrics(metrics),
	)

	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	metrics := observability.NewMetrics()
	analytics := newAnalytics(cfg, metrics, logger)

	ctx, cancel := context.WithTimeout(context.Background(), datasetLoadTime)
	defer cancel()

	start := time.Now()
	if err := loadDataset(ctx, cfg.Dataset, analytics, logger); err != nil {
		logger.Error("failed to load dataset", "error", err)
		os.Exit(1)
	}
	logger.Info("dataset loaded successfully", "duration", time.Since(start))

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, analytics, metrics, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("shutting down analytics service", "stats", analytics.Stats())
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
