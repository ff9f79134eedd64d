package handlers

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/help"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const (
	defaultRecordLimit = 100
	maxRecordLimit     = 5000
)

type APIHandlers struct {
	analytics      *services.Analytics
	logger         *slog.Logger
	maxUploadBytes int64
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger, maxUploadBytes int64) *APIHandlers {
	return &APIHandlers{
		analytics:      analytics,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// criteria resolves the request's filter and writes the error response
// itself when the filter is invalid.
func (h *APIHandlers) criteria(w http.ResponseWriter, r *http.Request) (models.FilterCriteria, bool) {
	c, err := criteriaFromQuery(r.URL.Query(), h.analytics.Options())
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return c, false
	}
	return c, true
}

func (h *APIHandlers) snapshot(w http.ResponseWriter, r *http.Request) (models.Snapshot, bool) {
	c, ok := h.criteria(w, r)
	if !ok {
		return models.Snapshot{}, false
	}

	_, span := observability.StartSpan(r.Context(), "pipeline.run")
	snap := h.analytics.Snapshot(c)
	span.SetTag("records", strconv.Itoa(snap.RecordCount))
	span.Finish()
	observability.LoggerFrom(r.Context(), h.logger).Debug("pipeline finished", "span", span)

	return snap, true
}

func (h *APIHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Options())
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	errors.WriteSuccess(w, map[string]any{
		"criteria":     snap.Criteria,
		"record_count": snap.RecordCount,
		"summary":      snap.Summary,
		"display":      snap.Summary.Display(),
	})
}

func (h *APIHandlers) HandleTimeSeries(w http.ResponseWriter, r *http.Request) {
	c, ok := h.criteria(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, h.analytics.Snapshot(c).Series)
}

func (h *APIHandlers) HandleRiskMatrix(w http.ResponseWriter, r *http.Request) {
	c, ok := h.criteria(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, h.analytics.Snapshot(c).RiskMatrix)
}

func (h *APIHandlers) HandleDeltas(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	errors.WriteSuccess(w, map[string]any{
		"deltas":    snap.Deltas,
		"narrative": snap.Narrative,
	})
}

func (h *APIHandlers) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, map[string]any{
		"count":   snap.Summary.RiskAlerts,
		"regions": snap.AlertRegions,
	})
}

func (h *APIHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	c, ok := h.criteria(w, r)
	if !ok {
		return
	}

	ctx, span := observability.StartSpan(r.Context(), "forecast.fit")
	result, err := h.analytics.Forecast(ctx, c)
	if err != nil {
		span.SetError(err)
	}
	span.Finish()
	observability.LoggerFrom(ctx, h.logger).Debug("forecast finished", "span", span)

	if err != nil {
		errors.WriteError(w, h.logger, forecastError(err), observability.GetRequestID(r.Context()))
		return
	}
	errors.WriteSuccess(w, result)
}

func forecastError(err error) error {
	if stderrors.Is(err, services.ErrNotEnoughData) {
		return errors.NoData("Not enough data to generate forecast.")
	}
	return errors.InternalWrap(err, "forecast failed")
}

func (h *APIHandlers) HandleRecords(w http.ResponseWriter, r *http.Request) {
	c, ok := h.criteria(w, r)
	if !ok {
		return
	}

	limit := defaultRecordLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errors.WriteError(w, h.logger, errors.Validation("limit must be a non-negative integer"), observability.GetRequestID(r.Context()))
			return
		}
		limit = min(n, maxRecordLimit)
	}

	records := h.analytics.Filtered(c)
	total := len(records)
	if len(records) > limit {
		records = records[:limit]
	}

	errors.WriteSuccess(w, map[string]any{
		"total":   total,
		"records": records,
	})
}

func (h *APIHandlers) HandleHelp(w http.ResponseWriter, r *http.Request) {
	answer, ok := help.Ask(r.URL.Query().Get("q"))
	if !ok {
		errors.WriteError(w, h.logger, errors.Validation("query parameter q is required"), observability.GetRequestID(r.Context()))
		return
	}
	errors.WriteSuccess(w, map[string]any{
		"answer":           answer,
		"common_questions": help.CommonQuestions(),
	})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {

	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {

	stats := h.analytics.Stats()

	errors.WriteSuccess(w, stats)
}
