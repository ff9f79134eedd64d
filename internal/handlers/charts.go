package handlers

import (
	"net/http"
	"strings"

	"sales-dashboard/internal/charts"
	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/observability"
)

const (
	chartRevenue            = "revenue"
	chartRiskHeatmap        = "risk-heatmap"
	chartForecast           = "forecast"
	chartForecastComponents = "forecast-components"
	chartDeltas             = "deltas"
)

// HandleChart serves /charts/{name}.png rendered for the request's criteria.
func (h *APIHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	name, ok := strings.CutSuffix(r.PathValue("name"), ".png")
	if !ok {
		errors.WriteError(w, h.logger, errors.NotFound("unknown chart"), requestID)
		return
	}

	c, ok := h.criteria(w, r)
	if !ok {
		return
	}

	var (
		data []byte
		err  error
	)
	switch name {
	case chartRevenue:
		data, err = charts.RevenueOverTime(h.analytics.Snapshot(c).Series)
	case chartRiskHeatmap:
		data, err = charts.RiskHeatmap(h.analytics.Snapshot(c).RiskMatrix)
	case chartDeltas:
		data, err = charts.DeltaBars(h.analytics.Snapshot(c).Deltas)
	case chartForecast, chartForecastComponents:
		result, ferr := h.analytics.Forecast(r.Context(), c)
		if ferr != nil {
			errors.WriteError(w, h.logger, forecastError(ferr), requestID)
			return
		}
		if name == chartForecast {
			data, err = charts.ForecastPlot(result)
		} else {
			data, err = charts.ForecastComponents(result)
		}
	default:
		errors.WriteError(w, h.logger, errors.NotFound("unknown chart "+name), requestID)
		return
	}

	if err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "chart rendering failed"), requestID)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
