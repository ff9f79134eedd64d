package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/help"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

const maxTableRows = 50

var fragments = template.Must(template.New("fragments").Funcs(template.FuncMap{
	"date": func(r models.SalesRecord) string { return r.Date.Format(models.DateLayout) },
	"join": strings.Join,
}).Parse(`
{{define "kpis"}}<div id="kpi-cards" class="kpi-grid">
<div class="kpi-card"><span class="kpi-label">💰 Total Revenue</span><span class="kpi-value">{{.TotalRevenue}}</span></div>
<div class="kpi-card"><span class="kpi-label">📦 Total Units Sold</span><span class="kpi-value">{{.TotalUnits}}</span></div>
<div class="kpi-card"><span class="kpi-label">📊 Avg Daily Sales</span><span class="kpi-value">{{.AvgDailyUnits}}</span></div>
<div class="kpi-card"><span class="kpi-label">🚨 Risk Alerts</span><span class="kpi-value">{{.RiskAlerts}}</span></div>
</div>{{end}}

{{define "charts"}}<div id="charts">
<img id="revenue-chart" src="/charts/revenue.png?{{.Query}}" alt="Revenue Over Time">
{{if .HasRisk}}<img id="risk-chart" src="/charts/risk-heatmap.png?{{.Query}}" alt="Risk Alerts Over Time by Region">{{else}}<p class="empty">No risk data for the current selection.</p>{{end}}
</div>{{end}}

{{define "table"}}<div id="sales-table">
<table class="modern-table">
<thead><tr><th>Date</th><th>Product</th><th>Region</th><th>Units Sold</th><th>Revenue</th><th>Risk Flag</th></tr></thead>
<tbody>
{{range .Rows}}<tr>
<td>{{date .}}</td>
<td>{{.Product}}</td>
<td>{{.Region}}</td>
<td>{{.UnitsSold}}</td>
<td>{{printf "%.2f" .Revenue}}</td>
<td>{{if .RiskFlag}}1{{else}}0{{end}}</td>
</tr>{{end}}
</tbody>
</table>
<p class="table-note">Showing {{len .Rows}} of {{.Total}} rows.</p>
<a class="button" href="/export/filtered_sales.csv?{{.Query}}">⬇️ Download Filtered Data</a>
<a class="button" href="/export/filtered_sales.xlsx?{{.Query}}">⬇️ Download as Excel</a>
</div>{{end}}

{{define "alert"}}<div id="risk-alert">{{if .}}<div class="alert alert-error">⚠️ Risk Alert: Issues detected in regions: {{join . ", "}}</div>{{else}}<div class="alert alert-success">✅ No risk alerts in the most recent data.</div>{{end}}</div>{{end}}

{{define "insights"}}<div id="insights">
{{if .Narrative.Stable}}<div class="alert alert-success">Sales performance is stable across all regions.</div>{{else}}{{range .Narrative.Insights}}<div class="alert alert-info">{{.Message}}</div>{{end}}{{end}}
{{if .Deltas}}<img id="deltas-chart" src="/charts/deltas.png?{{.Query}}" alt="Revenue Change by Region">{{end}}
</div>{{end}}

{{define "forecast"}}<div id="forecast">
{{if .Eligible}}<p>Forecast for the next {{.Horizon}} days:</p>
<img id="forecast-chart" src="/charts/forecast.png?{{.Query}}" alt="Revenue forecast">
<p>Forecast components:</p>
<img id="forecast-components-chart" src="/charts/forecast-components.png?{{.Query}}" alt="Forecast components">{{else}}<div class="alert alert-warning">Not enough data to generate forecast. Please adjust your filters to include more data.</div>{{end}}
</div>{{end}}

{{define "filterError"}}<div id="filter-error">{{if .}}<div class="alert alert-error">{{.}}</div>{{end}}</div>{{end}}

{{define "uploadStatus"}}<div id="upload-status">{{if .Error}}<div class="alert alert-error">{{.Error}}</div>{{else}}<div class="alert alert-success">File uploaded successfully!</div>
<p>📄 <strong>Preview of Uploaded Data</strong></p>
<table class="modern-table">
<thead><tr><th>Date</th><th>Product</th><th>Region</th><th>Units Sold</th><th>Revenue</th><th>Risk Flag</th></tr></thead>
<tbody>
{{range .Preview}}<tr><td>{{date .}}</td><td>{{.Product}}</td><td>{{.Region}}</td><td>{{.UnitsSold}}</td><td>{{printf "%.2f" .Revenue}}</td><td>{{if .RiskFlag}}1{{else}}0{{end}}</td></tr>{{end}}
</tbody>
</table>{{end}}</div>{{end}}

{{define "help"}}<div id="help-answer">{{if .}}<div class="alert alert-info">{{.Answer}}</div>{{end}}</div>{{end}}
`))

type SSEHandlers struct {
	analytics      *services.Analytics
	logger         *slog.Logger
	horizon        int
	maxUploadBytes int64
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger, horizon int, maxUploadBytes int64) *SSEHandlers {
	return &SSEHandlers{
		analytics:      analytics,
		logger:         logger,
		horizon:        horizon,
		maxUploadBytes: maxUploadBytes,
	}
}

func render(name string, data any) (string, error) {
	var buf strings.Builder
	err := fragments.ExecuteTemplate(&buf, name, data)
	return buf.String(), err
}

type tableData struct {
	Rows  []models.SalesRecord
	Total int
	Query template.URL
}

type chartData struct {
	Query   template.URL
	HasRisk bool
}

type insightData struct {
	Narrative models.Narrative
	Deltas    []models.RegionDelta
	Query     template.URL
}

type forecastData struct {
	Eligible bool
	Horizon  int
	Query    template.URL
}

// HandleDashboard recomputes every dashboard view for the filter signals and
// patches them in one response.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())
	logger := observability.LoggerFrom(r.Context(), h.logger)

	var signals criteriaInput
	if err := datastar.ReadSignals(r, &signals); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid datastar signals"), requestID)
		return
	}

	c, cerr := signals.resolve(h.analytics.Options())

	sse := datastar.NewSSE(w, r)

	if cerr != nil {
		msg := cerr.Error()
		var appErr *errors.AppError
		if stderrors.As(cerr, &appErr) {
			msg = appErr.Message
		}
		html, err := render("filterError", msg)
		if err != nil {
			logger.Error("render filter error", "error", err)
			return
		}
		sse.PatchElements(html)
		return
	}

	if err := h.patchDashboard(sse, c); err != nil {
		logger.Error("patch dashboard", "error", err)
		return
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) patchDashboard(sse *datastar.ServerSentEventGenerator, c models.FilterCriteria) error {
	snap := h.analytics.Snapshot(c)
	query := encodeCriteria(c)
	query.Set("v", h.analytics.Dataset().ID.String())
	encoded := template.URL(query.Encode())

	rows := h.analytics.Filtered(c)
	if len(rows) > maxTableRows {
		rows = rows[:maxTableRows]
	}

	parts := []struct {
		name string
		data any
	}{
		{"filterError", ""},
		{"kpis", snap.Summary.Display()},
		{"charts", chartData{Query: encoded, HasRisk: !snap.RiskMatrix.Empty()}},
		{"table", tableData{Rows: rows, Total: snap.RecordCount, Query: encoded}},
		{"alert", snap.AlertRegions},
		{"insights", insightData{Narrative: snap.Narrative, Deltas: snap.Deltas, Query: encoded}},
		{"forecast", forecastData{Eligible: snap.ForecastEligible, Horizon: h.horizon, Query: encoded}},
	}

	for _, p := range parts {
		html, err := render(p.name, p.data)
		if err != nil {
			return fmt.Errorf("render %s: %w", p.name, err)
		}
		sse.PatchElements(html)
	}

	jsonData, err := json.Marshal(map[string]any{
		"recordCount": snap.RecordCount,
		"summary":     snap.Summary,
	})
	if err != nil {
		return fmt.Errorf("marshal summary signals: %w", err)
	}
	sse.PatchSignals(jsonData)
	return nil
}

// HandleUpload swaps in an uploaded dataset, resets the filters to the new
// dataset's values and redraws the dashboard. A failed upload only patches
// the status message.
func (h *SSEHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFrom(r.Context(), h.logger)
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, ferr := r.FormFile("file")

	sse := datastar.NewSSE(w, r)

	if ferr != nil {
		h.patchUploadStatus(sse, uploadStatus{Error: errors.UploadFailed(ferr).Message}, logger)
		return
	}
	defer file.Close()

	preview, err := h.analytics.Upload(r.Context(), header.Filename, file)
	if err != nil {
		h.patchUploadStatus(sse, uploadStatus{Error: errors.UploadFailed(err).Message}, logger)
		return
	}
	h.patchUploadStatus(sse, uploadStatus{Filename: header.Filename, Preview: preview}, logger)

	opts := h.analytics.Options()
	var widgets strings.Builder
	if err := templates.FilterWidgets(opts).Render(r.Context(), &widgets); err != nil {
		logger.Error("render filter widgets", "error", err)
		return
	}
	sse.PatchElements(widgets.String())

	signals := templates.Signals(opts, "")
	delete(signals, "query")
	jsonData, err := json.Marshal(signals)
	if err != nil {
		logger.Error("marshal filter signals", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	if err := h.patchDashboard(sse, opts.Defaults()); err != nil {
		logger.Error("patch dashboard", "error", err)
		return
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

type uploadStatus struct {
	Filename string
	Preview  []models.SalesRecord
	Error    string
}

func (h *SSEHandlers) patchUploadStatus(sse *datastar.ServerSentEventGenerator, status uploadStatus, logger *slog.Logger) {
	html, err := render("uploadStatus", status)
	if err != nil {
		logger.Error("render upload status", "error", err)
		return
	}
	sse.PatchElements(html)
}

type helpSignals struct {
	Query string `json:"query"`
}

func (h *SSEHandlers) HandleHelp(w http.ResponseWriter, r *http.Request) {
	var signals helpSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid datastar signals"), observability.GetRequestID(r.Context()))
		return
	}

	sse := datastar.NewSSE(w, r)

	var answer *help.Answer
	if a, ok := help.Ask(signals.Query); ok {
		answer = &a
	}
	html, err := render("help", answer)
	if err != nil {
		h.logger.Error("render help answer", "error", err)
		return
	}
	sse.PatchElements(html)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
