package handlers

import (
	"bytes"
	stderrors "errors"
	"io"
	"net/http"

	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
)

const (
	exportBaseName = "filtered_sales"
	xlsxMediaType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (h *APIHandlers) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, ".csv", "text/csv; charset=utf-8", dataset.EncodeCSV)
}

func (h *APIHandlers) HandleExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, ".xlsx", xlsxMediaType, dataset.EncodeXLSX)
}

func (h *APIHandlers) export(w http.ResponseWriter, r *http.Request, ext, contentType string, encode func(io.Writer, []models.SalesRecord) error) {
	c, ok := h.criteria(w, r)
	if !ok {
		return
	}

	records := h.analytics.Filtered(c)

	// Encode fully before writing so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := encode(&buf, records); err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "export failed"), observability.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportBaseName+ext+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("export write failed", "error", err, "request_id", observability.GetRequestID(r.Context()))
	}
}

// HandleUpload replaces the active dataset with the uploaded CSV or XLSX file.
// On any failure the previous dataset stays active.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			errors.WriteError(w, h.logger, errors.UploadFailed(err), requestID)
			return
		}
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "multipart field \"file\" is required"), requestID)
		return
	}
	defer file.Close()

	preview, err := h.analytics.Upload(r.Context(), header.Filename, file)
	if err != nil {
		errors.WriteError(w, h.logger, errors.UploadFailed(err), requestID)
		return
	}

	ds := h.analytics.Dataset()
	errors.WriteSuccess(w, map[string]any{
		"dataset": ds,
		"records": len(ds.Records),
		"preview": preview,
		"options": h.analytics.Options(),
	})
}
