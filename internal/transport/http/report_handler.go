package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "datafit/internal/errors"
	"datafit/internal/exporter"
	"datafit/internal/middleware"
	"datafit/internal/services"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

// ReportHandler handles report uploads and report resources.
type ReportHandler struct {
	reports        ReportService
	indicators     IndicatorService
	maxUploadBytes int64
	logger         *slog.Logger
	errorHandler   *apperrors.ErrorHandler
}

// NewReportHandler creates a report handler.
func NewReportHandler(reports ReportService, indicators IndicatorService, maxUploadBytes int64, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *ReportHandler {
	return &ReportHandler{
		reports:        reports,
		indicators:     indicators,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "report_handler")),
		errorHandler:   errorHandler,
	}
}

// Routes returns the report routes.
func (h *ReportHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Post("/", h.Upload)
		r.Get("/", h.List)
		r.Get("/{reportID}", h.Get)
		r.Delete("/{reportID}", h.Delete)
		r.Delete("/{reportID}/columns/{columnID}", h.DeleteColumn)

		r.Route("/{reportID}/columns/{columnID}/indicators", func(r chi.Router) {
			r.Get("/", h.ListIndicatorValues)
			r.Get("/by-name/{name}", h.GetIndicatorValueByName)
			r.Get("/{valueID}", h.GetIndicatorValue)
			r.Delete("/{valueID}", h.DeleteIndicatorValue)
		})
	})

	// raw bytes, no JSON content type
	r.Get("/{reportID}/file", h.Download)
	r.Get("/{reportID}/summary.csv", h.Summary)

	return r
}

// Upload handles POST /reports with a multipart "file" field.
func (h *ReportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, apperrors.NewBadRequestError(
				fmt.Sprintf("file exceeds the upload limit of %d bytes", tooLarge.Limit)))
			return
		}
		h.errorHandler.HandleError(w, r, apperrors.NewBadRequestError("expected a multipart form with a file field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.NewBadRequestError("missing file field"))
		return
	}
	defer file.Close()

	h.logger.InfoContext(r.Context(), "report upload received",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Int64("owner_id", p.OwnerID),
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size))

	id, err := h.reports.CreateReport(r.Context(), services.UploadRequest{
		OwnerID:  p.OwnerID,
		Filename: header.Filename,
		Content:  file,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]int64{"id": id})
}

// List handles GET /reports.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	reports, err := h.reports.ListReports(r.Context(), p.OwnerID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, reports)
}

// Get handles GET /reports/{reportID}.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, reportID, ok := h.reportParams(w, r)
	if !ok {
		return
	}

	report, err := h.reports.GetReport(r.Context(), reportID, p)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// Download handles GET /reports/{reportID}/file.
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	p, reportID, ok := h.reportParams(w, r)
	if !ok {
		return
	}

	rc, name, err := h.reports.OpenReportFile(r.Context(), reportID, p)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", spreadsheetContentType(name))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "report download interrupted",
			slog.Int64("report_id", reportID),
			slog.String("error", err.Error()))
	}
}

// Summary handles GET /reports/{reportID}/summary.csv: one row per column,
// one cell per catalog indicator.
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	p, reportID, ok := h.reportParams(w, r)
	if !ok {
		return
	}

	report, err := h.reports.GetReport(r.Context(), reportID, p)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	catalog, err := h.indicators.Catalog(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	name := fmt.Sprintf("report_%d_summary.csv", report.ID)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	if err := exporter.WriteReportSummary(w, catalog, report, exporter.Options{BOMPrefix: true}); err != nil {
		h.logger.WarnContext(r.Context(), "report summary interrupted",
			slog.Int64("report_id", reportID),
			slog.String("error", err.Error()))
	}
}

// Delete handles DELETE /reports/{reportID}.
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, reportID, ok := h.reportParams(w, r)
	if !ok {
		return
	}

	if err := h.reports.DeleteReport(r.Context(), reportID, p); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// DeleteColumn handles DELETE /reports/{reportID}/columns/{columnID}.
func (h *ReportHandler) DeleteColumn(w http.ResponseWriter, r *http.Request) {
	q, ok := h.columnQuery(w, r)
	if !ok {
		return
	}

	if err := h.reports.DeleteColumn(r.Context(), q.ReportID, q.ColumnID, q.OwnerID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// ListIndicatorValues handles GET .../indicators and renders [[value, name], ...].
func (h *ReportHandler) ListIndicatorValues(w http.ResponseWriter, r *http.Request) {
	q, ok := h.columnQuery(w, r)
	if !ok {
		return
	}

	readings, err := h.indicators.GetIndicatorValues(r.Context(), q)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, readings)
}

// GetIndicatorValue handles GET .../indicators/{valueID}.
func (h *ReportHandler) GetIndicatorValue(w http.ResponseWriter, r *http.Request) {
	q, ok := h.columnQuery(w, r)
	if !ok {
		return
	}
	valueID, err := idParam(r, "valueID")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	value, err := h.indicators.GetIndicatorValue(r.Context(), q, valueID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, value)
}

// GetIndicatorValueByName handles GET .../indicators/by-name/{name}.
func (h *ReportHandler) GetIndicatorValueByName(w http.ResponseWriter, r *http.Request) {
	q, ok := h.columnQuery(w, r)
	if !ok {
		return
	}
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		h.errorHandler.HandleError(w, r, apperrors.NewBadRequestError("indicator name is required"))
		return
	}

	value, err := h.indicators.GetIndicatorValueByName(r.Context(), q, name)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, value)
}

// DeleteIndicatorValue handles DELETE .../indicators/{valueID}.
func (h *ReportHandler) DeleteIndicatorValue(w http.ResponseWriter, r *http.Request) {
	q, ok := h.columnQuery(w, r)
	if !ok {
		return
	}
	valueID, err := idParam(r, "valueID")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := h.indicators.DeleteIndicatorValue(r.Context(), q, valueID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// reportParams resolves the caller and the reportID parameter, writing the
// error response itself when either is invalid.
func (h *ReportHandler) reportParams(w http.ResponseWriter, r *http.Request) (ownerID, reportID int64, ok bool) {
	p, err := principal(r)
	if err == nil {
		reportID, err = idParam(r, "reportID")
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return 0, 0, false
	}
	return p.OwnerID, reportID, true
}

func (h *ReportHandler) columnQuery(w http.ResponseWriter, r *http.Request) (services.IndicatorValuesQuery, bool) {
	ownerID, reportID, ok := h.reportParams(w, r)
	if !ok {
		return services.IndicatorValuesQuery{}, false
	}
	columnID, err := idParam(r, "columnID")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return services.IndicatorValuesQuery{}, false
	}
	return services.IndicatorValuesQuery{OwnerID: ownerID, ReportID: reportID, ColumnID: columnID}, true
}

func spreadsheetContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	default:
		return "application/octet-stream"
	}
}
