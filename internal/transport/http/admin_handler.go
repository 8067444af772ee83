package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "datafit/internal/errors"
)

// AdminHandler serves cross-owner reads. Mount it behind middleware.RequireAdmin.
type AdminHandler struct {
	reports      ReportService
	owners       OwnerService
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(reports ReportService, owners OwnerService, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *AdminHandler {
	return &AdminHandler{
		reports:      reports,
		owners:       owners,
		logger:       logger.With(slog.String("component", "admin_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the admin routes.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/owners/{ownerID}/reports", h.OwnerReports)
	return r
}

// OwnerReports handles GET /admin/owners/{ownerID}/reports.
func (h *AdminHandler) OwnerReports(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	ownerID, err := idParam(r, "ownerID")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	// the token's role is re-checked against the stored account
	admin, err := h.owners.GetOwner(r.Context(), p.OwnerID)
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.NewForbiddenError("admin account is not active"))
		return
	}

	reports, err := h.reports.ListOwnerReports(r.Context(), admin, ownerID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "admin listed owner reports",
		slog.Int64("admin_id", admin.ID),
		slog.Int64("owner_id", ownerID),
		slog.Int("count", len(reports)))
	render.JSON(w, r, reports)
}
