package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "datafit/internal/errors"
)

// IndicatorHandler serves the indicator catalog.
type IndicatorHandler struct {
	indicators   IndicatorService
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewIndicatorHandler creates an indicator handler.
func NewIndicatorHandler(indicators IndicatorService, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *IndicatorHandler {
	return &IndicatorHandler{
		indicators:   indicators,
		logger:       logger.With(slog.String("component", "indicator_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the catalog routes.
func (h *IndicatorHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/", h.Catalog)
	return r
}

// Catalog handles GET /indicators.
func (h *IndicatorHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.indicators.Catalog(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, catalog)
}
