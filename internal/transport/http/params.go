package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "datafit/internal/errors"
	"datafit/internal/middleware"
	"datafit/internal/security"
)

// idParam parses a positive integer URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewBadRequestError(fmt.Sprintf("invalid %s: %q", name, raw))
	}
	return id, nil
}

// principal returns the authenticated caller. Routes are mounted behind
// middleware.Authenticate, so a missing principal is a wiring error.
func principal(r *http.Request) (security.Principal, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return security.Principal{}, apperrors.NewInternalError("request has no authenticated principal", nil)
	}
	return p, nil
}
