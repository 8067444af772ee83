package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apperrors "datafit/internal/errors"
	"datafit/internal/security"
)

const principalKey ctxKey = "principal"

// TokenVerifier resolves a bearer token to a principal.
type TokenVerifier interface {
	Verify(token string) (security.Principal, error)
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p security.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (security.Principal, bool) {
	p, ok := ctx.Value(principalKey).(security.Principal)
	return p, ok
}

// Authenticate requires a valid bearer token. Browsers cannot set headers on a
// WebSocket handshake, so a "token" query parameter is accepted as well.
func Authenticate(verifier TokenVerifier, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				errorHandler.Unauthorized(w, r, "Missing authorization header. Use: Bearer <token>")
				return
			}

			principal, err := verifier.Verify(token)
			if err != nil {
				logger.WarnContext(r.Context(), "authentication failed",
					slog.String("error", err.Error()),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				errorHandler.Unauthorized(w, r, "Invalid or expired token")
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects principals without the admin role.
func RequireAdmin(errorHandler *apperrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				errorHandler.Unauthorized(w, r, "Authentication required")
				return
			}
			if !p.IsAdmin() {
				errorHandler.HandleError(w, r, apperrors.NewForbiddenError("admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
