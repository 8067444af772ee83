package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"datafit/internal/config"
	apperrors "datafit/internal/errors"
	"datafit/internal/infrastructure"
	"datafit/internal/middleware"
)

// Handler upgrades authenticated requests to an event stream for the caller.
type Handler struct {
	hub          *Hub
	upgrader     websocket.Upgrader
	timing       Timing
	errorHandler *apperrors.ErrorHandler
	logger       *slog.Logger
}

// NewHandler creates the /ws handler. allowedOrigins may contain "*".
func NewHandler(hub *Hub, cfg config.WebSocketConfig, allowedOrigins []string, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		timing:       Timing{PingPeriod: cfg.PingPeriod, PongWait: cfg.PongWait},
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "websocket.handler")),
	}
}

// ServeHTTP handles GET /ws.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.errorHandler.Unauthorized(w, r, "Authentication required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr))
		return
	}

	client := NewClient(h.hub, NewConnectionWrapper(conn), p.OwnerID,
		infrastructure.GetTraceID(r.Context()), h.timing, h.logger)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		// same origin is always fine
		return strings.EqualFold(u.Host, r.Host)
	}
}
