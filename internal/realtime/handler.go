package realtime

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bissquit/status-garden/internal/pkg/ctxlog"
	"github.com/gorilla/websocket"
)

// HandlerConfig configures the websocket endpoint.
type HandlerConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
}

// Handler upgrades HTTP requests to websocket clients of the hub.
type Handler struct {
	hub        *Hub
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     *slog.Logger
}

// NewHandler creates a websocket handler.
func NewHandler(hub *Hub, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		hub:        hub,
		sendBuffer: cfg.SendBufferSize,
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     originChecker(cfg.AllowedOrigins, logger),
	}
	return h
}

// ServeHTTP handles GET /ws.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn, h.sendBuffer, h.logger)
	logger.Info("websocket connection established",
		"client_id", client.ID(),
		"remote_addr", r.RemoteAddr,
	)

	go client.Run()
}

// originChecker allows an empty origin, exact host matches and "*.example.com"
// wildcard subdomains. A "*" entry allows every origin.
func originChecker(allowed []string, logger *slog.Logger) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		parsed, err := url.Parse(origin)
		if err != nil {
			logger.Warn("failed to parse websocket origin", "origin", origin, "error", err)
			return false
		}
		host := parsed.Host

		for _, a := range allowed {
			switch {
			case a == "*":
				return true
			case strings.HasPrefix(a, "*."):
				if strings.HasSuffix(host, a[1:]) || host == a[2:] {
					return true
				}
			default:
				if a == host || a == origin {
					return true
				}
			}
		}

		logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
		)
		return false
	}
}
