package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"interviewpad/pkg/interfaces"
)

// Dispatcher receives the frames read from a connection
// ARCHITECTURAL DISCOVERY: The transport only knows this seam, so the hub
// can be replaced by a fake in tests and never imports gorilla
type Dispatcher interface {
	Dispatch(ctx context.Context, conn interfaces.Connection, frame []byte)
	Disconnect(ctx context.Context, conn interfaces.Connection)
}

// Options tunes the transport; zero values take the defaults below
type Options struct {
	PingInterval    time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	BufferSize      int
	MaxMessageBytes int64
	AllowedOrigins  []string
}

// DefaultOptions mirrors the heartbeat timings the service ships with
func DefaultOptions() Options {
	return Options{
		PingInterval:    30 * time.Second,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    defaultWriteTimeout,
		BufferSize:      defaultBufferSize,
		MaxMessageBytes: 1 << 20,
	}
}

// Handler upgrades requests and pumps their frames into the dispatcher
type Handler struct {
	registry   *Registry
	dispatcher Dispatcher
	options    Options
	upgrader   websocket.Upgrader
	logger     *slog.Logger
	newID      func() string
}

// NewHandler creates a websocket handler with dependency injection
func NewHandler(registry *Registry, dispatcher Dispatcher, options Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultOptions()
	if options.PingInterval <= 0 {
		options.PingInterval = defaults.PingInterval
	}
	if options.ReadTimeout <= 0 {
		options.ReadTimeout = defaults.ReadTimeout
	}
	// TECHNICAL DISCOVERY: Pings must land well inside the read deadline or
	// healthy idle peers get dropped
	if options.PingInterval >= options.ReadTimeout {
		options.PingInterval = options.ReadTimeout * 9 / 10
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = defaults.WriteTimeout
	}
	if options.BufferSize <= 0 {
		options.BufferSize = defaults.BufferSize
	}
	if options.MaxMessageBytes <= 0 {
		options.MaxMessageBytes = defaults.MaxMessageBytes
	}

	h := &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		options:    options,
		logger:     logger.With("component", "websocket"),
		newID:      uuid.NewString,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// checkOrigin allows everything unless an explicit origin list is configured
func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.options.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.options.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and blocks until the connection ends
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// gorilla has already written the HTTP error response
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	conn := NewConnection(ws, h.newID(), h.options.BufferSize, h.options.WriteTimeout)
	if err := h.registry.Register(conn); err != nil {
		h.logger.Error("failed to register connection", "error", err, "conn_id", conn.ID())
		_ = conn.Close()
		return
	}

	h.logger.Info("connection opened", "conn_id", conn.ID(), "remote", r.RemoteAddr)
	h.handleConnection(conn)
}

// handleConnection runs the read pump with heartbeat monitoring
// ARCHITECTURAL DISCOVERY: Frames of one connection are dispatched serially
// from this goroutine; different connections run concurrently
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		// FUNCTIONAL DISCOVERY: Cleanup must outlive the connection context
		h.dispatcher.Disconnect(context.WithoutCancel(conn.Context()), conn)
		h.registry.Unregister(conn)
		_ = conn.Close()
		h.logger.Info("connection closed", "conn_id", conn.ID())
	}()

	ws := conn.conn
	ws.SetReadLimit(h.options.MaxMessageBytes)
	if err := ws.SetReadDeadline(time.Now().Add(h.options.ReadTimeout)); err != nil {
		h.logger.Warn("failed to set read deadline", "error", err, "conn_id", conn.ID())
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.options.ReadTimeout))
	})

	go h.pingLoop(conn)

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed", "error", err, "conn_id", conn.ID())
			}
			return
		}

		if messageType != websocket.TextMessage {
			h.logger.Debug("ignoring non-text frame", "type", messageType, "conn_id", conn.ID())
			continue
		}
		h.dispatcher.Dispatch(conn.Context(), conn, data)
	}
}

// pingLoop keeps the peer's pong deadline moving until the connection closes
func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				_ = conn.Close()
				return
			}
		case <-conn.Context().Done():
			return
		}
	}
}
