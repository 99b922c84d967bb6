package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"interviewpad/internal/fanout"
	"interviewpad/internal/livestate"
	"interviewpad/internal/router"
	"interviewpad/pkg/interfaces"
	"interviewpad/pkg/types"
)

// Config tunes live event handling
type Config struct {
	// RequireSessionAccess runs the REST read checks before a join
	RequireSessionAccess bool
	// EventTimeout bounds the store calls made for one event
	EventTimeout time.Duration
	// CleanupInterval is how often idle rate limiter entries are dropped
	CleanupInterval time.Duration
}

// DefaultConfig returns the settings the service ships with
func DefaultConfig() Config {
	return Config{
		RequireSessionAccess: true,
		EventTimeout:         5 * time.Second,
		CleanupInterval:      time.Minute,
	}
}

// Hub applies live events to the ephemeral state and fans them out to rooms
// ARCHITECTURAL DISCOVERY: The hub is the only writer of live state and never
// writes the durable session record; each event is handled independently
// with per-key store operations, so concurrent events race last-write-wins
type Hub struct {
	sessions interfaces.SessionManager
	state    *livestate.State
	router   *router.Router
	limiter  *router.RateLimiter
	fanout   fanout.Fanout
	config   Config
	logger   *slog.Logger
	now      func() time.Time

	// State
	running  bool
	shutdown chan struct{}
	done     chan struct{}
	mu       sync.Mutex
}

// NewHub wires the hub's collaborators; a nil limiter disables rate limiting
// and a nil fanout keeps broadcasts on this instance
func NewHub(
	sessions interfaces.SessionManager,
	state *livestate.State,
	rt *router.Router,
	limiter *router.RateLimiter,
	fan fanout.Fanout,
	config Config,
	logger *slog.Logger,
) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if fan == nil {
		fan = fanout.Noop{}
	}
	if config.EventTimeout <= 0 {
		config.EventTimeout = DefaultConfig().EventTimeout
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}
	return &Hub{
		sessions: sessions,
		state:    state,
		router:   rt,
		limiter:  limiter,
		fanout:   fan,
		config:   config,
		logger:   logger.With("component", "hub"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start begins relaying fan-out deliveries and limiter housekeeping
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.shutdown = make(chan struct{})
	h.done = make(chan struct{})

	h.logger.Info("starting hub")
	go h.run(ctx, h.shutdown, h.done)
	return nil
}

// Stop ends the background loop and waits for it
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	close(h.shutdown)
	done := h.done
	h.mu.Unlock()

	<-done
	h.logger.Info("hub stopped")
	return nil
}

// run is the hub's background loop
// TECHNICAL DISCOVERY: A closed delivery channel is replaced by nil so the
// select keeps serving the ticker and shutdown
func (h *Hub) run(ctx context.Context, shutdown <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.config.CleanupInterval)
	defer ticker.Stop()

	deliveries := h.fanout.Deliveries()
	for {
		select {
		case msg, ok := <-deliveries:
			if !ok {
				deliveries = nil
				continue
			}
			h.router.Broadcast(msg.SessionID, msg.Frame, msg.Skip)

		case <-ticker.C:
			if h.limiter != nil {
				h.limiter.Cleanup()
			}

		case <-shutdown:
			return

		case <-ctx.Done():
			return
		}
	}
}

// Dispatch decodes one inbound frame and applies it
// Failures are reported to conn only, as an error event
func (h *Hub) Dispatch(ctx context.Context, conn interfaces.Connection, frame []byte) {
	if h.limiter != nil && !h.limiter.Allow(conn.ID()) {
		h.sendError(conn, peekEvent(frame), "Rate limit exceeded")
		return
	}

	evt, err := types.DecodeInbound(frame)
	if err != nil {
		h.logger.Debug("rejected inbound frame", "conn_id", conn.ID(), "error", err)
		h.sendError(conn, peekEvent(frame), err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.EventTimeout)
	defer cancel()

	switch e := evt.(type) {
	case types.JoinEvent:
		err = h.handleJoin(ctx, conn, e)
	case types.LeaveEvent:
		err = h.handleLeave(ctx, conn, e)
	case types.CodeChangeEvent:
		err = h.handleCodeChange(ctx, conn, e)
	case types.CursorMoveEvent:
		err = h.handleCursorMove(ctx, conn, e)
	case types.LanguageChangeEvent:
		err = h.handleLanguageChange(ctx, conn, e)
	case types.SelectionChangeEvent:
		err = h.handleSelectionChange(ctx, conn, e)
	}

	if err != nil {
		h.logger.Debug("live event failed", "event", evt.EventName(), "conn_id", conn.ID(), "session_id", evt.Session(), "error", err)
		h.sendError(conn, evt.EventName(), describe(err))
	}
}

// Disconnect removes every trace of conn from the rooms it joined
// FUNCTIONAL DISCOVERY: Rooms come from both the router and the reverse
// index so a half-written join is still cleaned; a second call finds
// nothing and does nothing
func (h *Hub) Disconnect(ctx context.Context, conn interfaces.Connection) {
	ctx, cancel := context.WithTimeout(ctx, h.config.EventTimeout)
	defer cancel()

	id := conn.ID()
	rooms := h.router.RoomsOf(id)
	if sessionID, ok, err := h.state.UserSession(ctx, id); err != nil {
		h.logger.Warn("reverse index lookup failed", "conn_id", id, "error", err)
	} else if ok && !contains(rooms, sessionID) {
		rooms = append(rooms, sessionID)
	}

	for _, room := range rooms {
		h.leaveRoom(ctx, id, room)
	}
	if err := h.state.ClearUserSession(ctx, id); err != nil {
		h.logger.Warn("failed to clear reverse index", "conn_id", id, "error", err)
	}
	if h.limiter != nil {
		h.limiter.Forget(id)
	}
}

// ParticipantsOf returns the live participants of a session
func (h *Hub) ParticipantsOf(ctx context.Context, sessionID string) ([]*types.Participant, error) {
	return h.state.Participants(ctx, sessionID)
}

// Stats reports local room and connection counts
func (h *Hub) Stats() (rooms, connections int) {
	return h.router.Stats()
}

func (h *Hub) handleJoin(ctx context.Context, conn interfaces.Connection, e types.JoinEvent) error {
	if h.config.RequireSessionAccess {
		if _, err := h.sessions.Read(ctx, e.SessionID, e.Password); err != nil {
			return err
		}
	}

	id := conn.ID()
	previous := h.router.RoomsOf(id)
	if sessionID, ok, err := h.state.UserSession(ctx, id); err == nil && ok && !contains(previous, sessionID) {
		previous = append(previous, sessionID)
	}
	for _, room := range previous {
		if room != e.SessionID {
			h.leaveRoom(ctx, id, room)
		}
	}

	h.router.Join(conn, e.SessionID)

	name := strings.TrimSpace(e.Name)
	if name == "" {
		name = DefaultName(id)
	}
	p := &types.Participant{
		ID:       id,
		Name:     name,
		Color:    ColorFor(id),
		JoinedAt: h.now(),
	}

	// FUNCTIONAL DISCOVERY: Presence writes are independent; a store outage
	// still admits the joiner with an empty snapshot
	if err := h.state.AddParticipant(ctx, e.SessionID, p); err != nil {
		h.logger.Warn("failed to record participant", "session_id", e.SessionID, "conn_id", id, "error", err)
	}
	if err := h.state.SetUserSession(ctx, id, e.SessionID); err != nil {
		h.logger.Warn("failed to set reverse index", "session_id", e.SessionID, "conn_id", id, "error", err)
	}

	snap, err := h.state.Snapshot(ctx, e.SessionID)
	if err != nil {
		h.logger.Warn("failed to read session snapshot", "session_id", e.SessionID, "error", err)
		snap = &livestate.Snapshot{Language: types.DefaultLanguage}
	}
	participants := snap.Participants
	if participants == nil {
		participants = []*types.Participant{}
	}

	_ = h.router.Emit(conn, types.NewOutbound(types.EventSessionState, types.SessionStatePayload{
		Code:         snap.Code,
		Language:     snap.Language,
		Participants: participants,
		YourID:       id,
		YourColor:    p.Color,
	}))
	h.broadcast(ctx, e.SessionID, id, types.NewOutbound(types.EventUserJoined, p))

	h.logger.Info("participant joined", "session_id", e.SessionID, "conn_id", id, "participants", len(participants))
	return nil
}

func (h *Hub) handleLeave(ctx context.Context, conn interfaces.Connection, e types.LeaveEvent) error {
	if !h.router.IsMember(conn.ID(), e.SessionID) {
		return ErrNotJoined
	}
	h.leaveRoom(ctx, conn.ID(), e.SessionID)
	return nil
}

func (h *Hub) handleCodeChange(ctx context.Context, conn interfaces.Connection, e types.CodeChangeEvent) error {
	if !h.router.IsMember(conn.ID(), e.SessionID) {
		return ErrNotJoined
	}
	if err := h.state.SetCode(ctx, e.SessionID, e.Code); err != nil {
		h.logger.Warn("failed to store code", "session_id", e.SessionID, "error", err)
	}
	h.broadcast(ctx, e.SessionID, conn.ID(), types.NewOutbound(types.EventCodeChange, types.CodeChangePayload{
		Code:   e.Code,
		UserID: conn.ID(),
	}))
	return nil
}

func (h *Hub) handleCursorMove(ctx context.Context, conn interfaces.Connection, e types.CursorMoveEvent) error {
	if !h.router.IsMember(conn.ID(), e.SessionID) {
		return ErrNotJoined
	}
	if err := h.state.SetCursor(ctx, e.SessionID, conn.ID(), e.Position); err != nil {
		h.logger.Warn("failed to store cursor", "session_id", e.SessionID, "error", err)
	}
	h.broadcast(ctx, e.SessionID, conn.ID(), types.NewOutbound(types.EventCursorMove, types.CursorMovePayload{
		UserID:   conn.ID(),
		Position: e.Position,
	}))
	return nil
}

func (h *Hub) handleLanguageChange(ctx context.Context, conn interfaces.Connection, e types.LanguageChangeEvent) error {
	if !h.router.IsMember(conn.ID(), e.SessionID) {
		return ErrNotJoined
	}
	if err := h.state.SetLanguage(ctx, e.SessionID, e.Language); err != nil {
		h.logger.Warn("failed to store language", "session_id", e.SessionID, "error", err)
	}
	h.broadcast(ctx, e.SessionID, conn.ID(), types.NewOutbound(types.EventLanguageChange, types.LanguageChangePayload{
		Language: e.Language,
		UserID:   conn.ID(),
	}))
	return nil
}

func (h *Hub) handleSelectionChange(ctx context.Context, conn interfaces.Connection, e types.SelectionChangeEvent) error {
	if !h.router.IsMember(conn.ID(), e.SessionID) {
		return ErrNotJoined
	}
	h.broadcast(ctx, e.SessionID, conn.ID(), types.NewOutbound(types.EventSelectionChange, types.SelectionChangePayload{
		UserID:    conn.ID(),
		Selection: e.Selection,
	}))
	return nil
}

// leaveRoom drops connID from room and its live entries; user_left is only
// announced when the connection was actually a member here
func (h *Hub) leaveRoom(ctx context.Context, connID, room string) {
	wasMember := h.router.Leave(connID, room)

	name := ""
	if p, ok, err := h.state.Participant(ctx, room, connID); err == nil && ok {
		name = p.Name
	}
	if err := h.state.RemoveParticipant(ctx, room, connID); err != nil {
		h.logger.Warn("failed to remove participant", "session_id", room, "conn_id", connID, "error", err)
	}
	if current, ok, err := h.state.UserSession(ctx, connID); err == nil && ok && current == room {
		if err := h.state.ClearUserSession(ctx, connID); err != nil {
			h.logger.Warn("failed to clear reverse index", "conn_id", connID, "error", err)
		}
	}

	if wasMember {
		h.broadcast(ctx, room, connID, types.NewOutbound(types.EventUserLeft, types.UserLeftPayload{UserID: connID}))
		h.logger.Info("participant left", "session_id", room, "conn_id", connID, "name", name)
	}
}

// broadcast encodes evt once, delivers it to local room members except skip,
// then relays it to other instances
func (h *Hub) broadcast(ctx context.Context, room, skip string, evt *types.OutboundEvent) {
	frame, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to encode broadcast", "event", evt.Event, "error", err)
		return
	}

	h.router.Broadcast(room, json.RawMessage(frame), skip)

	if err := h.fanout.Publish(ctx, room, skip, frame); err != nil {
		h.logger.Warn("fan-out publish failed", "session_id", room, "event", evt.Event, "error", err)
	}
}

func (h *Hub) sendError(conn interfaces.Connection, event, message string) {
	_ = h.router.Emit(conn, types.NewOutbound(types.EventError, types.ErrorPayload{
		Message: message,
		Event:   event,
	}))
}

// describe maps a handler error to the message shown to the client
func describe(err error) string {
	switch {
	case errors.Is(err, interfaces.ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, interfaces.ErrSessionExpired):
		return "Session has expired"
	case errors.Is(err, interfaces.ErrPasswordRequired):
		return "Password required for this session"
	case errors.Is(err, interfaces.ErrPasswordIncorrect):
		return "Incorrect password"
	case errors.Is(err, ErrNotJoined):
		return "Not joined to this session"
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"
	default:
		return "Internal error"
	}
}

// peekEvent extracts the event name of a frame for error reporting
func peekEvent(frame []byte) string {
	var env types.Envelope
	if json.Unmarshal(frame, &env) != nil {
		return ""
	}
	return env.Event
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
