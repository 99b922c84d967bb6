package router

import (
	"log/slog"
	"sync"

	"interviewpad/pkg/interfaces"
)

// Router maps rooms to connected endpoints and targets broadcasts
// ARCHITECTURAL DISCOVERY: Both directions of membership are kept under one
// lock so conn ∈ MembersOf(room) holds exactly when room ∈ RoomsOf(conn)
type Router struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]interfaces.Connection // room -> connID -> conn
	memberships map[string]map[string]struct{}             // connID -> rooms
	logger      *slog.Logger
}

// NewRouter creates an empty room router
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		rooms:       make(map[string]map[string]interfaces.Connection),
		memberships: make(map[string]map[string]struct{}),
		logger:      logger.With("component", "router"),
	}
}

// Join adds conn to room and reports whether it was newly added
func (r *Router) Join(conn interfaces.Connection, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]interfaces.Connection)
		r.rooms[room] = members
	}
	_, existed := members[id]
	members[id] = conn

	rooms, ok := r.memberships[id]
	if !ok {
		rooms = make(map[string]struct{})
		r.memberships[id] = rooms
	}
	rooms[room] = struct{}{}

	return !existed
}

// Leave removes connID from room and reports whether it was a member
func (r *Router) Leave(connID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(connID, room)
}

// LeaveAll removes connID from every room and returns the rooms it left
func (r *Router) LeaveAll(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for room := range r.memberships[connID] {
		if r.leaveLocked(connID, room) {
			left = append(left, room)
		}
	}
	return left
}

func (r *Router) leaveLocked(connID, room string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[connID]; !ok {
		return false
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}

	if rooms, ok := r.memberships[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.memberships, connID)
		}
	}
	return true
}

// MembersOf returns the connection IDs in room
func (r *Router) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		ids = append(ids, id)
	}
	return ids
}

// RoomsOf returns the rooms connID belongs to
func (r *Router) RoomsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.memberships[connID]))
	for room := range r.memberships[connID] {
		rooms = append(rooms, room)
	}
	return rooms
}

// IsMember reports whether connID is in room
func (r *Router) IsMember(connID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][connID]
	return ok
}

// Broadcast writes v to every member of room except skip and returns the
// number of successful writes
// FUNCTIONAL DISCOVERY: Targets are snapshotted under the read lock and
// written outside it; one failing connection never stops the others
func (r *Router) Broadcast(room string, v interface{}, skip string) int {
	r.mu.RLock()
	targets := make([]interfaces.Connection, 0, len(r.rooms[room]))
	for id, conn := range r.rooms[room] {
		if id != skip {
			targets = append(targets, conn)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.WriteJSON(v); err != nil {
			r.logger.Debug("broadcast delivery failed", "room", room, "conn_id", conn.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Emit writes v to a single connection
func (r *Router) Emit(conn interfaces.Connection, v interface{}) error {
	if err := conn.WriteJSON(v); err != nil {
		r.logger.Debug("emit failed", "conn_id", conn.ID(), "error", err)
		return err
	}
	return nil
}

// Stats returns the number of non-empty rooms and of connections in any room
func (r *Router) Stats() (rooms, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), len(r.memberships)
}
