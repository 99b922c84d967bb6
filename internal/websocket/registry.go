package websocket

import (
	"context"
	"sync"
)

// Registry tracks the live connections accepted by this instance
// ARCHITECTURAL DISCOVERY: Pure connection bookkeeping; room membership
// belongs to the router so the two never have to agree on locking
type Registry struct {
	mu          sync.RWMutex // TECHNICAL DISCOVERY: RWMutex optimizes for read-heavy lookup patterns
	connections map[string]*Connection
	closing     bool

	// active counts registered connections whose cleanup has not finished
	active sync.WaitGroup
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
	}
}

// Register adds a connection under its id
func (r *Registry) Register(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closing {
		return ErrRegistryClosed
	}
	if _, exists := r.connections[conn.ID()]; exists {
		return ErrDuplicateConnection
	}
	r.connections[conn.ID()] = conn
	r.active.Add(1)
	return nil
}

// Unregister removes the connection if it is the one registered under its id
// FUNCTIONAL DISCOVERY: Idempotent so deferred cleanup can always call it;
// callers unregister only after their disconnect cleanup has run
func (r *Registry) Unregister(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.connections[conn.ID()]; ok && current == conn {
		delete(r.connections, conn.ID())
		r.active.Done()
	}
}

// Get looks up a connection by id
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[id]
	return conn, ok
}

// Count returns the number of registered connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// CloseAll closes every registered connection and refuses new ones; read
// pumps then run their cleanup and unregister
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closing = true
	conns := make([]*Connection, 0, len(r.connections))
	for _, c := range r.connections {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

// Wait blocks until every registered connection has unregistered or ctx ends
// ARCHITECTURAL DISCOVERY: Shutdown waits here so disconnect cleanup reaches
// the shared stores before they are closed
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
