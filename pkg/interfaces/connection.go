package interfaces

// Connection is one live client endpoint as seen by the room router and hub
// ARCHITECTURAL DISCOVERY: Pure abstraction without transport details keeps
// the hub testable with in-memory fakes
type Connection interface {
	// ID returns the opaque connection identifier assigned at upgrade
	ID() string

	// WriteJSON queues a JSON frame for the client (thread-safe)
	// FUNCTIONAL DISCOVERY: Implementations must use a single writer so
	// concurrent broadcasts never interleave frames
	WriteJSON(v interface{}) error

	// Close closes the connection and releases its writer
	Close() error
}
