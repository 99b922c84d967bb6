package interfaces

import (
	"context"

	"interviewpad/pkg/types"
)

// DatabaseManager is the durable record store for sessions
// ARCHITECTURAL DISCOVERY: Single interface for all persistence operations
// keeps transaction handling inside one implementation
type DatabaseManager interface {
	// CreateSession persists a fully built session record
	CreateSession(ctx context.Context, session *types.Session) error

	// GetSession loads a record by ID regardless of its active flag
	// FUNCTIONAL DISCOVERY: Inactive filtering belongs to the lifecycle
	// manager so internal operations can still see soft-deleted rows
	GetSession(ctx context.Context, sessionID string) (*types.Session, error)

	// UpdateSession writes title, language and code of an existing record
	UpdateSession(ctx context.Context, session *types.Session) error

	// SoftDeleteSession marks the record inactive
	SoftDeleteSession(ctx context.Context, sessionID string) error

	// HardDeleteSession physically removes the record
	HardDeleteSession(ctx context.Context, sessionID string) error

	// HealthCheck verifies connectivity with a bounded query
	HealthCheck(ctx context.Context) error

	// Close stops the writer and closes the pool
	Close() error
}
