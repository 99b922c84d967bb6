package interfaces

import (
	"context"

	"interviewpad/pkg/types"
)

// SessionManager is the session lifecycle surface used by the REST API and
// the live join gate
type SessionManager interface {
	// Create validates and persists a new session
	Create(ctx context.Context, req *types.SessionCreate) (*types.Session, error)

	// Get returns an active session or ErrSessionNotFound
	Get(ctx context.Context, sessionID string) (*types.Session, error)

	// Read runs the full read gate: not found, then expired, then password
	// FUNCTIONAL DISCOVERY: The order is observable to clients, a missing
	// session never reveals whether it was protected
	Read(ctx context.Context, sessionID string, password *string) (*types.Session, error)

	// Update applies only the fields present in the partial update
	Update(ctx context.Context, sessionID string, update *types.SessionUpdate) (*types.Session, error)

	// Delete soft-deletes the session
	Delete(ctx context.Context, sessionID string) error

	// HardDelete physically removes the session record
	HardDelete(ctx context.Context, sessionID string) error
}

// CredentialVerifier hashes and checks session passwords
type CredentialVerifier interface {
	Hash(secret string) (string, error)
	Verify(hash, secret string) bool
}
