package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"interviewpad/pkg/interfaces"
	"interviewpad/pkg/types"
)

// Access is the outcome of the password gate
type Access int

const (
	AccessAllowed Access = iota
	AccessPasswordRequired
	AccessPasswordIncorrect
)

// Err maps a denied outcome to its error, nil when allowed
func (a Access) Err() error {
	switch a {
	case AccessPasswordRequired:
		return ErrPasswordRequired
	case AccessPasswordIncorrect:
		return ErrPasswordIncorrect
	default:
		return nil
	}
}

// Manager implements the SessionManager interface
// ARCHITECTURAL DISCOVERY: No in-process cache; the record store is the only
// source of truth so several server instances observe the same lifecycle
type Manager struct {
	db       interfaces.DatabaseManager
	verifier interfaces.CredentialVerifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a new session manager
func NewManager(db interfaces.DatabaseManager, verifier interfaces.CredentialVerifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		db:       db,
		verifier: verifier,
		logger:   logger.With("component", "session"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the request and persists a new active session
// FUNCTIONAL DISCOVERY: Timestamps are truncated to microseconds so the value
// returned here equals what either SQL driver reads back
func (m *Manager) Create(ctx context.Context, req *types.SessionCreate) (*types.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := m.now().Truncate(time.Microsecond)
	session := &types.Session{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Language:  types.DefaultLanguage,
		Code:      req.InitialCode,
		CreatedAt: now,
		IsActive:  true,
	}
	if req.Language != nil {
		session.Language = *req.Language
	}
	if req.ExpiresInHours != nil {
		expires := now.Add(time.Duration(*req.ExpiresInHours) * time.Hour)
		session.ExpiresAt = &expires
	}
	if req.Password != nil {
		digest, err := m.verifier.Hash(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash session password: %w", err)
		}
		session.PasswordHash = &digest
	}

	if err := m.db.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.logger.Info("session created",
		"session_id", session.ID,
		"language", session.Language,
		"protected", session.IsProtected(),
		"expires_at", session.ExpiresAt,
	)
	return session, nil
}

// Get returns an active session; inactive sessions are reported as not found
func (m *Manager) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	session, err := m.db.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// IsExpired reports whether the session's expiry instant has passed
func (m *Manager) IsExpired(session *types.Session) bool {
	return session.IsExpiredAt(m.now())
}

// AuthorizeRead checks a submitted password against a protected session
// FUNCTIONAL DISCOVERY: Only an absent password is "required"; an empty one
// was submitted and is verified like any other
func (m *Manager) AuthorizeRead(session *types.Session, password *string) Access {
	if !session.IsProtected() {
		return AccessAllowed
	}
	if password == nil {
		return AccessPasswordRequired
	}
	if !m.verifier.Verify(*session.PasswordHash, *password) {
		return AccessPasswordIncorrect
	}
	return AccessAllowed
}

// Read runs the full read gate in order: not found, expired, password
func (m *Manager) Read(ctx context.Context, sessionID string, password *string) (*types.Session, error) {
	session, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if m.IsExpired(session) {
		return nil, ErrSessionExpired
	}
	if err := m.AuthorizeRead(session, password).Err(); err != nil {
		return nil, err
	}
	return session, nil
}

// Update applies the present fields of a partial update to an active session
func (m *Manager) Update(ctx context.Context, sessionID string, update *types.SessionUpdate) (*types.Session, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	session, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return session, nil
	}

	if update.Title != nil {
		session.Title = *update.Title
	}
	if update.Language != nil {
		session.Language = *update.Language
	}
	if update.Code != nil {
		session.Code = *update.Code
	}

	if err := m.db.UpdateSession(ctx, session); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	m.logger.Info("session updated", "session_id", sessionID)
	return session, nil
}

// Delete soft-deletes the session; live state is left to drain on its own
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	if err := m.db.SoftDeleteSession(ctx, sessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}

	m.logger.Info("session deleted", "session_id", sessionID)
	return nil
}

// HardDelete physically removes the session record
func (m *Manager) HardDelete(ctx context.Context, sessionID string) error {
	if err := m.db.HardDeleteSession(ctx, sessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return err
		}
		return fmt.Errorf("failed to purge session: %w", err)
	}

	m.logger.Warn("session purged", "session_id", sessionID)
	return nil
}
