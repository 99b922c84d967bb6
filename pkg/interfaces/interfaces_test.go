package interfaces_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"interviewpad/pkg/interfaces"
	"interviewpad/pkg/types"
)

// Mock implementations for testing

type mockConnection struct{}

func (m *mockConnection) ID() string                    { return "conn" }
func (m *mockConnection) WriteJSON(v interface{}) error { return nil }
func (m *mockConnection) Close() error                  { return nil }

type mockSessionManager struct{}

func (m *mockSessionManager) Create(ctx context.Context, req *types.SessionCreate) (*types.Session, error) {
	return nil, nil
}
func (m *mockSessionManager) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	return nil, nil
}
func (m *mockSessionManager) Read(ctx context.Context, sessionID string, password *string) (*types.Session, error) {
	return nil, nil
}
func (m *mockSessionManager) Update(ctx context.Context, sessionID string, update *types.SessionUpdate) (*types.Session, error) {
	return nil, nil
}
func (m *mockSessionManager) Delete(ctx context.Context, sessionID string) error     { return nil }
func (m *mockSessionManager) HardDelete(ctx context.Context, sessionID string) error { return nil }

type mockDB struct{}

func (m *mockDB) CreateSession(ctx context.Context, session *types.Session) error { return nil }
func (m *mockDB) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	return nil, nil
}
func (m *mockDB) UpdateSession(ctx context.Context, session *types.Session) error { return nil }
func (m *mockDB) SoftDeleteSession(ctx context.Context, sessionID string) error   { return nil }
func (m *mockDB) HardDeleteSession(ctx context.Context, sessionID string) error   { return nil }
func (m *mockDB) HealthCheck(ctx context.Context) error                           { return nil }
func (m *mockDB) Close() error                                                    { return nil }

type mockVerifier struct{}

func (m *mockVerifier) Hash(secret string) (string, error) { return "h:" + secret, nil }
func (m *mockVerifier) Verify(hash, secret string) bool    { return hash == "h:"+secret }

// Architectural Validation Tests - Ensure interfaces are properly defined

func TestInterfaces_ArchitecturalCompliance(t *testing.T) {
	var _ interfaces.Connection = &mockConnection{}
	var _ interfaces.SessionManager = &mockSessionManager{}
	var _ interfaces.DatabaseManager = &mockDB{}
	var _ interfaces.CredentialVerifier = &mockVerifier{}
}

// Functional Validation Tests - Error taxonomy

func TestErrors_AreDistinct(t *testing.T) {
	all := []error{
		interfaces.ErrSessionNotFound,
		interfaces.ErrSessionExpired,
		interfaces.ErrPasswordRequired,
		interfaces.ErrPasswordIncorrect,
	}
	for i := range all {
		for j := range all {
			if i != j && errors.Is(all[i], all[j]) {
				t.Errorf("%v should not match %v", all[i], all[j])
			}
		}
	}
}

func TestIsUnauthorized(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{interfaces.ErrPasswordRequired, true},
		{fmt.Errorf("read: %w", interfaces.ErrPasswordIncorrect), true},
		{interfaces.ErrSessionNotFound, false},
		{interfaces.ErrSessionExpired, false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := interfaces.IsUnauthorized(tt.err); got != tt.want {
			t.Errorf("IsUnauthorized(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
