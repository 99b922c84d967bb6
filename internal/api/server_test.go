package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"interviewpad/internal/logger"
	"interviewpad/pkg/interfaces"
	"interviewpad/pkg/types"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// mockSessionManager keeps sessions in memory with plaintext passwords
type mockSessionManager struct {
	mu       sync.Mutex
	sessions map[string]*types.Session
	failWith error
}

func newMockSessionManager() *mockSessionManager {
	return &mockSessionManager{sessions: make(map[string]*types.Session)}
}

func (m *mockSessionManager) Create(ctx context.Context, req *types.SessionCreate) (*types.Session, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &types.Session{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Language:  types.DefaultLanguage,
		Code:      req.InitialCode,
		CreatedAt: time.Now().UTC(),
		IsActive:  true,
	}
	if req.Language != nil {
		s.Language = *req.Language
	}
	if req.ExpiresInHours != nil {
		exp := s.CreatedAt.Add(time.Duration(*req.ExpiresInHours) * time.Hour)
		s.ExpiresAt = &exp
	}
	if req.Password != nil {
		p := *req.Password
		s.PasswordHash = &p
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *mockSessionManager) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || !s.IsActive {
		return nil, interfaces.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSessionManager) Read(ctx context.Context, sessionID string, password *string) (*types.Session, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.IsExpiredAt(time.Now()) {
		return nil, interfaces.ErrSessionExpired
	}
	if s.PasswordHash != nil {
		if password == nil {
			return nil, interfaces.ErrPasswordRequired
		}
		if *password != *s.PasswordHash {
			return nil, interfaces.ErrPasswordIncorrect
		}
	}
	return s, nil
}

func (m *mockSessionManager) Update(ctx context.Context, sessionID string, update *types.SessionUpdate) (*types.Session, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || !s.IsActive {
		return nil, interfaces.ErrSessionNotFound
	}
	if update.Title != nil {
		s.Title = *update.Title
	}
	if update.Language != nil {
		s.Language = *update.Language
	}
	if update.Code != nil {
		s.Code = *update.Code
	}
	cp := *s
	return &cp, nil
}

func (m *mockSessionManager) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || !s.IsActive {
		return interfaces.ErrSessionNotFound
	}
	s.IsActive = false
	return nil
}

func (m *mockSessionManager) HardDelete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *mockSessionManager) expire(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	past := time.Now().Add(-time.Minute)
	m.sessions[id].ExpiresAt = &past
}

type mockChecker struct{ err error }

func (m mockChecker) HealthCheck(ctx context.Context) error { return m.err }
func (m mockChecker) Ping(ctx context.Context) error        { return m.err }

type mockPresence struct {
	participants map[string][]*types.Participant
	err          error
}

func (m *mockPresence) ParticipantsOf(ctx context.Context, sessionID string) ([]*types.Participant, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.participants[sessionID], nil
}

func (m *mockPresence) Stats() (int, int) { return 2, 3 }

type fixture struct {
	server   *Server
	sessions *mockSessionManager
	presence *mockPresence
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		sessions: newMockSessionManager(),
		presence: &mockPresence{participants: map[string][]*types.Participant{}},
	}
	f.server = NewServer(f.sessions, mockChecker{}, mockChecker{}, f.presence, nil, opts, logger.Discard())
	return f
}

func (f *fixture) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

func (f *fixture) create(t *testing.T, body string) SessionResponse {
	t.Helper()
	w := f.do(http.MethodPost, "/api/sessions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode[SessionResponse](t, w)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

// Functional Validation Tests - Session Endpoints

func TestServer_CreateSession(t *testing.T) {
	f := newFixture(t, Options{})

	resp := f.create(t, `{"title":"Backend round","language":"go","initial_code":"package main"}`)

	if resp.Title != "Backend round" || resp.Language != types.LanguageGo || resp.Code != "package main" {
		t.Errorf("Unexpected session %+v", resp)
	}
	if resp.IsProtected || !resp.IsActive || resp.ExpiresAt != nil {
		t.Errorf("Unexpected flags %+v", resp)
	}
	if resp.ShareURL != "http://example.com/session/"+resp.ID {
		t.Errorf("Expected share URL from request host, got %s", resp.ShareURL)
	}
}

func TestServer_CreateSessionProtectedHidesPassword(t *testing.T) {
	f := newFixture(t, Options{PublicBaseURL: "https://pad.example/"})

	w := f.do(http.MethodPost, "/api/sessions", `{"title":"Secret","password":"hunter22","expires_in_hours":2}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "hunter22") || strings.Contains(w.Body.String(), "password") {
		t.Errorf("Response must not carry the password: %s", w.Body.String())
	}

	resp := decode[SessionResponse](t, w)
	if !resp.IsProtected || resp.ExpiresAt == nil {
		t.Errorf("Expected protected expiring session, got %+v", resp)
	}
	if resp.ShareURL != "https://pad.example/session/"+resp.ID {
		t.Errorf("Expected configured base URL, got %s", resp.ShareURL)
	}
}

func TestServer_CreateSessionRejectsBadInput(t *testing.T) {
	f := newFixture(t, Options{})

	tests := []struct {
		name  string
		body  string
		code  int
		field string
	}{
		{"malformed json", `{"title":`, http.StatusBadRequest, ""},
		{"empty title", `{"title":""}`, http.StatusUnprocessableEntity, "title"},
		{"unknown language", `{"title":"x","language":"cobol"}`, http.StatusUnprocessableEntity, "language"},
		{"expiry too long", `{"title":"x","expires_in_hours":500}`, http.StatusUnprocessableEntity, "expires_in_hours"},
		{"short password", `{"title":"x","password":"abc"}`, http.StatusUnprocessableEntity, "password"},
		{"wrong type", `{"title":42}`, http.StatusUnprocessableEntity, "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/sessions", tt.body)
			if w.Code != tt.code {
				t.Fatalf("Expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
			body := decode[ErrorResponse](t, w)
			if body.Detail == "" {
				t.Error("Expected detail in error body")
			}
			if tt.field == "" {
				return
			}
			found := false
			for _, fe := range body.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected field error for %s, got %+v", tt.field, body.Errors)
			}
		})
	}
}

func TestServer_GetSessionGate(t *testing.T) {
	f := newFixture(t, Options{})
	open := f.create(t, `{"title":"Open"}`)
	locked := f.create(t, `{"title":"Locked","password":"letmein"}`)
	gone := f.create(t, `{"title":"Gone","expires_in_hours":1}`)
	f.sessions.expire(gone.ID)

	tests := []struct {
		name   string
		path   string
		code   int
		detail string
	}{
		{"open", "/api/sessions/" + open.ID, http.StatusOK, ""},
		{"unknown", "/api/sessions/" + uuid.NewString(), http.StatusNotFound, "Session not found"},
		{"not a uuid", "/api/sessions/nope", http.StatusNotFound, "Session not found"},
		{"expired", "/api/sessions/" + gone.ID, http.StatusGone, "Session has expired"},
		{"no password", "/api/sessions/" + locked.ID, http.StatusUnauthorized, "Password required for this session"},
		{"empty password", "/api/sessions/" + locked.ID + "?password=", http.StatusUnauthorized, "Incorrect password"},
		{"wrong password", "/api/sessions/" + locked.ID + "?password=nope", http.StatusUnauthorized, "Incorrect password"},
		{"right password", "/api/sessions/" + locked.ID + "?password=letmein", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodGet, tt.path, "")
			if w.Code != tt.code {
				t.Fatalf("Expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
			if tt.detail != "" {
				if got := decode[ErrorResponse](t, w).Detail; got != tt.detail {
					t.Errorf("Expected detail %q, got %q", tt.detail, got)
				}
			}
		})
	}
}

func TestServer_UpdateSession(t *testing.T) {
	f := newFixture(t, Options{})
	s := f.create(t, `{"title":"Before","initial_code":"x = 1"}`)

	w := f.do(http.MethodPatch, "/api/sessions/"+s.ID, `{"title":"After","language":"python"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[SessionResponse](t, w)
	if resp.Title != "After" || resp.Language != types.LanguagePython || resp.Code != "x = 1" {
		t.Errorf("Partial update not applied correctly: %+v", resp)
	}

	if w := f.do(http.MethodPatch, "/api/sessions/"+s.ID, `{"language":"cobol"}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for invalid language, got %d", w.Code)
	}
	if w := f.do(http.MethodPatch, "/api/sessions/"+uuid.NewString(), `{"title":"x"}`); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session, got %d", w.Code)
	}
}

func TestServer_DeleteSession(t *testing.T) {
	f := newFixture(t, Options{})
	s := f.create(t, `{"title":"Doomed"}`)

	w := f.do(http.MethodDelete, "/api/sessions/"+s.ID, "")
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("Expected empty 204, got %d %q", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodGet, "/api/sessions/"+s.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("Deleted session should read as 404, got %d", w.Code)
	}
	if w := f.do(http.MethodDelete, "/api/sessions/"+s.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("Second delete should be 404, got %d", w.Code)
	}
}

func TestServer_ListParticipants(t *testing.T) {
	f := newFixture(t, Options{})
	s := f.create(t, `{"title":"Live"}`)
	locked := f.create(t, `{"title":"Locked","password":"letmein"}`)
	f.presence.participants[s.ID] = []*types.Participant{
		{ID: "c1", Name: "Ada", Color: "#FF6B6B"},
		{ID: "c2", Name: "Linus", Color: "#4ECDC4"},
	}

	w := f.do(http.MethodGet, "/api/sessions/"+s.ID+"/participants", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	resp := decode[ParticipantsResponse](t, w)
	if resp.Count != 2 || len(resp.Participants) != 2 {
		t.Errorf("Expected 2 participants, got %+v", resp)
	}

	w = f.do(http.MethodGet, "/api/sessions/"+locked.ID+"/participants", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Participants should share the read gate, got %d", w.Code)
	}
	w = f.do(http.MethodGet, "/api/sessions/"+locked.ID+"/participants?password=letmein", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"participants":[]`) {
		t.Errorf("Expected empty list, got %d %s", w.Code, w.Body.String())
	}

	f.presence.err = errors.New("redis down")
	if w := f.do(http.MethodGet, "/api/sessions/"+s.ID+"/participants", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when live state fails, got %d", w.Code)
	}
}

// Functional Validation Tests - Catalog and Health

func TestServer_ListLanguages(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(http.MethodGet, "/api/languages", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	resp := decode[LanguagesResponse](t, w)
	if len(resp.Languages) != len(types.SupportedLanguages) {
		t.Errorf("Expected %d languages, got %d", len(types.SupportedLanguages), len(resp.Languages))
	}
}

func TestServer_HealthCheck(t *testing.T) {
	f := newFixture(t, Options{Version: "1.2.3"})

	for _, path := range []string{"/health", "/api/health"} {
		w := f.do(http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		resp := decode[HealthResponse](t, w)
		if resp.Status != statusHealthy || resp.Version != "1.2.3" {
			t.Errorf("%s: unexpected body %+v", path, resp)
		}
		if resp.Rooms != 2 || resp.Connections != 3 {
			t.Errorf("%s: expected stats 2/3, got %d/%d", path, resp.Rooms, resp.Connections)
		}
	}
}

func TestServer_HealthCheckDegraded(t *testing.T) {
	server := NewServer(newMockSessionManager(), mockChecker{}, mockChecker{err: errors.New("refused")},
		&mockPresence{}, nil, Options{}, logger.Discard())

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", w.Code)
	}
	resp := decode[HealthResponse](t, w)
	if resp.Status != statusDegraded || resp.Services["live_state"] != statusUnhealthy || resp.Services["database"] != statusHealthy {
		t.Errorf("Unexpected degraded body %+v", resp)
	}
}

func TestServer_Root(t *testing.T) {
	f := newFixture(t, Options{Version: "0.1.0"})

	w := f.do(http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"interviewpad"`) {
		t.Errorf("Unexpected root response %d %s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodGet, "/nowhere", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown route, got %d", w.Code)
	}
}

// Technical Validation Tests - Middleware

func TestServer_CORSMiddleware(t *testing.T) {
	f := newFixture(t, Options{CORSOrigins: []string{"http://localhost:5173"}})

	w := f.do(http.MethodOptions, "/api/sessions", "", "Origin", "http://localhost:5173")
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Expected echoed origin, got %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("Expected credentials to be allowed")
	}

	w = f.do(http.MethodGet, "/api/languages", "", "Origin", "https://evil.example")
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("Unlisted origin must not be allowed")
	}
}

func TestServer_ForwardedBaseURL(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(http.MethodPost, "/api/sessions", `{"title":"Proxy"}`,
		"X-Forwarded-Proto", "https", "X-Forwarded-Host", "pad.example, internal")
	resp := decode[SessionResponse](t, w)
	if resp.ShareURL != "https://pad.example/session/"+resp.ID {
		t.Errorf("Expected forwarded base URL, got %s", resp.ShareURL)
	}
}

func TestServer_ErrorHandling(t *testing.T) {
	f := newFixture(t, Options{})

	f.sessions.failWith = errors.New("disk on fire")
	w := f.do(http.MethodPost, "/api/sessions", `{"title":"x"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "disk on fire") {
		t.Error("Internal errors must not leak to clients")
	}

	f.sessions.failWith = context.DeadlineExceeded
	w = f.do(http.MethodGet, "/api/sessions/"+uuid.NewString(), "")
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("Expected 504 on timeout, got %d", w.Code)
	}
}

func TestServer_WebSocketRoute(t *testing.T) {
	called := false
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})
	server := NewServer(newMockSessionManager(), nil, nil, nil, ws, Options{}, logger.Discard())

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", bytes.NewReader(nil)))
	if !called || w.Code != http.StatusTeapot {
		t.Errorf("Expected /ws to reach the socket handler, got %d", w.Code)
	}
}
