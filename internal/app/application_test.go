package app

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"interviewpad/internal/config"
	"interviewpad/internal/fanout"
	"interviewpad/internal/logger"
	"interviewpad/pkg/interfaces"
	"interviewpad/pkg/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "nested", "pad.db")
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = freePort(t)
	cfg.Security.BcryptCost = 4
	return cfg
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func newApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	application, err := New(context.Background(), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { application.Shutdown(context.Background()) })
	return application
}

// FUNCTIONAL VALIDATION TEST: Application construction validation
func TestApplication_ConstructorValidation(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Port = -1

	application, err := New(context.Background(), cfg, logger.Discard())
	if err == nil {
		t.Error("Constructor should reject invalid configuration")
	}
	if application != nil {
		t.Error("Constructor should not return application with invalid config")
	}
}

func TestApplication_RequiredRedisUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Addr = "127.0.0.1:" + strconv.Itoa(freePort(t))

	if _, err := New(context.Background(), cfg, logger.Discard()); err == nil {
		t.Error("Unreachable Redis without fallback should fail startup")
	}

	cfg.Redis.AllowFallback = true
	application := newApp(t, cfg)
	if application.redis != nil {
		t.Error("Fallback should run on the in-memory store")
	}
}

// FUNCTIONAL VALIDATION TEST: Start serves HTTP until shutdown
func TestApplication_StartAndShutdown(t *testing.T) {
	application := newApp(t, testConfig(t))

	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := application.Start(context.Background()); err == nil {
		t.Error("Second Start should fail")
	}

	resp, err := http.Get("http://" + application.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected healthy instance, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if err := application.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown should be idempotent: %v", err)
	}
	if _, err := http.Get("http://" + application.Addr() + "/api/health"); err == nil {
		t.Error("Listener should be closed after shutdown")
	}
}

func TestApplication_RunStopsOnCancel(t *testing.T) {
	application := newApp(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// FUNCTIONAL VALIDATION TEST: Purge removes the record and its live state
func TestApplication_Purge(t *testing.T) {
	application := newApp(t, testConfig(t))
	ctx := context.Background()

	session, err := application.sessions.Create(ctx, &types.SessionCreate{Title: "Purge me", InitialCode: "x"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := application.state.SetCode(ctx, session.ID, "live"); err != nil {
		t.Fatal(err)
	}

	if err := application.Purge(ctx, session.ID); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if _, err := application.sessions.Get(ctx, session.ID); !errors.Is(err, interfaces.ErrSessionNotFound) {
		t.Errorf("Expected record gone, got %v", err)
	}
	if code, _ := application.state.Code(ctx, session.ID); code != "" {
		t.Errorf("Expected live code cleared, got %q", code)
	}
	if err := application.Purge(ctx, session.ID); !errors.Is(err, interfaces.ErrSessionNotFound) {
		t.Errorf("Second purge should report not found, got %v", err)
	}
}

// TECHNICAL VALIDATION TEST: Redis backend with fan-out
func TestApplication_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.KeyTTL = time.Hour

	application := newApp(t, cfg)
	if application.redis == nil {
		t.Fatal("Expected a Redis client")
	}
	if _, ok := application.fanout.(*fanout.Redis); !ok {
		t.Errorf("Expected Redis fan-out, got %T", application.fanout)
	}

	srv := httptest.NewServer(application.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sessions", "application/json", strings.NewReader(`{"title":"Redis"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("Create failed: %d %v", resp.StatusCode, err)
	}

	if err := application.state.SetCode(context.Background(), created.ID, "print(1)"); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("session:" + created.ID + ":code") {
		t.Errorf("Expected code key in Redis, have %v", mr.Keys())
	}
}
