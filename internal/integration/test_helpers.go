package integration

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"interviewpad/internal/app"
	"interviewpad/internal/config"
	"interviewpad/internal/logger"
)

// instance is one running server
type instance struct {
	app *app.Application
	url string
}

// startInstance runs a full server on a free local port; instances given the
// same dbPath and redisAddr share durable and live state
func startInstance(t *testing.T, dbPath, redisAddr string) *instance {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Database.Path = dbPath
	cfg.Redis.Addr = redisAddr
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = freePort(t)
	cfg.Security.BcryptCost = 4

	application, err := app.New(context.Background(), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("failed to build instance: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("failed to start instance: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		application.Shutdown(ctx)
	})

	return &instance{app: application, url: "http://" + application.Addr()}
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "interviewpad.db")
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

// createSession posts body to the REST API and returns the new session id
func createSession(t *testing.T, inst *instance, body string) string {
	t.Helper()
	resp, err := http.Post(inst.url+"/api/sessions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	return created.ID
}

// getJSON decodes a GET response into v and returns the status code
func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func strPtr(s string) *string { return &s }
