package integration

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"interviewpad/pkg/types"
)

// Frame is an outbound event as a client sees it
type Frame struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// TestClient is a live editing websocket client for end-to-end tests
type TestClient struct {
	Name      string
	ServerURL string

	conn   *websocket.Conn
	frames chan Frame
	done   chan struct{}

	writeMu sync.Mutex
	once    sync.Once
}

// Connect dials /ws on the server and starts collecting frames
func Connect(ctx context.Context, t *testing.T, serverURL, name string) *TestClient {
	t.Helper()

	u, err := url.Parse(serverURL)
	if err != nil {
		t.Fatalf("invalid server URL: %v", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		t.Fatalf("failed to connect %s: %v", name, err)
	}

	tc := &TestClient{
		Name:      name,
		ServerURL: serverURL,
		conn:      conn,
		frames:    make(chan Frame, 100),
		done:      make(chan struct{}),
	}
	go tc.readLoop()
	t.Cleanup(tc.Close)
	return tc
}

// readLoop continuously reads frames until the connection closes
func (tc *TestClient) readLoop() {
	defer close(tc.done)
	for {
		var f Frame
		if err := tc.conn.ReadJSON(&f); err != nil {
			return
		}
		select {
		case tc.frames <- f:
		default:
			// Drop on overflow; tests only wait for a handful of frames
		}
	}
}

// Send writes one inbound event
func (tc *TestClient) Send(t *testing.T, event string, data interface{}) {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	tc.writeMu.Lock()
	defer tc.writeMu.Unlock()
	if err := tc.conn.WriteJSON(types.Envelope{Event: event, Data: payload}); err != nil {
		t.Fatalf("%s: send %s failed: %v", tc.Name, event, err)
	}
}

// Join sends a join and waits for the snapshot
func (tc *TestClient) Join(t *testing.T, sessionID string, password *string) types.SessionStatePayload {
	t.Helper()
	tc.Send(t, types.EventJoin, types.JoinEvent{SessionID: sessionID, Name: tc.Name, Password: password})
	var state types.SessionStatePayload
	tc.Expect(t, types.EventSessionState, &state)
	return state
}

// Expect waits for the next frame named event, skipping others, and decodes
// its data into v when v is non-nil
func (tc *TestClient) Expect(t *testing.T, event string, v interface{}) Frame {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f := <-tc.frames:
			if f.Event != event {
				continue
			}
			if v != nil {
				if err := json.Unmarshal(f.Data, v); err != nil {
					t.Fatalf("%s: decode %s: %v", tc.Name, event, err)
				}
			}
			return f
		case <-tc.done:
			t.Fatalf("%s: connection closed while waiting for %s", tc.Name, event)
		case <-timeout:
			t.Fatalf("%s: timed out waiting for %s", tc.Name, event)
		}
	}
}

// ExpectNone fails if a frame named event arrives within d
func (tc *TestClient) ExpectNone(t *testing.T, event string, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case f := <-tc.frames:
			if f.Event == event {
				t.Fatalf("%s: unexpected %s: %s", tc.Name, event, f.Data)
			}
		case <-deadline:
			return
		}
	}
}

// Close sends a close frame and tears the connection down
func (tc *TestClient) Close() {
	tc.once.Do(func() {
		tc.writeMu.Lock()
		_ = tc.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		tc.writeMu.Unlock()
		_ = tc.conn.Close()
	})
}
