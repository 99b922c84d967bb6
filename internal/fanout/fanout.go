package fanout

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrClosed is returned by Publish after Close
var ErrClosed = errors.New("fanout is closed")

// Message is one broadcast crossing instances
type Message struct {
	Origin    string          `json:"origin"`
	SessionID string          `json:"session_id"`
	Skip      string          `json:"skip,omitempty"`
	Frame     json.RawMessage `json:"frame"`
}

// Fanout relays room broadcasts to other server instances
// ARCHITECTURAL DISCOVERY: Local delivery never waits on the relay; the hub
// delivers to its own room members first and publishes afterwards
type Fanout interface {
	Publish(ctx context.Context, sessionID, skip string, frame []byte) error
	Deliveries() <-chan *Message
	Close() error
}

// Noop is the single-instance Fanout
type Noop struct{}

func (Noop) Publish(ctx context.Context, sessionID, skip string, frame []byte) error { return nil }

// Deliveries returns a nil channel, which never yields
func (Noop) Deliveries() <-chan *Message { return nil }

func (Noop) Close() error { return nil }
