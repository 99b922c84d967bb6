package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

const deliveryBuffer = 256

// Redis relays broadcasts over Redis pub/sub, one channel per session
type Redis struct {
	client     *goredis.Client
	pubsub     *goredis.PubSub
	prefix     string
	instanceID string
	logger     *slog.Logger
	out        chan *Message
	wg         sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
}

// NewRedis pattern-subscribes to prefix* and starts the receive loop
func NewRedis(ctx context.Context, client *goredis.Client, prefix, instanceID string, logger *slog.Logger) (*Redis, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ps := client.PSubscribe(ctx, prefix+"*")
	// TECHNICAL DISCOVERY: Wait for the subscription confirmation so nothing
	// published right after startup is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s*: %w", prefix, err)
	}

	r := &Redis{
		client:     client,
		pubsub:     ps,
		prefix:     prefix,
		instanceID: instanceID,
		logger:     logger.With("component", "fanout", "instance", instanceID),
		out:        make(chan *Message, deliveryBuffer),
	}

	r.wg.Add(1)
	go r.receiveLoop()

	return r, nil
}

// Publish sends a frame to every other instance
func (r *Redis) Publish(ctx context.Context, sessionID, skip string, frame []byte) error {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	data, err := json.Marshal(&Message{
		Origin:    r.instanceID,
		SessionID: sessionID,
		Skip:      skip,
		Frame:     frame,
	})
	if err != nil {
		return fmt.Errorf("marshal fanout message: %w", err)
	}

	if err := r.client.Publish(ctx, r.prefix+sessionID, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", sessionID, err)
	}
	return nil
}

// Deliveries yields messages published by other instances
func (r *Redis) Deliveries() <-chan *Message {
	return r.out
}

// Close stops the subscription and closes the deliveries channel
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	err := r.pubsub.Close()
	r.wg.Wait()
	close(r.out)
	return err
}

func (r *Redis) receiveLoop() {
	defer r.wg.Done()

	for msg := range r.pubsub.Channel() {
		var m Message
		if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
			r.logger.Warn("dropping malformed fanout message", "channel", msg.Channel, "error", err)
			continue
		}
		if m.Origin == r.instanceID {
			continue
		}
		if m.SessionID == "" {
			m.SessionID = strings.TrimPrefix(msg.Channel, r.prefix)
		}

		select {
		case r.out <- &m:
		default:
			r.logger.Warn("fanout delivery buffer full, dropping message", "session_id", m.SessionID)
		}
	}
}
