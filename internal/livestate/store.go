package livestate

import (
	"context"
	"errors"
	"time"
)

// ErrStoreClosed is returned by a store used after Close
var ErrStoreClosed = errors.New("live state store is closed")

// Store is the primitive key/value, set and hash contract live state is
// built on
// ARCHITECTURAL DISCOVERY: Every method is individually atomic and there is
// no multi-key transaction; callers that touch several keys must tolerate
// readers observing a partial update
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error

	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key, field string) error

	// Expire sets a TTL hint; stores without expiry support may ignore it
	Expire(ctx context.Context, key string, ttl time.Duration) error

	Ping(ctx context.Context) error
	Close() error
}
