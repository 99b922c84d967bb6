package livestate

import (
	"log/slog"

	"interviewpad/internal/redis"
)

// Open picks the live state backend
// FUNCTIONAL DISCOVERY: An empty address selects the in-memory store; an
// unreachable Redis falls back to memory only when allowed, otherwise the
// server refuses to start
func Open(cfg redis.Config, allowFallback bool, logger *slog.Logger) (Store, *redis.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Addr == "" {
		logger.Info("using in-memory live state store")
		return NewMemoryStore(), nil, nil
	}

	client, err := redis.New(cfg)
	if err != nil {
		if !allowFallback {
			return nil, nil, err
		}
		logger.Warn("redis connection failed, falling back to in-memory live state store", "addr", cfg.Addr, "error", err)
		return NewMemoryStore(), nil, nil
	}

	logger.Info("using redis live state store", "addr", cfg.Addr, "db", cfg.DB)
	return NewRedisStore(client.Client), client, nil
}
