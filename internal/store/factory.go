package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"empathos.app/relay/core/config"
)

// NewSessionStore builds the session backend selected by cfg.
func NewSessionStore(ctx context.Context, cfg config.SessionStoreConfig) (SessionStore, error) {
	if !cfg.UsesRedis() {
		slog.InfoContext(ctx, "using in-memory session store", "ttl", cfg.TTL)
		return NewMemorySessionStore(cfg.TTL), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	slog.InfoContext(ctx, "using redis session store", "addr", opts.Addr, "ttl", cfg.TTL)
	return NewRedisSessionStore(client, cfg.TTL), nil
}
