// Package redis opens the shared go-redis client backing the rate limiter.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ledger/internal/platform/config"
)

const retryStep = 200 * time.Millisecond

type Client struct {
	*redis.Client
	addr string
}

// Connect applies the pool settings from cfg and waits until the server
// answers PING. An empty URL returns (nil, nil): redis is optional.
func Connect(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := waitReady(ctx, client, cfg.ConnectAttempts, logger); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Info("redis connected", "addr", opts.Addr, "db", opts.DB)
	return &Client{Client: client, addr: opts.Addr}, nil
}

// options parses the URL; zero values in cfg keep the go-redis defaults.
func options(cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

func waitReady(ctx context.Context, client *redis.Client, attempts int, logger *slog.Logger) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = client.Ping(ctx).Err(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		logger.WarnContext(ctx, "redis not ready", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryStep):
		}
	}
	return fmt.Errorf("redis ping failed after %d attempts: %w", attempts, err)
}

// Health pings the server; the error names the address for /health output.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", c.addr, err)
	}
	return nil
}
