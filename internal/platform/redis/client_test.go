package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/platform/config"
)

func TestOptions(t *testing.T) {
	t.Run("applies pool settings", func(t *testing.T) {
		opts, err := options(config.RedisConfig{
			URL:          "redis://cache:6380/2",
			PoolSize:     7,
			MinIdleConns: 3,
			DialTimeout:  2 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "cache:6380", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 7, opts.PoolSize)
		assert.Equal(t, 3, opts.MinIdleConns)
		assert.Equal(t, 2*time.Second, opts.DialTimeout)
	})

	t.Run("zero values keep library defaults", func(t *testing.T) {
		opts, err := options(config.RedisConfig{URL: "redis://localhost:6379/0", ReadTimeout: 0})
		require.NoError(t, err)
		assert.Equal(t, 0, opts.PoolSize)
		assert.Equal(t, time.Duration(0), opts.ReadTimeout)
	})

	t.Run("rejects malformed URL", func(t *testing.T) {
		_, err := options(config.RedisConfig{URL: "http://localhost"})
		assert.ErrorContains(t, err, "parse redis URL")
	})
}

func TestConnectWithoutURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := Connect(context.Background(), config.RedisConfig{}, logger)
	require.NoError(t, err)
	assert.Nil(t, client)
}
