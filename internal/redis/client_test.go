package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KirkDiggler/rpg-sheet/internal/redis"
)

func TestNewClient(t *testing.T) {
	t.Run("requires endpoint", func(t *testing.T) {
		client, err := redis.NewClient("", nil)
		assert.Error(t, err)
		assert.Nil(t, client)
	})

	t.Run("pings a live server", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := redis.NewClient(mr.Addr(), &redis.Options{PoolSize: 2})
		require.NoError(t, err)
		defer func() { _ = client.Close() }()

		assert.NoError(t, redis.Ping(context.Background(), client))
	})

	t.Run("ping fails when server is gone", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		client, err := redis.NewClient(addr, &redis.Options{MaxRetries: -1})
		require.NoError(t, err)
		defer func() { _ = client.Close() }()

		assert.Error(t, redis.Ping(context.Background(), client))
	})

	t.Run("nil client", func(t *testing.T) {
		assert.Error(t, redis.Ping(context.Background(), nil))
	})
}
