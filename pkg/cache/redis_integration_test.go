//go:build integration

package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/browo-hrthis/fetchkit/pkg/cache"
	"github.com/browo-hrthis/fetchkit/pkg/redis"
)

const testRedisURL = "redis://localhost:6379/0"

func newTestRedisClient(t *testing.T) goredis.UniversalClient {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = testRedisURL
	}

	ctx := context.Background()
	client, err := redis.Open(ctx, url)
	require.NoError(t, err, "failed to connect to Redis")

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func newTestRedisCache[V any](t *testing.T, prefix string) (*cache.Redis[V], *clock.Mock) {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(time.Now())

	c := cache.NewRedis[V](newTestRedisClient(t), nil,
		cache.WithPrefix(prefix),
		cache.WithRedisClock(mock),
	)
	t.Cleanup(func() {
		_, _ = c.Invalidate(context.Background(), "")
	})

	return c, mock
}

// --- Redis: Get / Set ---

func TestRedis_GetSet(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrNotFound for missing key", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestRedisCache[string](t, "test-get-miss")

		_, err := c.Get(context.Background(), "missing")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("round-trips struct values with metadata", func(t *testing.T) {
		t.Parallel()

		c, mock := newTestRedisCache[employee](t, "test-get-hit")

		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "emp:1", employee{ID: 1, Name: "A"}, 5*time.Second))

		e, err := c.Entry(ctx, "emp:1")
		require.NoError(t, err)
		require.Equal(t, employee{ID: 1, Name: "A"}, e.Data)
		require.Equal(t, 5*time.Second, e.TTL)
		require.Equal(t, mock.Now().UnixMilli(), e.Timestamp.UnixMilli())
	})

	t.Run("expired entry is removed on read", func(t *testing.T) {
		t.Parallel()

		c, mock := newTestRedisCache[string](t, "test-expire")

		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "key", "value", 10*time.Second))

		mock.Add(8 * time.Second)
		require.True(t, c.IsStale(ctx, "key"))

		mock.Add(3 * time.Second)
		_, err := c.Get(ctx, "key")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})
}

// --- Redis: Invalidate ---

func TestRedis_Invalidate(t *testing.T) {
	t.Parallel()

	t.Run("removes keys containing substring under prefix", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestRedisCache[string](t, "test-invalidate")

		ctx := context.Background()
		for _, k := range []string{"employees", "employee:1", "employee:2"} {
			require.NoError(t, c.Set(ctx, k, k, time.Minute))
		}

		n, err := c.Invalidate(ctx, "employee:")
		require.NoError(t, err)
		require.Equal(t, 2, n)

		n, err = c.Invalidate(ctx, "employee:")
		require.NoError(t, err)
		require.Zero(t, n)

		_, err = c.Get(ctx, "employees")
		require.NoError(t, err)
	})

	t.Run("escapes glob characters", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestRedisCache[string](t, "test-glob")

		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "a*b", "1", time.Minute))
		require.NoError(t, c.Set(ctx, "axb", "2", time.Minute))

		n, err := c.Invalidate(ctx, "a*b")
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})
}
