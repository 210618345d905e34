package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisExpirySlack keeps keys in Redis slightly past their TTL so that
// the inclusive validity check on read decides expiry, not Redis.
const redisExpirySlack = time.Second

// redisEnvelope is the stored form of an entry. Times are milliseconds.
type redisEnvelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	TTL       int64           `json:"ttl"`
}

// Redis is a cache backed by Redis.
// It serializes values using the configured Marshaler (default: JSON)
// and wraps them in an envelope carrying the write timestamp and TTL.
type Redis[V any] struct {
	client    redis.UniversalClient
	opts      *redisOptions
	marshaler Marshaler[V]
}

// NewRedis creates a new Redis-backed cache.
// The client should be obtained from pkg/redis.Open.
//
// An optional Marshaler can be provided to customize serialization.
// If nil, JSON serialization is used.
//
// Example:
//
//	client, err := redis.Open(ctx, os.Getenv("REDIS_URL"))
//	c := cache.NewRedis[Employee](client, nil,
//	    cache.WithPrefix("hr"),
//	    cache.WithRedisDefaultTTL(5 * time.Minute),
//	)
func NewRedis[V any](client redis.UniversalClient, m Marshaler[V], opts ...RedisOption) *Redis[V] {
	o := defaultRedisOptions()
	for _, opt := range opts {
		opt(o)
	}

	if m == nil {
		m = jsonMarshaler[V]{}
	}

	return &Redis[V]{
		client:    client,
		opts:      o,
		marshaler: m,
	}
}

// Get retrieves a value by key from Redis.
// Returns ErrNotFound if the key does not exist or has expired.
func (r *Redis[V]) Get(ctx context.Context, key string) (V, error) {
	e, err := r.Entry(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}
	return e.Data, nil
}

// Entry returns the stored entry for key.
func (r *Redis[V]) Entry(ctx context.Context, key string) (Entry[V], error) {
	raw, err := r.client.Get(ctx, r.prefixedKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry[V]{}, ErrNotFound
		}
		return Entry[V]{}, err
	}

	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Entry[V]{}, errors.Join(ErrUnmarshal, err)
	}

	e := Entry[V]{
		Timestamp: time.UnixMilli(env.Timestamp),
		TTL:       time.Duration(env.TTL) * time.Millisecond,
	}
	if env.TTL < 0 {
		e.TTL = -1
	}

	if e.Expired(r.opts.clock.Now()) {
		_ = r.client.Del(ctx, r.prefixedKey(key)).Err()
		return Entry[V]{}, ErrNotFound
	}

	v, err := r.marshaler.Unmarshal(env.Data)
	if err != nil {
		return Entry[V]{}, err
	}
	e.Data = v

	return e, nil
}

// Set stores a value in Redis with the given TTL.
// TTL semantics: positive = expires after duration, zero = use default TTL,
// negative = no expiration (persists until manually deleted or Redis evicts it).
func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := r.marshaler.Marshal(value)
	if err != nil {
		return err
	}

	if ttl == 0 {
		ttl = r.opts.defaultTTL
	}

	env := redisEnvelope{
		Data:      data,
		Timestamp: r.opts.clock.Now().UnixMilli(),
		TTL:       ttl.Milliseconds(),
	}
	if ttl < 0 {
		env.TTL = -1
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return errors.Join(ErrMarshal, err)
	}

	// Redis interprets 0 as no expiration.
	var redisTTL time.Duration
	if ttl > 0 {
		redisTTL = ttl + redisExpirySlack
	}

	return r.client.Set(ctx, r.prefixedKey(key), raw, redisTTL).Err()
}

// Delete removes a key from Redis.
func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefixedKey(key)).Err()
}

// Invalidate removes all keys under the configured prefix whose name
// contains match. Keys are enumerated with SCAN, which does not block
// the server.
func (r *Redis[V]) Invalidate(ctx context.Context, match string) (int, error) {
	pattern := r.prefixedKey("*" + escapeGlob(match) + "*")
	if match == "" {
		pattern = r.prefixedKey("*")
	}

	var (
		cursor  uint64
		removed int
	)

	for {
		keys, nextCursor, err := r.client.Scan(ctx, cursor, pattern, r.opts.scanCount).Result()
		if err != nil {
			return removed, err
		}

		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return removed, nil
}

// IsStale reports whether key is absent, expired, or past the stale threshold.
func (r *Redis[V]) IsStale(ctx context.Context, key string) bool {
	e, err := r.Entry(ctx, key)
	if err != nil {
		return true
	}
	return e.Stale(r.opts.clock.Now())
}

// Close is a no-op for Redis. The Redis client lifecycle is managed
// separately by the caller (via pkg/redis.Shutdown).
func (r *Redis[V]) Close() error {
	return nil
}

func (r *Redis[V]) prefixedKey(key string) string {
	if r.opts.prefix == "" {
		return key
	}
	return r.opts.prefix + ":" + key
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// escapeGlob quotes the characters SCAN MATCH treats as wildcards.
func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}

var _ Cache[any] = (*Redis[any])(nil)
