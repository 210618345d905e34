package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is used when Set is called with a zero TTL and the backend
// was not configured with a different default.
const DefaultTTL = 5 * time.Minute

// StaleFraction is the share of an entry's TTL after which it is reported
// as stale. Stale entries are still returned by Get until they expire.
const StaleFraction = 0.75

// Cache is a generic key-value store of timestamped entries with TTL.
//
// TTL semantics for Set:
//   - Positive duration: entry is valid while now-timestamp <= ttl
//   - Zero: use the cache's configured default TTL
//   - Negative: entry never expires and never becomes stale
type Cache[V any] interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist or has expired.
	// Expired entries are removed as a side effect.
	Get(ctx context.Context, key string) (V, error)

	// Entry returns the stored entry including its timestamp and TTL.
	Entry(ctx context.Context, key string) (Entry[V], error)

	// Set stores a value stamped with the current time.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Delete removes a key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Invalidate removes every entry whose key contains match.
	// An empty match removes all entries. Returns the number removed.
	Invalidate(ctx context.Context, match string) (int, error)

	// IsStale reports whether the key is absent or older than
	// StaleFraction of its TTL.
	IsStale(ctx context.Context, key string) bool

	// Close releases resources (stops background goroutines, etc.).
	Close() error
}

// Entry is a cached value with the time it was written and its lifetime.
type Entry[V any] struct {
	Timestamp time.Time
	Data      V
	TTL       time.Duration
}

// Age returns how long ago the entry was written.
func (e Entry[V]) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// Expired reports whether the entry is past its TTL at now.
// An entry aged exactly TTL is still valid.
func (e Entry[V]) Expired(now time.Time) bool {
	if e.TTL < 0 {
		return false
	}
	return e.Age(now) > e.TTL
}

// Stale reports whether the entry is older than StaleFraction of its TTL.
func (e Entry[V]) Stale(now time.Time) bool {
	if e.TTL < 0 {
		return false
	}
	return float64(e.Age(now)) > float64(e.TTL)*StaleFraction
}

// StaleAt returns the instant after which the entry reports stale.
func (e Entry[V]) StaleAt() time.Time {
	return e.Timestamp.Add(time.Duration(float64(e.TTL) * StaleFraction))
}

// ExpiresAt returns the last instant at which the entry is valid.
// Zero for entries that never expire.
func (e Entry[V]) ExpiresAt() time.Time {
	if e.TTL < 0 {
		return time.Time{}
	}
	return e.Timestamp.Add(e.TTL)
}

// Marshaler serializes and deserializes cache values for storage backends
// that require byte representation (e.g., Redis).
type Marshaler[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

type jsonMarshaler[V any] struct{}

func (jsonMarshaler[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

func (jsonMarshaler[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrUnmarshal, err)
	}
	return v, nil
}

var sfGroup singleflight.Group

type getOrSetResult[V any] struct {
	val V
	ttl time.Duration
}

// GetOrSet retrieves a value from the cache, or calls fn to compute it on a miss.
// Uses singleflight to prevent cache stampedes: if multiple goroutines call
// GetOrSet with the same key concurrently, fn is called only once.
//
// The callback returns the value, a TTL for caching, and an error.
// If fn returns an error, the value is not cached and the error is returned.
func GetOrSet[V any](ctx context.Context, c Cache[V], key string, fn func(ctx context.Context) (V, time.Duration, error)) (V, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}

	v, err, _ := sfGroup.Do(key, func() (any, error) {
		val, ttl, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return getOrSetResult[V]{val: val, ttl: ttl}, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	r := v.(getOrSetResult[V])

	// Best-effort cache the result.
	_ = c.Set(ctx, key, r.val, r.ttl)

	return r.val, nil
}
