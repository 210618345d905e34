package cache

import (
	"time"

	"github.com/benbjohnson/clock"
)

// RedisOption configures the Redis cache.
type RedisOption func(*redisOptions)

type redisOptions struct {
	clock      clock.Clock
	prefix     string
	defaultTTL time.Duration
	scanCount  int64
}

func defaultRedisOptions() *redisOptions {
	return &redisOptions{
		clock:      clock.New(),
		defaultTTL: DefaultTTL,
		prefix:     "",
		scanCount:  100,
	}
}

// WithRedisDefaultTTL sets the default expiration for cache entries when
// Set is called with a zero TTL.
// Default: 5 minutes.
func WithRedisDefaultTTL(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.defaultTTL = d
	}
}

// WithPrefix sets a key prefix for all cache operations.
// Keys are stored as "{prefix}:{key}". This is useful for namespacing
// when multiple caches share the same Redis instance.
func WithPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		o.prefix = prefix
	}
}

// WithRedisClock sets the time source used for entry timestamps.
func WithRedisClock(c clock.Clock) RedisOption {
	return func(o *redisOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithScanCount sets the COUNT hint for SCAN during invalidation.
// Default: 100.
func WithScanCount(n int64) RedisOption {
	return func(o *redisOptions) {
		if n > 0 {
			o.scanCount = n
		}
	}
}
