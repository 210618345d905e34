package cache

import (
	"time"

	"github.com/benbjohnson/clock"
)

// MemoryOption configures the in-memory cache.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	clock           clock.Clock
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	maxEntries      int
}

func defaultMemoryOptions() *memoryOptions {
	return &memoryOptions{
		clock:           clock.New(),
		defaultTTL:      DefaultTTL,
		cleanupInterval: 0, // expiry on read only
		maxEntries:      0, // 0 = unlimited
	}
}

// WithDefaultTTL sets the default expiration for cache entries when
// Set is called with a zero TTL.
// Default: 5 minutes.
func WithDefaultTTL(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		o.defaultTTL = d
	}
}

// WithCleanupInterval enables a background janitor that removes expired
// entries at the given interval. Zero disables it.
// Default: 0 (entries are only removed when read).
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		o.cleanupInterval = d
	}
}

// WithMaxEntries sets the maximum number of entries in the cache.
// When the limit is reached, the least recently used entry is evicted.
// Zero means unlimited.
// Default: 0 (unlimited).
func WithMaxEntries(n int) MemoryOption {
	return func(o *memoryOptions) {
		o.maxEntries = n
	}
}

// WithClock sets the time source used for timestamps and expiry checks.
func WithClock(c clock.Clock) MemoryOption {
	return func(o *memoryOptions) {
		if c != nil {
			o.clock = c
		}
	}
}
