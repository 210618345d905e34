package cache

import (
	"time"

	"github.com/benbjohnson/clock"
)

// RistrettoOption configures the ristretto-backed cache.
type RistrettoOption func(*ristrettoOptions)

type ristrettoOptions struct {
	clock       clock.Clock
	cost        func(any) int64
	defaultTTL  time.Duration
	maxCost     int64
	numCounters int64
}

func defaultRistrettoOptions() *ristrettoOptions {
	return &ristrettoOptions{
		clock:       clock.New(),
		defaultTTL:  DefaultTTL,
		maxCost:     10_000,
		numCounters: 100_000,
	}
}

// WithMaxCost sets the total cost budget. With the default cost of 1
// per entry this is the maximum number of entries.
// Default: 10000.
func WithMaxCost(n int64) RistrettoOption {
	return func(o *ristrettoOptions) {
		if n > 0 {
			o.maxCost = n
			// ristretto recommends ~10x counters per expected entry.
			o.numCounters = max(n*10, 1000)
		}
	}
}

// WithNumCounters overrides the number of admission counters.
func WithNumCounters(n int64) RistrettoOption {
	return func(o *ristrettoOptions) {
		if n > 0 {
			o.numCounters = n
		}
	}
}

// WithCost sets a function computing the cost of a value.
func WithCost(fn func(any) int64) RistrettoOption {
	return func(o *ristrettoOptions) {
		o.cost = fn
	}
}

// WithRistrettoDefaultTTL sets the TTL used when Set is called with zero.
// Default: 5 minutes.
func WithRistrettoDefaultTTL(d time.Duration) RistrettoOption {
	return func(o *ristrettoOptions) {
		o.defaultTTL = d
	}
}

// WithRistrettoClock sets the time source used for timestamps and expiry.
func WithRistrettoClock(c clock.Clock) RistrettoOption {
	return func(o *ristrettoOptions) {
		if c != nil {
			o.clock = c
		}
	}
}
