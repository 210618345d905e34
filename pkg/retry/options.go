package retry

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Default policy values.
const (
	DefaultRetries = 3
	DefaultDelay   = time.Second
)

// Attempt describes one failed call, reported to the observer.
type Attempt struct {
	Err error
	// Number is the 1-based call that failed.
	Number int
	// Delay is the wait before the next call. Zero when Retry is false.
	Delay time.Duration
	// Retry reports whether another call follows.
	Retry bool
}

// Option configures Do.
type Option func(*options)

type options struct {
	strategy Strategy
	limiter  *rate.Limiter
	observer func(Attempt)
	sleep    func(ctx context.Context, d time.Duration) error
	retries  int
	delay    time.Duration
	maxDelay time.Duration
}

func defaultOptions() *options {
	return &options{
		strategy: Exponential{},
		sleep:    wait,
		retries:  DefaultRetries,
		delay:    DefaultDelay,
	}
}

// WithRetries sets how many times a failed call is repeated.
// The total number of calls is n+1. Negative values are treated as 0.
// Default: 3.
func WithRetries(n int) Option {
	return func(o *options) {
		o.retries = max(n, 0)
	}
}

// WithDelay sets the base wait passed to the backoff strategy.
// Default: 1 second.
func WithDelay(d time.Duration) Option {
	return func(o *options) {
		o.delay = max(d, 0)
	}
}

// WithMaxDelay caps every computed wait. Zero disables the cap.
func WithMaxDelay(d time.Duration) Option {
	return func(o *options) {
		o.maxDelay = d
	}
}

// WithBackoff sets the backoff strategy.
// Default: Exponential.
func WithBackoff(s Strategy) Option {
	return func(o *options) {
		if s != nil {
			o.strategy = s
		}
	}
}

// WithObserver registers a callback invoked after every failed call.
// Cancelled calls are not reported.
func WithObserver(fn func(Attempt)) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithLimiter makes every call wait for a token from l first.
func WithLimiter(l *rate.Limiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// WithSleeper replaces the wait between attempts. The function must
// return ctx.Err() if ctx is done before d elapses.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

func (o *options) backoff(n int) time.Duration {
	d := o.strategy.Delay(n, o.delay)
	if o.maxDelay > 0 && d > o.maxDelay {
		return o.maxDelay
	}
	return d
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
