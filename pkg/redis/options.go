package redis

import (
	"log/slog"
	"time"
)

// Option configures a Redis connection.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	clientName    string
	poolSize      int
	minIdleConns  int
	attempts      int
	attemptDelay  time.Duration
	ioTimeout     time.Duration
	dialTimeout   time.Duration
	connIdleLimit time.Duration
}

func defaultOptions() *options {
	return &options{
		logger:        slog.New(slog.DiscardHandler),
		clientName:    "fetchkit",
		poolSize:      10,
		minIdleConns:  2,
		attempts:      3,
		attemptDelay:  2 * time.Second,
		ioTimeout:     time.Second,
		dialTimeout:   3 * time.Second,
		connIdleLimit: 5 * time.Minute,
	}
}

// WithPool bounds the connection pool. Cache traffic is short lookups, so a
// small pool with a few warm connections is usually enough.
func WithPool(size, minIdle int) Option {
	return func(o *options) {
		if size > 0 {
			o.poolSize = size
		}
		if minIdle >= 0 {
			o.minIdleConns = minIdle
		}
	}
}

// WithRetry sets how many times Open pings before giving up and the base
// delay of the linear backoff between attempts.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *options) {
		o.attempts = attempts
		o.attemptDelay = delay
	}
}

// WithTimeout sets both the read and write timeout of single commands.
// A cache lookup slower than this is treated as a miss by the caller.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.ioTimeout = d
	}
}

// WithDialTimeout sets the timeout for establishing new connections.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// WithIdleLimit closes pooled connections idle for longer than d.
func WithIdleLimit(d time.Duration) Option {
	return func(o *options) {
		o.connIdleLimit = d
	}
}

// WithClientName sets the name reported by CLIENT LIST.
func WithClientName(name string) Option {
	return func(o *options) {
		o.clientName = name
	}
}

// WithLogger sets the logger used to report failed connection attempts.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
