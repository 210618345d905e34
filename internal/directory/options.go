package directory

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/browo-hrthis/fetchkit/pkg/request"
)

type options struct {
	logger          *slog.Logger
	metrics         *request.Metrics
	clock           clock.Clock
	ttl             time.Duration
	retryDelay      time.Duration
	refetchInterval time.Duration
	retries         int
	pageSize        int
	concurrency     int
}

func defaultOptions() options {
	return options{
		logger:      slog.New(slog.DiscardHandler),
		ttl:         request.DefaultTTL,
		retries:     request.DefaultRetries,
		retryDelay:  request.DefaultRetryDelay,
		pageSize:    20,
		concurrency: 8,
	}
}

// Option configures a Service.
type Option func(*options)

// WithTTL sets how long fetched data stays cached.
func WithTTL(d time.Duration) Option {
	return func(o *options) { o.ttl = d }
}

// WithRetries sets the retry budget for API reads.
func WithRetries(n int) Option {
	return func(o *options) { o.retries = n }
}

// WithRetryDelay sets the backoff base for API reads.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) { o.retryDelay = d }
}

// WithRefetchInterval refreshes the employee list in the background
// after Start. Zero disables it.
func WithRefetchInterval(d time.Duration) Option {
	return func(o *options) { o.refetchInterval = d }
}

// WithPageSize sets the default size for Pages.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithConcurrency bounds parallel refreshes.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records controller metrics.
func WithMetrics(m *request.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock sets the controllers' time source.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}
