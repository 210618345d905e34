package request

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/browo-hrthis/fetchkit/pkg/cache"
	"github.com/browo-hrthis/fetchkit/pkg/retry"
)

// Default controller settings.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultRetries    = retry.DefaultRetries
	DefaultRetryDelay = retry.DefaultDelay
)

// Option configures a Controller.
//
// Options that carry the payload type (WithCache, WithOptimisticUpdate,
// OnSuccess) infer it from their argument and panic in New when it does
// not match the controller's type.
type Option func(target)

type target interface {
	base() *config
}

type config struct {
	logger     *slog.Logger
	metrics    *Metrics
	limiter    *rate.Limiter
	clock      clock.Clock
	onError    func(error)
	backoff    retry.Strategy
	name       string
	cacheKey   string
	schedule   string
	ttl        time.Duration
	retryDelay time.Duration
	maxDelay   time.Duration
	interval   time.Duration
	retries    int
	immediate  bool
	enabled    bool
	dedupe     bool
}

type options[T any] struct {
	cache      cache.Cache[T]
	optimistic func(T) T
	onSuccess  func(T)
	config
}

func (o *options[T]) base() *config { return &o.config }

func defaultOptions[T any]() *options[T] {
	return &options[T]{
		config: config{
			logger:     slog.New(slog.DiscardHandler),
			clock:      clock.New(),
			ttl:        DefaultTTL,
			retries:    DefaultRetries,
			retryDelay: DefaultRetryDelay,
			immediate:  true,
			enabled:    true,
		},
	}
}

func typed[T any](t target, name string) *options[T] {
	o, ok := t.(*options[T])
	if !ok {
		panic(fmt.Sprintf("request: %s payload type does not match the controller", name))
	}
	return o
}

// WithImmediate controls whether Start executes right away.
// Default: true.
func WithImmediate(v bool) Option {
	return func(t target) { t.base().immediate = v }
}

// WithEnabled gates execution. A disabled controller returns ErrDisabled
// from Execute and skips the immediate run.
// Default: true.
func WithEnabled(v bool) Option {
	return func(t target) { t.base().enabled = v }
}

// WithTTL sets how long successful results stay in the cache.
// Default: 5 minutes.
func WithTTL(d time.Duration) Option {
	return func(t target) { t.base().ttl = d }
}

// WithRetries sets how many times a failed call is repeated.
// Default: 3.
func WithRetries(n int) Option {
	return func(t target) { t.base().retries = max(n, 0) }
}

// WithRetryDelay sets the backoff base. The wait before retry i is
// delay * 2^(i-1).
// Default: 1 second.
func WithRetryDelay(d time.Duration) Option {
	return func(t target) { t.base().retryDelay = d }
}

// WithMaxRetryDelay caps the backoff wait.
func WithMaxRetryDelay(d time.Duration) Option {
	return func(t target) { t.base().maxDelay = d }
}

// WithBackoff replaces the exponential backoff strategy.
func WithBackoff(s retry.Strategy) Option {
	return func(t target) { t.base().backoff = s }
}

// WithCacheKey enables caching under key. Without a key nothing is cached.
func WithCacheKey(key string) Option {
	return func(t target) { t.base().cacheKey = key }
}

// WithCache sets the store used together with WithCacheKey.
func WithCache[T any](c cache.Cache[T]) Option {
	return func(t target) { typed[T](t, "WithCache").cache = c }
}

// WithOptimisticUpdate sets a transform applied to the current data while
// a request is in flight. It is rolled back if the request fails.
func WithOptimisticUpdate[T any](fn func(T) T) Option {
	return func(t target) { typed[T](t, "WithOptimisticUpdate").optimistic = fn }
}

// OnSuccess registers a callback for every successful request.
// It is not called for cache hits.
func OnSuccess[T any](fn func(T)) Option {
	return func(t target) { typed[T](t, "OnSuccess").onSuccess = fn }
}

// OnError registers a callback for terminal failures.
func OnError(fn func(error)) Option {
	return func(t target) { t.base().onError = fn }
}

// WithRefetchInterval enables periodic Refetch after Start.
func WithRefetchInterval(d time.Duration) Option {
	return func(t target) { t.base().interval = d }
}

// WithRefetchSchedule enables Refetch on a cron schedule after Start.
// Standard five-field expressions and descriptors such as "@every 30s"
// are accepted. It takes precedence over WithRefetchInterval.
func WithRefetchSchedule(expr string) Option {
	return func(t target) { t.base().schedule = expr }
}

// WithName sets the name used in logs, traces and metric labels.
// Default: the cache key, or "request".
func WithName(name string) Option {
	return func(t target) { t.base().name = name }
}

// WithLogger sets the structured logger.
// Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(t target) {
		if l != nil {
			t.base().logger = l
		}
	}
}

// WithMetrics sets the Prometheus collector.
func WithMetrics(m *Metrics) Option {
	return func(t target) { t.base().metrics = m }
}

// WithLimiter throttles calls to the request function.
func WithLimiter(l *rate.Limiter) Option {
	return func(t target) { t.base().limiter = l }
}

// WithDedupe makes concurrent executions with the same cache key share a
// single call, across controllers. The first caller's context drives
// the shared call.
func WithDedupe(v bool) Option {
	return func(t target) { t.base().dedupe = v }
}

// WithClock sets the time source for refetch timers and timestamps.
func WithClock(c clock.Clock) Option {
	return func(t target) {
		if c != nil {
			t.base().clock = c
		}
	}
}
