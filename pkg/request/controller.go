package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/browo-hrthis/fetchkit/pkg/retry"
)

const tracerName = "github.com/browo-hrthis/fetchkit/pkg/request"

// flights deduplicates executions across controllers sharing a cache key.
var flights singleflight.Group

// Func performs the request. ctx is cancelled when the execution is
// superseded, reset or closed; implementations should pass it to their
// transport.
type Func[T any] func(ctx context.Context, args ...any) (T, error)

// State is a snapshot of a controller.
type State[T any] struct {
	UpdatedAt  time.Time
	Err        error
	Data       T
	RetryCount int
	HasData    bool
	Loading    bool
}

// Controller binds a request function to a cache and a retry policy and
// tracks the resulting state. Executions on one controller supersede each
// other: starting a new one cancels the previous, and a superseded
// execution never writes state, cache or callbacks.
//
// A Controller is safe for concurrent use.
type Controller[T any] struct {
	fn       Func[T]
	opts     *options[T]
	stopPoll context.CancelFunc
	cancel   context.CancelFunc
	subs     map[uint64]func(State[T])
	state    State[T]
	gen      uint64
	nextSub  uint64
	mu       sync.Mutex
	enabled  bool
	closed   bool
}

// New creates a controller. If a cache and key are configured and the
// cache holds an entry, the state starts with that data even if stale.
func New[T any](fn Func[T], opts ...Option) *Controller[T] {
	o := defaultOptions[T]()
	for _, opt := range opts {
		opt(o)
	}
	if o.name == "" {
		o.name = o.cacheKey
	}
	if o.name == "" {
		o.name = "request"
	}

	c := &Controller[T]{
		fn:      fn,
		opts:    o,
		subs:    make(map[uint64]func(State[T])),
		enabled: o.enabled,
	}

	if c.cached() {
		if e, err := o.cache.Entry(context.Background(), o.cacheKey); err == nil {
			c.state.Data = e.Data
			c.state.HasData = true
			c.state.UpdatedAt = e.Timestamp
		}
	}

	return c
}

// Start binds the controller: it executes once if immediate and enabled,
// and starts the refetch timer when an interval or schedule is set.
// The timer runs until ctx is done, Reset or Close.
func (c *Controller[T]) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	run := c.opts.immediate && c.enabled
	c.mu.Unlock()

	if err := c.startPolling(ctx); err != nil {
		return err
	}

	if !run {
		return nil
	}

	if _, err := c.Execute(ctx); err != nil && !errors.Is(err, ErrCancelled) {
		return err
	}

	return nil
}

// Execute runs the request unless a fresh cache entry answers it.
//
// It returns the value on success. On terminal failure it returns the
// last error, which is also stored in State.Err. A cancelled or
// superseded execution returns ErrCancelled and leaves State.Err nil.
func (c *Controller[T]) Execute(ctx context.Context, args ...any) (T, error) {
	var zero T

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return zero, ErrClosed
	case !c.enabled:
		c.mu.Unlock()
		return zero, ErrDisabled
	}
	c.mu.Unlock()

	if v, ok := c.fresh(ctx); ok {
		return v, nil
	}

	id := uuid.NewString()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "request.execute",
		trace.WithAttributes(
			attribute.String("request.name", c.opts.name),
			attribute.String("request.cache_key", c.opts.cacheKey),
			attribute.String("request.id", id),
		),
	)
	defer span.End()

	log := c.opts.logger.With(
		slog.String("request", c.opts.name),
		slog.String("request_id", id),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	c.cancel = cancel

	prev, hadData := c.state.Data, c.state.HasData
	optimistic := c.opts.optimistic != nil && hadData
	if optimistic {
		c.state.Data = c.opts.optimistic(prev)
	}
	c.state.Loading = true
	c.state.Err = nil
	c.state.RetryCount = 0
	snapshot := c.state
	c.mu.Unlock()
	c.notify(snapshot)

	done := c.opts.metrics.trackInFlight(c.opts.name)
	start := c.opts.clock.Now()

	out := retry.Do(runCtx, func(ctx context.Context) (T, error) {
		return c.call(ctx, args)
	}, c.retryOptions(gen, log)...)

	done()
	c.opts.metrics.recordExecution(c.opts.name, out.Status.String(), c.opts.clock.Since(start))
	span.SetAttributes(
		attribute.String("request.outcome", out.Status.String()),
		attribute.Int("request.attempts", out.Attempts),
	)

	var fallback T
	fallbackOK := false
	if optimistic && out.Status != retry.Succeeded {
		fallback, fallbackOK = prev, hadData
		if c.cached() {
			if v, err := c.opts.cache.Get(ctx, c.opts.cacheKey); err == nil {
				fallback, fallbackOK = v, true
			}
		}
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.opts.metrics.recordSuperseded(c.opts.name)
		log.Debug("request superseded")
		return zero, ErrCancelled
	}
	c.cancel = nil

	c.state.Loading = false
	switch out.Status {
	case retry.Succeeded:
		c.state.Data = out.Value
		c.state.HasData = true
		c.state.UpdatedAt = c.opts.clock.Now()
	case retry.Cancelled:
		if optimistic {
			c.state.Data, c.state.HasData = fallback, fallbackOK
		}
	case retry.Failed:
		if optimistic {
			c.state.Data, c.state.HasData = fallback, fallbackOK
		}
		c.state.Err = out.Err
	}
	snapshot = c.state
	c.mu.Unlock()
	c.notify(snapshot)

	switch out.Status {
	case retry.Succeeded:
		if c.cached() {
			if err := c.opts.cache.Set(context.WithoutCancel(ctx), c.opts.cacheKey, out.Value, c.opts.ttl); err != nil {
				log.Warn("cache write failed", slog.String("error", err.Error()))
			}
		}
		log.Debug("request succeeded", slog.Int("attempts", out.Attempts))
		if c.opts.onSuccess != nil {
			c.opts.onSuccess(out.Value)
		}
		return out.Value, nil

	case retry.Cancelled:
		log.Debug("request cancelled", slog.Int("attempts", out.Attempts))
		return zero, ErrCancelled

	default:
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
		log.Error("request failed",
			slog.Int("attempts", out.Attempts),
			slog.String("error", out.Err.Error()),
		)
		if c.opts.onError != nil {
			c.opts.onError(out.Err)
		}
		return zero, out.Err
	}
}

// Refetch drops the cached entry for this controller and executes again.
func (c *Controller[T]) Refetch(ctx context.Context) (T, error) {
	if c.cached() {
		if err := c.opts.cache.Delete(ctx, c.opts.cacheKey); err != nil {
			c.opts.logger.Warn("cache delete failed",
				slog.String("request", c.opts.name),
				slog.String("error", err.Error()),
			)
		}
	}
	return c.Execute(ctx)
}

// Mutate replaces the data locally and in the cache without a request.
func (c *Controller[T]) Mutate(ctx context.Context, v T) error {
	return c.MutateFunc(ctx, func(T, bool) T { return v })
}

// MutateFunc replaces the data with fn(current, hasData).
func (c *Controller[T]) MutateFunc(ctx context.Context, fn func(prev T, ok bool) T) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	v := fn(c.state.Data, c.state.HasData)
	c.state.Data = v
	c.state.HasData = true
	c.state.UpdatedAt = c.opts.clock.Now()
	snapshot := c.state
	c.mu.Unlock()
	c.notify(snapshot)

	if c.cached() {
		return c.opts.cache.Set(ctx, c.opts.cacheKey, v, c.opts.ttl)
	}
	return nil
}

// Reset clears the state, cancels the in-flight execution and stops the
// refetch timer. Start re-arms the timer.
func (c *Controller[T]) Reset() {
	c.mu.Lock()
	c.abortLocked()
	c.state = State[T]{}
	c.mu.Unlock()
	c.notify(State[T]{})
}

// Close resets the controller and rejects further use.
func (c *Controller[T]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.abortLocked()
	c.subs = make(map[uint64]func(State[T]))
	c.mu.Unlock()
	return nil
}

// State returns a snapshot of the current state.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsStale reports whether the cached entry is missing or past its stale
// threshold. It is always false for controllers without a cache key.
func (c *Controller[T]) IsStale(ctx context.Context) bool {
	if !c.cached() {
		return false
	}
	return c.opts.cache.IsStale(ctx, c.opts.cacheKey)
}

// SetEnabled toggles execution.
func (c *Controller[T]) SetEnabled(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = v
}

// Name returns the controller name used in logs and metrics.
func (c *Controller[T]) Name() string {
	return c.opts.name
}

// CacheKey returns the configured cache key, or "".
func (c *Controller[T]) CacheKey() string {
	return c.opts.cacheKey
}

// Subscribe registers fn to receive every state change. Callbacks run
// synchronously on the goroutine that changed the state.
func (c *Controller[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Controller[T]) cached() bool {
	return c.opts.cache != nil && c.opts.cacheKey != ""
}

// fresh answers from the cache when the entry is present and not stale.
func (c *Controller[T]) fresh(ctx context.Context) (T, bool) {
	var zero T
	if !c.cached() || c.opts.cache.IsStale(ctx, c.opts.cacheKey) {
		return zero, false
	}

	v, err := c.opts.cache.Get(ctx, c.opts.cacheKey)
	if err != nil {
		return zero, false
	}

	c.mu.Lock()
	c.state.Data = v
	c.state.HasData = true
	c.state.Err = nil
	snapshot := c.state
	c.mu.Unlock()
	c.notify(snapshot)

	c.opts.metrics.recordCacheHit(c.opts.name)
	c.opts.logger.Debug("cache hit", slog.String("request", c.opts.name))

	return v, true
}

func (c *Controller[T]) call(ctx context.Context, args []any) (T, error) {
	var zero T
	if !c.opts.dedupe || c.opts.cacheKey == "" {
		return c.fn(ctx, args...)
	}

	// The shared flight runs on the leading caller's context. Joiners that
	// are still live when the leader is cancelled start a new flight.
	for {
		led := false
		ch := flights.DoChan(c.opts.cacheKey, func() (any, error) {
			led = true
			return c.fn(ctx, args...)
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case res = <-ch:
		}

		if res.Err != nil {
			if !led && ctx.Err() == nil && retry.IsCancellation(nil, res.Err) {
				c.opts.logger.Debug("shared flight cancelled by its leader, rejoining",
					slog.String("request", c.opts.name))
				continue
			}
			return zero, res.Err
		}

		tv, ok := res.Val.(T)
		if !ok {
			return zero, retry.Permanent(fmt.Errorf("request: shared result for %q has type %T", c.opts.cacheKey, res.Val))
		}
		return tv, nil
	}
}

func (c *Controller[T]) retryOptions(gen uint64, log *slog.Logger) []retry.Option {
	opts := []retry.Option{
		retry.WithRetries(c.opts.retries),
		retry.WithDelay(c.opts.retryDelay),
		retry.WithObserver(func(a retry.Attempt) {
			if !a.Retry {
				return
			}
			log.Warn("request attempt failed",
				slog.Int("attempt", a.Number),
				slog.Duration("retry_in", a.Delay),
				slog.String("error", a.Err.Error()),
			)
			c.opts.metrics.recordRetry(c.opts.name)

			c.mu.Lock()
			if gen != c.gen {
				c.mu.Unlock()
				return
			}
			c.state.RetryCount++
			snapshot := c.state
			c.mu.Unlock()
			c.notify(snapshot)
		}),
	}
	if c.opts.maxDelay > 0 {
		opts = append(opts, retry.WithMaxDelay(c.opts.maxDelay))
	}
	if c.opts.backoff != nil {
		opts = append(opts, retry.WithBackoff(c.opts.backoff))
	}
	if c.opts.limiter != nil {
		opts = append(opts, retry.WithLimiter(c.opts.limiter))
	}
	return opts
}

func (c *Controller[T]) startPolling(ctx context.Context) error {
	var next func(time.Time) time.Time

	switch {
	case c.opts.schedule != "":
		s, err := cron.ParseStandard(c.opts.schedule)
		if err != nil {
			return errors.Join(ErrInvalidSchedule, err)
		}
		next = s.Next
	case c.opts.interval > 0:
		interval := c.opts.interval
		next = func(t time.Time) time.Time { return t.Add(interval) }
	default:
		return nil
	}

	pollCtx, stop := context.WithCancel(ctx)

	c.mu.Lock()
	if c.stopPoll != nil {
		c.stopPoll()
	}
	c.stopPoll = stop
	c.mu.Unlock()

	go c.poll(pollCtx, next)

	return nil
}

func (c *Controller[T]) poll(ctx context.Context, next func(time.Time) time.Time) {
	clk := c.opts.clock

	for {
		now := clk.Now()
		timer := clk.Timer(next(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		_, err := c.Refetch(ctx)
		switch {
		case err == nil, errors.Is(err, ErrCancelled), errors.Is(err, ErrDisabled):
		case errors.Is(err, ErrClosed):
			return
		default:
			c.opts.logger.Warn("scheduled refetch failed",
				slog.String("request", c.opts.name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// abortLocked cancels the in-flight execution and the refetch timer.
// Caller must hold the mutex.
func (c *Controller[T]) abortLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.stopPoll != nil {
		c.stopPoll()
		c.stopPoll = nil
	}
}

func (c *Controller[T]) notify(s State[T]) {
	c.mu.Lock()
	subs := make([]func(State[T]), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

func (c *Controller[T]) run(ctx context.Context, refetch bool) error {
	var err error
	if refetch {
		_, err = c.Refetch(ctx)
	} else {
		_, err = c.Execute(ctx)
	}
	return err
}

func (c *Controller[T]) snapshot() any { return c.State() }
