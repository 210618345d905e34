package internal

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/browo-hrthis/fetchkit/internal/config"
	"github.com/browo-hrthis/fetchkit/internal/directory"
	"github.com/browo-hrthis/fetchkit/pkg/cache"
)

// Option configures the application.
type Option func(*App)

// WithConfig applies the server settings from cfg: the listen address
// and the shutdown timeout.
func WithConfig(cfg config.App) Option {
	return func(a *App) {
		if cfg.Addr != "" {
			a.address = cfg.Addr
		}
		if cfg.ShutdownTimeout > 0 {
			a.shutdownTimeout = cfg.ShutdownTimeout
		}
	}
}

// WithLogger sets the application logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithCache exposes store under /cache and closes it on shutdown.
// Pass the same store the directory was built on.
func WithCache(store cache.Cache[any]) Option {
	return func(a *App) {
		a.store = store
	}
}

// WithDirectory serves dir under /employees. The directory is started
// before the server accepts requests and closed on shutdown.
func WithDirectory(dir *directory.Service) Option {
	return func(a *App) {
		a.directory = dir
	}
}

// WithRegistry serves the metrics gathered by g under /metrics.
func WithRegistry(g prometheus.Gatherer) Option {
	return func(a *App) {
		a.gatherer = g
	}
}

// WithMiddleware adds global middleware to the application.
// Middleware is applied in the order provided.
func WithMiddleware(mw ...Middleware) Option {
	return func(a *App) {
		a.middlewares = append(a.middlewares, mw...)
	}
}

// WithErrorHandler replaces DefaultErrorHandler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *App) {
		if h != nil {
			a.errorHandler = h
		}
	}
}

// WithShutdownHook registers a cleanup function to run after the server
// has drained. Hooks run in registration order, after the directory and
// the cache are closed.
//
// Example:
//
//	internal.WithShutdownHook(redis.Shutdown(client))
func WithShutdownHook(fn func(context.Context) error) Option {
	return func(a *App) {
		if fn != nil {
			a.shutdownHooks = append(a.shutdownHooks, fn)
		}
	}
}

// WithHealthChecks configures the liveness and readiness endpoints.
func WithHealthChecks(opts ...HealthOption) Option {
	return func(a *App) {
		for _, opt := range opts {
			opt(a.healthConfig)
		}
	}
}

// WithClock overrides the time source used for cache entry ages.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}
