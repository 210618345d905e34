package fetchkit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/browo-hrthis/fetchkit/internal"
	"github.com/browo-hrthis/fetchkit/internal/config"
	"github.com/browo-hrthis/fetchkit/internal/directory"
	"github.com/browo-hrthis/fetchkit/pkg/cache"
	"github.com/browo-hrthis/fetchkit/pkg/health"
)

// Type aliases - public API
type (
	// App serves the cached employee directory and owns its lifecycle.
	App = internal.App

	// Option configures the application.
	Option = internal.Option

	// RunOption configures a single Run call.
	RunOption = internal.RunOption

	// HandlerFunc is the signature for route handlers.
	HandlerFunc = internal.HandlerFunc

	// Middleware wraps an http.Handler to add cross-cutting concerns.
	Middleware = internal.Middleware

	// ErrorHandler renders errors returned from handlers.
	ErrorHandler = internal.ErrorHandler

	// HTTPError is an error carrying its status code.
	HTTPError = internal.HTTPError

	// HealthOption configures health check endpoints.
	HealthOption = internal.HealthOption

	// Directory is the cached employee directory.
	Directory = directory.Service

	// DirectoryOption configures a Directory.
	DirectoryOption = directory.Option

	// Config is the full service configuration.
	Config = config.Config
)

// New creates a new application with the given options.
//
// Example:
//
//	store := cache.NewMemory[any]()
//	dir := fetchkit.NewDirectory(client, store)
//
//	app := fetchkit.New(
//	    fetchkit.WithLogger(log),
//	    fetchkit.WithCache(store),
//	    fetchkit.WithDirectory(dir),
//	)
//
//	err := app.Run(ctx)
func New(opts ...Option) *App {
	return internal.New(opts...)
}

// NewDirectory builds the cached employee directory over api.
func NewDirectory(api directory.API, store cache.Cache[any], opts ...DirectoryOption) *Directory {
	return directory.New(api, store, opts...)
}

// LoadConfig reads dotenv files, if present, and the environment.
func LoadConfig(files ...string) (Config, error) {
	return config.Load(files...)
}

// App options

// WithConfig applies the listen address and shutdown timeout from cfg.
func WithConfig(cfg config.App) Option {
	return internal.WithConfig(cfg)
}

// WithLogger sets the application logger.
func WithLogger(l *slog.Logger) Option {
	return internal.WithLogger(l)
}

// WithCache exposes store under /cache and closes it on shutdown.
func WithCache(store cache.Cache[any]) Option {
	return internal.WithCache(store)
}

// WithDirectory serves dir under /employees.
func WithDirectory(dir *Directory) Option {
	return internal.WithDirectory(dir)
}

// WithRegistry serves the metrics gathered by g under /metrics.
func WithRegistry(g prometheus.Gatherer) Option {
	return internal.WithRegistry(g)
}

// WithMiddleware adds global middleware to the application.
// Middleware is applied in the order provided.
func WithMiddleware(mw ...Middleware) Option {
	return internal.WithMiddleware(mw...)
}

// WithErrorHandler sets a custom error handler for handler errors.
func WithErrorHandler(h ErrorHandler) Option {
	return internal.WithErrorHandler(h)
}

// WithShutdownHook registers a cleanup function to run during shutdown.
func WithShutdownHook(fn func(context.Context) error) Option {
	return internal.WithShutdownHook(fn)
}

// WithHealthChecks configures the liveness and readiness endpoints.
//
// Example:
//
//	fetchkit.WithHealthChecks(
//	    fetchkit.WithReadinessCheck("redis", redis.Healthcheck(client)),
//	)
func WithHealthChecks(opts ...HealthOption) Option {
	return internal.WithHealthChecks(opts...)
}

// WithClock overrides the time source used for cache entry ages.
func WithClock(now func() time.Time) Option {
	return internal.WithClock(now)
}

// Health options

// WithLivenessPath sets a custom liveness endpoint path.
func WithLivenessPath(path string) HealthOption {
	return internal.WithLivenessPath(path)
}

// WithReadinessPath sets a custom readiness endpoint path.
func WithReadinessPath(path string) HealthOption {
	return internal.WithReadinessPath(path)
}

// WithReadinessCheck adds a named readiness check.
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return internal.WithReadinessCheck(name, fn)
}

// Run options

// Address sets the HTTP server address for one Run.
func Address(addr string) RunOption {
	return internal.Address(addr)
}

// ShutdownTimeout sets the graceful shutdown timeout for one Run.
func ShutdownTimeout(d time.Duration) RunOption {
	return internal.ShutdownTimeout(d)
}

// StartupHook registers a function to run before serving.
func StartupHook(fn func(context.Context) error) RunOption {
	return internal.StartupHook(fn)
}

// ShutdownHook registers a cleanup function for one Run.
func ShutdownHook(fn func(context.Context) error) RunOption {
	return internal.ShutdownHook(fn)
}

// Errors

// NewHTTPError creates an error rendered with the given status.
func NewHTTPError(code int, message string) *HTTPError {
	return internal.NewHTTPError(code, message)
}

// StatusFor maps an error from the directory stack to an HTTP status.
func StatusFor(err error) int {
	return internal.StatusFor(err)
}

// OnReady registers a callback invoked with the bound listener address.
func OnReady(fn func(net.Addr)) RunOption {
	return internal.OnReady(fn)
}

// DefaultErrorHandler renders err as JSON with the status from [StatusFor].
func DefaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	internal.DefaultErrorHandler(w, r, err)
}
