package internal

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/browo-hrthis/fetchkit/internal/directory"
	"github.com/browo-hrthis/fetchkit/pkg/cache"
	"github.com/browo-hrthis/fetchkit/pkg/health"
	"github.com/browo-hrthis/fetchkit/pkg/logger"
)

// Default server timeouts (hardcoded, opinionated).
const (
	defaultAddress           = ":8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1MB
	defaultShutdownTimeout   = 30 * time.Second

	maxBodyBytes = 1 << 20
)

// App serves the cached employee directory over HTTP and owns the
// lifecycle of everything behind it.
// App is immutable after creation - all configuration is done via New().
type App struct {
	router          chi.Router
	errorHandler    ErrorHandler
	directory       *directory.Service
	store           cache.Cache[any]
	gatherer        prometheus.Gatherer
	healthConfig    *healthConfig
	logger          *slog.Logger
	now             func() time.Time
	address         string
	middlewares     []Middleware
	shutdownHooks   []func(context.Context) error
	shutdownTimeout time.Duration
}

// New creates a new application with the given options.
//
// Example:
//
//	app := internal.New(
//	    internal.WithLogger(log),
//	    internal.WithCache(store),
//	    internal.WithDirectory(dir),
//	    internal.WithMiddleware(middlewares.RequestID(), middlewares.Recover()),
//	)
func New(opts ...Option) *App {
	a := &App{
		router:          chi.NewRouter(),
		errorHandler:    DefaultErrorHandler,
		healthConfig:    newHealthConfig(),
		logger:          logger.Discard(),
		now:             time.Now,
		address:         defaultAddress,
		shutdownTimeout: defaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.setupRoutes()
	return a
}

// Router returns the underlying chi.Router. It implements http.Handler.
func (a *App) Router() chi.Router {
	return a.router
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Run starts the HTTP server and blocks until ctx is done or the process
// receives SIGINT or SIGTERM. The directory is started before serving.
// On shutdown the server drains, then the directory and the cache are
// closed, then the registered shutdown hooks run in order.
func (a *App) Run(ctx context.Context, opts ...RunOption) error {
	cfg := buildRunConfig(a, opts...)

	var startupHooks, shutdownHooks []func(context.Context) error
	if a.directory != nil {
		// The server still comes up when the HR API is down; requests
		// retry the load.
		startupHooks = append(startupHooks, func(ctx context.Context) error {
			if err := a.directory.Start(ctx); err != nil {
				a.logger.WarnContext(ctx, "initial employee load failed", slog.Any("error", err))
			}
			return nil
		})
		shutdownHooks = append(shutdownHooks, a.directory.Shutdown)
	}
	if a.store != nil {
		shutdownHooks = append(shutdownHooks, func(context.Context) error { return a.store.Close() })
	}
	startupHooks = append(startupHooks, cfg.startupHooks...)
	shutdownHooks = append(shutdownHooks, a.shutdownHooks...)
	shutdownHooks = append(shutdownHooks, cfg.shutdownHooks...)

	return runServer(runtimeConfig{
		handler:         a.router,
		address:         cfg.address,
		logger:          a.logger,
		shutdownTimeout: cfg.shutdownTimeout,
		startupHooks:    startupHooks,
		shutdownHooks:   shutdownHooks,
		baseCtx:         ctx,
		ready:           cfg.ready,
	})
}

// setupRoutes configures the router with middleware and handlers.
func (a *App) setupRoutes() {
	a.router.NotFound(a.wrap(func(http.ResponseWriter, *http.Request) error {
		return ErrNotFound("route not found")
	}))
	a.router.MethodNotAllowed(a.wrap(func(http.ResponseWriter, *http.Request) error {
		return NewHTTPError(http.StatusMethodNotAllowed, "method not allowed")
	}))

	for _, mw := range a.middlewares {
		a.router.Use(mw)
	}

	a.router.Get(a.healthConfig.livenessPath, health.LivenessHandler())
	a.router.Get(a.healthConfig.readinessPath, health.ReadinessHandler(a.healthConfig.checks, health.WithLogger(a.logger)))

	if a.gatherer != nil {
		a.router.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	var employees *employeeHandler
	if a.directory != nil {
		h := &employeeHandler{dir: a.directory}
		employees = h
		a.router.Route("/employees", func(r chi.Router) {
			r.Get("/", a.wrap(h.list))
			r.Post("/", a.wrap(h.create))
			r.Get("/{id}", a.wrap(h.get))
			r.Patch("/{id}", a.wrap(h.update))
			r.Delete("/{id}", a.wrap(h.delete))
		})
	}

	if a.store != nil {
		h := &cacheHandler{store: a.store, now: a.now}
		a.router.Route("/cache", func(r chi.Router) {
			r.Get("/entries/{key}", a.wrap(h.entry))
			r.Delete("/", a.wrap(h.invalidate))
			if employees != nil {
				r.Post("/refresh", a.wrap(employees.refresh))
			}
		})
	}
}

func (a *App) logError(r *http.Request, err error) {
	status := StatusFor(err)
	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	a.logger.Log(r.Context(), level, "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Any("error", err),
	)
}
