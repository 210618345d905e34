// Command fetchkit serves the cached HR employee directory.
//
// Configuration comes from the environment and an optional .env file;
// run with -help to list every variable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/browo-hrthis/fetchkit"
	"github.com/browo-hrthis/fetchkit/internal/config"
	"github.com/browo-hrthis/fetchkit/internal/directory"
	"github.com/browo-hrthis/fetchkit/internal/telemetry"
	"github.com/browo-hrthis/fetchkit/middlewares"
	"github.com/browo-hrthis/fetchkit/pkg/cache"
	"github.com/browo-hrthis/fetchkit/pkg/hrapi"
	"github.com/browo-hrthis/fetchkit/pkg/logger"
	"github.com/browo-hrthis/fetchkit/pkg/redis"
	"github.com/browo-hrthis/fetchkit/pkg/request"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load if present")
	help := flag.Bool("help", false, "print the supported environment variables")
	flag.Parse()

	if *help {
		fmt.Println(config.Usage())
		return
	}

	if err := run(context.Background(), *envFile); err != nil {
		fmt.Fprintln(os.Stderr, "fetchkit:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{
		Format: cfg.App.LogFormat,
		Level:  level,
		Sentry: logger.SentryConfig{
			DSN:         cfg.Sentry.DSN,
			Environment: cfg.App.Env,
			Release:     version,
			SampleRate:  cfg.Sentry.SampleRate,
			MinLevel:    slog.LevelWarn,
		},
	})
	defer logger.Flush(2 * time.Second)

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version,
		SampleRate:  cfg.Tracing.SampleRate,
		Enabled:     cfg.Tracing.Enabled,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, health, closeStore, err := openCache(ctx, cfg.Cache, log)
	if err != nil {
		return err
	}

	client, err := hrapi.New(cfg.HRAPI.BaseURL,
		hrapi.WithToken(cfg.HRAPI.Token),
		hrapi.WithHTTPClient(&http.Client{Timeout: cfg.HRAPI.Timeout}),
		hrapi.WithRateLimit(cfg.HRAPI.RateLimit),
		hrapi.WithUserAgent("fetchkit/"+version),
		hrapi.WithLogger(log),
	)
	if err != nil {
		return err
	}
	health = append(health, fetchkit.WithReadinessCheck("hrapi", client.Ping))

	dir := directory.New(client, store,
		directory.WithTTL(cfg.Directory.TTL),
		directory.WithRetries(cfg.HRAPI.Retries),
		directory.WithRetryDelay(cfg.HRAPI.RetryDelay),
		directory.WithRefetchInterval(cfg.Directory.RefetchInterval),
		directory.WithPageSize(cfg.Directory.PageSize),
		directory.WithLogger(log),
		directory.WithMetrics(request.NewMetrics(reg)),
	)

	app := fetchkit.New(
		fetchkit.WithConfig(cfg.App),
		fetchkit.WithLogger(log),
		fetchkit.WithCache(store),
		fetchkit.WithDirectory(dir),
		fetchkit.WithRegistry(reg),
		fetchkit.WithHealthChecks(health...),
		fetchkit.WithMiddleware(
			middlewares.RequestID(),
			middlewares.Tracing(),
			middlewares.Logging(log),
			middlewares.Recover(middlewares.WithRecoverLogger(log)),
			middlewares.Timeout(cfg.App.RequestTimeout),
			middlewares.CORS(middlewares.WithAllowOrigins(cfg.App.CORSOrigins...)),
		),
		fetchkit.WithShutdownHook(shutdownTracing),
		fetchkit.WithShutdownHook(closeStore),
	)

	log.Info("starting fetchkit",
		slog.String("version", version),
		slog.String("env", cfg.App.Env),
		slog.String("cache", cfg.Cache.Backend),
		slog.String("hrapi", cfg.HRAPI.BaseURL),
	)

	return app.Run(ctx)
}

// openCache builds the configured backend. It returns the readiness checks
// the backend contributes and the hook that releases its connections.
func openCache(ctx context.Context, cfg config.Cache, log *slog.Logger) (cache.Cache[any], []fetchkit.HealthOption, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Backend {
	case config.BackendRedis:
		client, err := redis.Open(ctx, cfg.RedisURL, redis.WithLogger(log))
		if err != nil {
			return nil, nil, nil, err
		}
		store := cache.NewRedis[any](client, nil,
			cache.WithPrefix(cfg.Prefix),
			cache.WithRedisDefaultTTL(cfg.DefaultTTL),
		)
		checks := []fetchkit.HealthOption{fetchkit.WithReadinessCheck("redis", redis.Healthcheck(client))}
		return store, checks, redis.Shutdown(client), nil

	case config.BackendRistretto:
		store, err := cache.NewRistretto[any](
			cache.WithMaxCost(cfg.MaxCost),
			cache.WithRistrettoDefaultTTL(cfg.DefaultTTL),
		)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, noop, nil

	default:
		store := cache.NewMemory[any](
			cache.WithDefaultTTL(cfg.DefaultTTL),
			cache.WithMaxEntries(cfg.MaxEntries),
		)
		return store, nil, noop, nil
	}
}
