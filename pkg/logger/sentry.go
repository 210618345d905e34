package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig enables Sentry reporting when DSN is set.
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
	// SampleRate applies to error events. Zero means 1.0.
	SampleRate float64
	// MinLevel is the lowest level forwarded as a Sentry log; the zero
	// value is info. Error records always become Sentry issues.
	MinLevel slog.Level
}

// withSentry tees records into Sentry. If the SDK cannot initialise, the
// failure is logged to base and base is returned alone.
func withSentry(base slog.Handler, cfg SentryConfig) slog.Handler {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		SampleRate:  cfg.SampleRate,
		EnableLogs:  true,
	}); err != nil {
		slog.New(base).Error("sentry init failed", slog.String("error", err.Error()))
		return base
	}

	var logLevels []slog.Level
	for _, l := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if l >= cfg.MinLevel {
			logLevels = append(logLevels, l)
		}
	}

	sh := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevels,
	}.NewSentryHandler(context.Background())

	return newFanout(base, sh)
}

// Flush waits up to timeout for buffered Sentry events to be sent.
// It is a no-op when Sentry was never initialised.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
