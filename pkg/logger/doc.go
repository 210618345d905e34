// Package logger builds the service's structured slog logger.
//
// [New] writes JSON (or text) records to stdout at the configured level.
// When [SentryConfig.DSN] is set, records are also forwarded to Sentry:
// errors become issues and records at or above MinLevel are stored as
// Sentry logs. A failing Sentry init falls back to stdout only.
//
//	level, err := logger.ParseLevel(cfg.LogLevel)
//	if err != nil {
//	    return err
//	}
//	log := logger.New(logger.Config{
//	    Level:  level,
//	    Sentry: logger.SentryConfig{DSN: cfg.SentryDSN, Environment: cfg.Env},
//	}, requestIDExtractor)
//	defer logger.Flush(2 * time.Second)
//
// A [ContextExtractor] runs on every record, so values set on the
// request context (request IDs, employee IDs) show up without threading
// loggers through call chains. [WithAttrs] attaches ad-hoc attributes to
// a context for the same purpose:
//
//	ctx = logger.WithAttrs(ctx, slog.String("employee_id", id))
//	log.InfoContext(ctx, "employee updated")
//
// [Discard] returns a logger for tests and unconfigured components.
package logger
