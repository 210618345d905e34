package middlewares

import (
	"log/slog"
	"net/http"
	"runtime"

	"github.com/browo-hrthis/fetchkit/internal"
	"github.com/browo-hrthis/fetchkit/pkg/logger"
)

// DefaultStackSize is the default maximum stack trace size in bytes.
const DefaultStackSize = 4096

// RecoverConfig configures the recover middleware.
type RecoverConfig struct {
	Logger            *slog.Logger
	ErrorHandler      internal.ErrorHandler
	StackSize         int  // Max stack trace size (default: 4096)
	DisablePrintStack bool // Disable stack trace in logs
}

// RecoverOption configures RecoverConfig.
type RecoverOption func(*RecoverConfig)

// WithRecoverStackSize sets the maximum stack trace size.
func WithRecoverStackSize(size int) RecoverOption {
	return func(cfg *RecoverConfig) {
		cfg.StackSize = size
	}
}

// WithRecoverDisablePrintStack disables including stack trace in logs.
func WithRecoverDisablePrintStack() RecoverOption {
	return func(cfg *RecoverConfig) {
		cfg.DisablePrintStack = true
	}
}

// WithRecoverLogger sets the logger panics are reported to.
func WithRecoverLogger(l *slog.Logger) RecoverOption {
	return func(cfg *RecoverConfig) {
		if l != nil {
			cfg.Logger = l
		}
	}
}

// WithRecoverErrorHandler sets how the PanicError is rendered.
// Defaults to internal.DefaultErrorHandler, which answers 500.
func WithRecoverErrorHandler(h internal.ErrorHandler) RecoverOption {
	return func(cfg *RecoverConfig) {
		if h != nil {
			cfg.ErrorHandler = h
		}
	}
}

// Recover returns middleware that recovers from panics.
// It logs the panic and renders a PanicError through the configured
// ErrorHandler, unless the handler had already written a response.
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
// Request ID is included in the log via the request context.
func Recover(opts ...RecoverOption) internal.Middleware {
	cfg := &RecoverConfig{
		Logger:       logger.Discard(),
		ErrorHandler: internal.DefaultErrorHandler,
		StackSize:    DefaultStackSize,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := NewResponseWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				var stack []byte
				// Allocate buffer only if stack traces are enabled
				if !cfg.DisablePrintStack {
					stack = make([]byte, cfg.StackSize)
					n := runtime.Stack(stack, false)
					stack = stack[:n]
				}

				attrs := []any{slog.Any("panic", rec), slog.String("path", r.URL.Path)}
				if !cfg.DisablePrintStack {
					attrs = append(attrs, slog.String("stack", string(stack)))
				}
				cfg.Logger.ErrorContext(r.Context(), "panic recovered", attrs...)

				if !rw.Written() {
					cfg.ErrorHandler(rw, r, &PanicError{Value: rec, Stack: stack})
				}
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
