package middlewares

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/browo-hrthis/fetchkit/internal"
)

// Logging returns middleware that writes one record per request with the
// method, route pattern, status, size and duration. Server errors log at
// Error, client errors at Warn, the rest at Info.
func Logging(l *slog.Logger) internal.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := NewResponseWriter(w)

			next.ServeHTTP(rw, r)

			level := slog.LevelInfo
			switch {
			case rw.Status() >= http.StatusInternalServerError:
				level = slog.LevelError
			case rw.Status() >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			l.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routePattern(r)),
				slog.Int("status", rw.Status()),
				slog.Int64("size", rw.Size()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// routePattern returns the matched chi pattern, or the raw path when the
// request never reached a chi router.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
