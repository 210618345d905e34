package middlewares

import (
	"context"
	"net/http"
	"time"

	"github.com/browo-hrthis/fetchkit/internal"
)

// DefaultTimeout is the default request timeout.
const DefaultTimeout = 30 * time.Second

// Timeout returns middleware that bounds the request context by timeout.
// Controllers and the HR API client observe the deadline, so a slow
// upstream surfaces as context.DeadlineExceeded, which the default error
// handler renders as 504.
func Timeout(timeout time.Duration) internal.Middleware {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
