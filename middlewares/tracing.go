package middlewares

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/browo-hrthis/fetchkit/internal"
)

const tracerName = "github.com/browo-hrthis/fetchkit/middlewares"

// Tracing returns middleware that opens a server span per request,
// continuing any trace propagated in the request headers. The span is
// renamed to the matched route once the handler returns, and 5xx
// responses mark it as failed. Controller spans nest under it.
func Tracing() internal.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := otel.Tracer(tracerName).Start(ctx, r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("url.path", r.URL.Path),
				),
			)
			defer span.End()

			rw := NewResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			route := routePattern(r)
			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", rw.Status()),
			)
			if rw.Status() >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rw.Status()))
			}
		})
	}
}
