// Package middlewares provides HTTP middleware for the fetchkit service.
//
// Every middleware has the chi signature func(http.Handler) http.Handler
// and is installed with WithMiddleware:
//
//	app := fetchkit.New(
//	    fetchkit.WithMiddleware(
//	        middlewares.RequestID(),
//	        middlewares.Tracing(),
//	        middlewares.Logging(log),
//	        middlewares.Recover(middlewares.WithRecoverLogger(log)),
//	        middlewares.Timeout(30*time.Second),
//	        middlewares.CORS(middlewares.WithAllowOrigins("https://hr.example.com")),
//	    ),
//	)
//
// # Request ID
//
// RequestID reuses an incoming X-Request-ID or X-Correlation-ID, or
// generates a UUID. The ID is echoed in the response and added to every
// log record written with the request context through logger.WithAttrs.
//
// # Recover
//
// Recover turns a panic into a PanicError rendered by the error handler
// (500 by default) and logs it with the stack.
//
// # Logging and Tracing
//
// Logging writes one record per request with the chi route pattern,
// status, size and duration. Tracing opens an OpenTelemetry server span,
// so spans from request controllers nest under the HTTP request.
//
// # Timeout
//
// Timeout bounds the request context. A slow HR API then fails with
// context.DeadlineExceeded, rendered as 504.
//
// # CORS
//
// CORS answers preflight requests from the browser front-end.
package middlewares
