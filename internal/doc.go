// Package internal provides the service runtime behind fetchkit.
//
// This package is internal and should not be used directly. Import
// "github.com/browo-hrthis/fetchkit" instead, which re-exports the public API.
//
// # Core Types
//
//   - App: serves the cached employee directory, health probes and metrics,
//     and runs graceful shutdown
//   - HandlerFunc: route handlers that return errors
//   - Middleware: chi-style http.Handler wrappers
//   - ErrorHandler: renders handler errors; DefaultErrorHandler writes JSON
//   - HTTPError: an error carrying its status code
//
// # Routes
//
//	GET    /employees            list, from cache when fresh
//	POST   /employees            create and patch the cached list
//	GET    /employees/{id}       one employee, from cache when fresh
//	PATCH  /employees/{id}       update
//	DELETE /employees/{id}       delete
//	GET    /cache/entries/{key}  entry with its age and stale flag
//	DELETE /cache?match=substr   invalidate matching keys
//	GET    /metrics              prometheus, with WithRegistry
//	GET    /health/live          liveness
//	GET    /health/ready         readiness checks
//
// Errors from the HR API map to statuses through StatusFor: a missing
// employee is 404, an upstream validation failure keeps its status and any
// other upstream failure is 502.
//
// # Lifecycle
//
// Run starts the directory, listens, and on SIGINT, SIGTERM or context
// cancellation drains the server and runs shutdown hooks: the directory,
// the cache, then hooks added with WithShutdownHook and ShutdownHook.
// Hook errors are joined.
package internal
