// Package fetchkit serves a cached view of the HRthis employee directory.
//
// The heavy lifting lives in reusable packages:
//
//   - pkg/cache: a generic TTL cache with memory, ristretto and Redis
//     backends, staleness checks and substring invalidation
//   - pkg/retry: retry with exponential backoff and cancellation
//   - pkg/request: controllers binding a request function to a cache and
//     a retry policy, with optimistic updates, polling, pagination and
//     groups
//   - pkg/hrapi: the HR employees REST client
//
// This package wires them into an HTTP service.
//
// # Quick Start
//
//	client, err := hrapi.New("http://localhost:8000", hrapi.WithToken(token))
//	if err != nil {
//	    return err
//	}
//
//	store := cache.NewMemory[any]()
//	dir := fetchkit.NewDirectory(client, store, directory.WithTTL(5*time.Minute))
//
//	app := fetchkit.New(
//	    fetchkit.WithLogger(log),
//	    fetchkit.WithCache(store),
//	    fetchkit.WithDirectory(dir),
//	    fetchkit.WithMiddleware(middlewares.RequestID(), middlewares.Recover()),
//	)
//
//	if err := app.Run(ctx); err != nil {
//	    log.Error("server stopped", "error", err)
//	}
//
// Run blocks until the context ends or the process receives SIGINT or
// SIGTERM, then drains in-flight requests and closes the directory, the
// cache and every registered shutdown hook.
//
// # Configuration
//
// cmd/fetchkit reads its settings with [LoadConfig] from the environment
// and an optional .env file. Run it with -help to list the variables.
package fetchkit
