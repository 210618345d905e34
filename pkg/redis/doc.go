// Package redis opens the go-redis client behind the shared cache backend.
//
// [Open] accepts redis:// and rediss:// URLs and pings the server with a
// linear backoff from pkg/retry before handing the client back, so a cache
// that starts slightly after the service does not fail the boot:
//
//	client, err := redis.Open(ctx, cfg.Cache.RedisURL,
//		redis.WithRetry(5, time.Second),
//		redis.WithLogger(log),
//	)
//	if err != nil {
//		return err
//	}
//	store := cache.NewRedis[any](client, nil, cache.WithPrefix("fetchkit:"))
//
// [Healthcheck] plugs into the readiness endpoint and [Shutdown] into the
// runtime's shutdown hooks:
//
//	app := fetchkit.New(
//		fetchkit.WithHealthChecks(fetchkit.WithReadinessCheck("redis", redis.Healthcheck(client))),
//		fetchkit.WithShutdownHook(redis.Shutdown(client)),
//	)
//
// Failures wrap one of the sentinel errors ([ErrEmptyConnectionURL],
// [ErrFailedToParseURL], [ErrConnectionFailed], [ErrHealthcheckFailed])
// with [errors.Join].
package redis
