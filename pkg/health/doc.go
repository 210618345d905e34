// Package health runs dependency probes and serves liveness and readiness
// endpoints.
//
// [LivenessHandler] always answers OK. [ReadinessHandler] runs its
// [Checks] concurrently under one timeout and answers 503 when any fails:
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
//	    "redis": redis.Healthcheck(client),
//	    "hrapi": api.Ping,
//	}, health.WithTimeout(2*time.Second)))
//
// Responses are plain text unless the client asks for JSON with
// ?format=json or an Accept header:
//
//	{"status":"unhealthy","checks":{"redis":{"status":"unhealthy","error":"...","duration":"3ms"}}}
//
// [Run] executes the same checks without HTTP, for startup probes.
package health
