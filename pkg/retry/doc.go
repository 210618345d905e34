// Package retry runs a call with bounded retries and backoff, reporting an
// explicit outcome instead of relying on error types for control flow.
//
// [Do] returns an [Outcome] whose [Status] is one of:
//
//   - [Succeeded]: a call returned without error
//   - [Cancelled]: the call was abandoned (context.Canceled or [ErrCancelled]);
//     never retried and never reported as an error
//   - [Failed]: every permitted call returned an error; Err holds the last one
//
// With the defaults a failing call is made 4 times (1 + [DefaultRetries])
// and the wait before retry i is DefaultDelay * 2^(i-1):
//
//	out := retry.Do(ctx, func(ctx context.Context) (Employee, error) {
//	    return client.GetEmployee(ctx, id)
//	}, retry.WithRetries(2), retry.WithDelay(500*time.Millisecond))
//
//	switch out.Status {
//	case retry.Succeeded:
//	    use(out.Value)
//	case retry.Failed:
//	    log.Error("lookup failed", "attempts", out.Attempts, "error", out.Err)
//	}
//
// Strategies: [Exponential] (default), [Linear], [Constant] and
// [ExponentialJitter]. [WithMaxDelay] caps any of them.
//
// Wrap an error with [Permanent] to stop retrying, for example on a 4xx
// response. A panic inside the call is recovered into an error wrapping
// [ErrPanic] and retried like any other failure.
//
// [WithObserver] receives an [Attempt] after each failed call and
// [WithLimiter] throttles calls through a golang.org/x/time/rate limiter.
package retry
