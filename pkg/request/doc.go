// Package request wraps an asynchronous request function with caching,
// retries, cancellation and observable state.
//
// A [Controller] owns one request function. Execute consults the cache
// first: a present, non-stale entry answers immediately without calling
// the function. Otherwise the function runs under [retry.Do] with
// exponential backoff, and a success is written back to the cache:
//
//	store := cache.NewMemory[Employee]()
//	c := request.New(func(ctx context.Context, _ ...any) (Employee, error) {
//	    return client.GetEmployee(ctx, "1")
//	},
//	    request.WithCache(store),
//	    request.WithCacheKey("employee:1"),
//	    request.WithRetries(2),
//	)
//	defer c.Close()
//
//	emp, err := c.Execute(ctx)
//
// Starting a new execution cancels the previous one through its context.
// The superseded execution returns [ErrCancelled] and never touches
// state, cache or callbacks. Cancellation is never stored in State.Err.
//
// [WithOptimisticUpdate] applies a transform to the current data while the
// request is in flight. On failure or cancellation the data reverts to
// the cached value, or to the data held before the update.
//
// [WithRefetchInterval] and [WithRefetchSchedule] refetch in the
// background once [Controller.Start] has been called.
//
// [Paginated] accumulates pages into one list, and [Group] fans
// operations out to independent named controllers of different types.
package request
