// Package cache provides a generic TTL cache interface with in-memory,
// ristretto and Redis implementations.
//
// Every implementation stores an [Entry]: the value, the time it was
// written and its TTL. An entry is valid while now-timestamp <= ttl.
// Expiry is detected on read; the expired entry is removed and the read
// reports [ErrNotFound]. No background sweep runs unless the in-memory
// backend is built with [WithCleanupInterval].
//
// # Interface
//
// The [Cache] interface is generic over value type V:
//
//   - Get(ctx, key) (V, error): retrieve a valid value
//   - Entry(ctx, key) (Entry[V], error): retrieve the value with its metadata
//   - Set(ctx, key, value, ttl) error: store a value stamped with the current time
//   - Delete(ctx, key) error: remove a key
//   - Invalidate(ctx, match) (int, error): remove keys containing match, or all keys
//   - IsStale(ctx, key) bool: absent, or older than 75% of its TTL
//   - Close() error: release resources
//
// TTL semantics for Set:
//   - Positive duration: entry expires after this duration
//   - Zero: use the cache's configured default TTL (5 minutes by default)
//   - Negative: entry never expires
//
// # Staleness
//
// An entry becomes stale once its age exceeds [StaleFraction] of its TTL,
// strictly before it expires. Staleness is only reported; nothing is
// refreshed automatically. Callers such as request controllers treat a
// stale entry as a reason to fetch again while a fresh one short-circuits.
//
// # In-Memory Cache
//
// Use [NewMemory] for single-process applications or testing. It is
// unbounded by default; [WithMaxEntries] adds LRU eviction. Time is read
// from a [github.com/benbjohnson/clock.Clock] so tests can move it:
//
//	mock := clock.NewMock()
//	c := cache.NewMemory[string](cache.WithClock(mock))
//	defer c.Close()
//
//	c.Set(ctx, "emp:1", "A", 5*time.Second)
//	mock.Add(4 * time.Second)
//	c.IsStale(ctx, "emp:1") // true, still readable
//	mock.Add(2 * time.Second)
//	c.Get(ctx, "emp:1")     // ErrNotFound
//
// # Bounded Cache
//
// [NewRistretto] wraps github.com/dgraph-io/ristretto for a cost-bounded
// cache with admission control. [Ristretto.Stats] exposes hit ratios.
//
// # Redis Cache
//
// Use [NewRedis] for a cache shared across processes. Entries are stored
// as a JSON envelope {data, timestamp, ttl} so staleness can be computed
// by any reader:
//
//	client, err := redis.Open(ctx, os.Getenv("REDIS_URL"))
//	c := cache.NewRedis[Employee](client, nil, cache.WithPrefix("hr"))
//
// Pass a custom [Marshaler] as the second argument to [NewRedis] to use
// a different serialization format for the data field.
//
// # Sharing a Store
//
// [Typed] adapts a Cache[any] to a Cache[V]. Several typed views over one
// store share keys, so invalidating "employee" through any view affects
// all of them.
//
// # Cache Stampede Prevention
//
// Use the standalone [GetOrSet] function to prevent cache stampedes.
// It uses singleflight to ensure only one goroutine computes a missing value:
//
//	val, err := cache.GetOrSet(ctx, c, "employee:123", func(ctx context.Context) (Employee, time.Duration, error) {
//	    e, err := client.GetEmployee(ctx, "123")
//	    return e, 5 * time.Minute, err
//	})
//
// # Error Handling
//
// The package defines sentinel errors:
//
//   - [ErrNotFound]: key does not exist or has expired
//   - [ErrClosed]: operation on a closed cache
//   - [ErrMarshal]: value serialization failed
//   - [ErrUnmarshal]: value deserialization failed
//   - [ErrTypeMismatch]: a [Typed] view read a value of another type
//   - [ErrRejected]: the ristretto backend dropped or refused a write
//
// Use [errors.Is] to check:
//
//	val, err := c.Get(ctx, "key")
//	if errors.Is(err, cache.ErrNotFound) {
//	    // handle miss
//	}
package cache
