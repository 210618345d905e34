package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Ristretto is a size-bounded cache backed by ristretto's admission
// policy. Expiry is checked on read like the other backends.
//
// Ristretto hashes keys and cannot enumerate them, so a key index is kept
// alongside it for substring invalidation. The index may hold keys that
// ristretto has already evicted; they are dropped when next touched.
type Ristretto[V any] struct {
	cache *ristretto.Cache
	opts  *ristrettoOptions
	keys  map[string]struct{}
	mu    sync.Mutex
	once  sync.Once
}

// Stats reports ristretto's hit and miss counters.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	KeysAdded uint64  `json:"keys_added"`
	Evictions uint64  `json:"evictions"`
	Ratio     float64 `json:"ratio"`
	Keys      int     `json:"keys"`
}

// NewRistretto creates a bounded cache. The cost of every entry is 1
// unless WithCost is set, so MaxCost acts as an entry limit.
func NewRistretto[V any](opts ...RistrettoOption) (*Ristretto[V], error) {
	o := defaultRistrettoOptions()
	for _, opt := range opts {
		opt(o)
	}

	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: o.numCounters,
		MaxCost:     o.maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &Ristretto[V]{
		cache: rc,
		opts:  o,
		keys:  make(map[string]struct{}),
	}, nil
}

// Get retrieves a value by key.
func (r *Ristretto[V]) Get(ctx context.Context, key string) (V, error) {
	e, err := r.Entry(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}
	return e.Data, nil
}

// Entry returns the stored entry for key.
func (r *Ristretto[V]) Entry(_ context.Context, key string) (Entry[V], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.keys == nil {
		return Entry[V]{}, ErrClosed
	}

	val, found := r.cache.Get(key)
	if !found {
		delete(r.keys, key)
		return Entry[V]{}, ErrNotFound
	}

	e, ok := val.(Entry[V])
	if !ok || e.Expired(r.opts.clock.Now()) {
		r.cache.Del(key)
		delete(r.keys, key)
		return Entry[V]{}, ErrNotFound
	}

	return e, nil
}

// Set stores a value. The write is flushed through ristretto's buffers
// before Set returns so an immediate Get observes it. Ristretto may
// still reject the entry under memory pressure.
func (r *Ristretto[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.keys == nil {
		return ErrClosed
	}

	if ttl == 0 {
		ttl = r.opts.defaultTTL
	}

	e := Entry[V]{Data: value, Timestamp: r.opts.clock.Now(), TTL: ttl}

	var cost int64 = 1
	if r.opts.cost != nil {
		cost = r.opts.cost(value)
	}

	if !r.cache.Set(key, e, cost) {
		return fmt.Errorf("%w: %q dropped by the set buffer", ErrRejected, key)
	}
	r.cache.Wait()

	// Admission runs asynchronously; after Wait an absent key was refused.
	if _, ok := r.cache.GetTTL(key); !ok {
		delete(r.keys, key)
		return fmt.Errorf("%w: %q refused by the admission policy", ErrRejected, key)
	}
	r.keys[key] = struct{}{}

	return nil
}

// Delete removes a key.
func (r *Ristretto[V]) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.keys == nil {
		return ErrClosed
	}

	r.cache.Del(key)
	delete(r.keys, key)

	return nil
}

// Invalidate removes indexed keys containing match, or all entries when
// match is empty.
func (r *Ristretto[V]) Invalidate(_ context.Context, match string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.keys == nil {
		return 0, ErrClosed
	}

	removed := 0
	for key := range r.keys {
		if match != "" && !strings.Contains(key, match) {
			continue
		}
		if _, found := r.cache.Get(key); found {
			removed++
		}
		r.cache.Del(key)
		delete(r.keys, key)
	}

	if match == "" {
		r.cache.Clear()
	}

	return removed, nil
}

// IsStale reports whether key is absent, expired, or past the stale threshold.
func (r *Ristretto[V]) IsStale(ctx context.Context, key string) bool {
	e, err := r.Entry(ctx, key)
	if err != nil {
		return true
	}
	return e.Stale(r.opts.clock.Now())
}

// Stats returns a snapshot of ristretto's counters.
func (r *Ristretto[V]) Stats() Stats {
	r.mu.Lock()
	keys := len(r.keys)
	r.mu.Unlock()

	m := r.cache.Metrics
	return Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeysAdded: m.KeysAdded(),
		Evictions: m.KeysEvicted(),
		Ratio:     m.Ratio(),
		Keys:      keys,
	}
}

// Close releases ristretto's goroutines. Close is idempotent.
func (r *Ristretto[V]) Close() error {
	r.once.Do(func() {
		r.mu.Lock()
		r.keys = nil
		r.mu.Unlock()
		r.cache.Close()
	})
	return nil
}

var _ Cache[any] = (*Ristretto[any])(nil)
