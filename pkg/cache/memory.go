package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type memEntry[V any] struct {
	Entry[V]
	key string
}

// Memory is an in-memory cache with TTL expiry checked on read and
// optional LRU eviction when a maximum entry count is configured.
//
// It uses a hash map for O(1) lookups and a doubly-linked list for O(1)
// LRU eviction ordering. The most recently accessed items are at the
// front of the list; the least recently used are at the back.
type Memory[V any] struct {
	items    map[string]*list.Element
	eviction *list.List
	opts     *memoryOptions
	onEvict  func(key string, value V)
	done     chan struct{}
	mu       sync.Mutex
	closed   bool
}

// NewMemory creates a new in-memory cache.
//
// Example:
//
//	c := cache.NewMemory[Employee](
//	    cache.WithDefaultTTL(5 * time.Minute),
//	    cache.WithMaxEntries(10000),
//	)
//	defer c.Close()
func NewMemory[V any](opts ...MemoryOption) *Memory[V] {
	o := defaultMemoryOptions()
	for _, opt := range opts {
		opt(o)
	}

	m := &Memory[V]{
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		opts:     o,
		done:     make(chan struct{}),
	}

	if o.cleanupInterval > 0 {
		go m.janitor(o.clock.Ticker(o.cleanupInterval))
	}

	return m
}

// SetEvictCallback sets a callback function that is called when items
// are removed from the cache. This includes LRU eviction, expiry,
// deletion, and invalidation.
func (m *Memory[V]) SetEvictCallback(fn func(key string, value V)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = fn
}

// Get retrieves a value by key.
// Returns ErrNotFound if the key does not exist or has expired.
// Accessing a key marks it as recently used for LRU purposes.
func (m *Memory[V]) Get(ctx context.Context, key string) (V, error) {
	e, err := m.Entry(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}
	return e.Data, nil
}

// Entry returns the stored entry for key.
func (m *Memory[V]) Entry(_ context.Context, key string) (Entry[V], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Entry[V]{}, ErrClosed
	}

	elem, ok := m.lookup(key)
	if !ok {
		return Entry[V]{}, ErrNotFound
	}

	m.eviction.MoveToFront(elem)

	return elem.Value.(*memEntry[V]).Entry, nil
}

// Set stores a value with the given TTL.
// TTL semantics: positive = expires after duration, zero = use default TTL,
// negative = never expires.
func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if ttl == 0 {
		ttl = m.opts.defaultTTL
	}

	stored := Entry[V]{Data: value, Timestamp: m.opts.clock.Now(), TTL: ttl}

	if elem, ok := m.items[key]; ok {
		elem.Value.(*memEntry[V]).Entry = stored
		m.eviction.MoveToFront(elem)
		return nil
	}

	if m.opts.maxEntries > 0 && len(m.items) >= m.opts.maxEntries {
		m.evictOldest()
	}

	elem := m.eviction.PushFront(&memEntry[V]{Entry: stored, key: key})
	m.items[key] = elem

	return nil
}

// Delete removes a key from the cache.
func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if elem, ok := m.items[key]; ok {
		m.removeElement(elem)
	}

	return nil
}

// Invalidate removes all entries whose key contains match,
// or every entry when match is empty.
func (m *Memory[V]) Invalidate(_ context.Context, match string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	removed := 0
	for key, elem := range m.items {
		if match == "" || strings.Contains(key, match) {
			m.removeElement(elem)
			removed++
		}
	}

	return removed, nil
}

// IsStale reports whether key is absent, expired, or past the stale threshold.
func (m *Memory[V]) IsStale(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return true
	}

	elem, ok := m.lookup(key)
	if !ok {
		return true
	}

	return elem.Value.(*memEntry[V]).Stale(m.opts.clock.Now())
}

// Len returns the number of stored entries, including expired ones not yet read.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close stops the background janitor goroutine and marks the cache as closed.
// Close is idempotent.
func (m *Memory[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.done)

	return nil
}

// lookup returns the element for key, removing it if expired.
// Caller must hold the mutex.
func (m *Memory[V]) lookup(key string) (*list.Element, bool) {
	elem, ok := m.items[key]
	if !ok {
		return nil, false
	}

	if elem.Value.(*memEntry[V]).Expired(m.opts.clock.Now()) {
		m.removeElement(elem)
		return nil, false
	}

	return elem, true
}

// janitor receives a ticker created by NewMemory, so a clock advance right
// after construction is never missed.
func (m *Memory[V]) janitor(ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.deleteExpired()
		}
	}
}

// deleteExpired removes all expired entries from back to front.
func (m *Memory[V]) deleteExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.clock.Now()
	for elem := m.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memEntry[V]).Expired(now) {
			m.removeElement(elem)
		}
		elem = prev
	}
}

// evictOldest removes the least recently used entry.
// Caller must hold the mutex.
func (m *Memory[V]) evictOldest() {
	elem := m.eviction.Back()
	if elem != nil {
		m.removeElement(elem)
	}
}

// removeElement removes a specific element and triggers the eviction callback.
// Caller must hold the mutex.
func (m *Memory[V]) removeElement(elem *list.Element) {
	m.eviction.Remove(elem)
	e := elem.Value.(*memEntry[V])
	delete(m.items, e.key)

	if m.onEvict != nil {
		m.onEvict(e.key, e.Data)
	}
}

var _ Cache[any] = (*Memory[any])(nil)
