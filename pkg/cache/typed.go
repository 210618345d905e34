package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

type typed[V any] struct {
	c Cache[any]
}

// Typed exposes a heterogeneous Cache[any] as a Cache[V], so controllers
// with different payload types can share one store.
//
// Values are type-asserted on read. Values that were decoded from a
// serializing backend (e.g. Redis returns map[string]any) are converted
// through JSON. A value that cannot be converted yields ErrTypeMismatch.
func Typed[V any](c Cache[any]) Cache[V] {
	return typed[V]{c: c}
}

func (t typed[V]) Get(ctx context.Context, key string) (V, error) {
	v, err := t.c.Get(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}
	return convert[V](v)
}

func (t typed[V]) Entry(ctx context.Context, key string) (Entry[V], error) {
	e, err := t.c.Entry(ctx, key)
	if err != nil {
		return Entry[V]{}, err
	}
	v, err := convert[V](e.Data)
	if err != nil {
		return Entry[V]{}, err
	}
	return Entry[V]{Data: v, Timestamp: e.Timestamp, TTL: e.TTL}, nil
}

func (t typed[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	return t.c.Set(ctx, key, value, ttl)
}

func (t typed[V]) Delete(ctx context.Context, key string) error {
	return t.c.Delete(ctx, key)
}

func (t typed[V]) Invalidate(ctx context.Context, match string) (int, error) {
	return t.c.Invalidate(ctx, match)
}

func (t typed[V]) IsStale(ctx context.Context, key string) bool {
	return t.c.IsStale(ctx, key)
}

// Close does not close the shared store.
func (t typed[V]) Close() error {
	return nil
}

func convert[V any](v any) (V, error) {
	if tv, ok := v.(V); ok {
		return tv, nil
	}

	var out V
	if v == nil {
		return out, ErrTypeMismatch
	}

	data, err := json.Marshal(v)
	if err != nil {
		return out, errors.Join(ErrTypeMismatch, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, errors.Join(ErrTypeMismatch, err)
	}

	return out, nil
}
