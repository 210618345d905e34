package request_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/browo-hrthis/fetchkit/pkg/cache"
	"github.com/browo-hrthis/fetchkit/pkg/request"
)

// numbers serves 1..total in pages.
func numbers(total int, calls *atomic.Int32) request.PageFunc[int] {
	return func(_ context.Context, page, size int) (request.Page[int], error) {
		calls.Add(1)
		var items []int
		for i := (page-1)*size + 1; i <= min(page*size, total); i++ {
			items = append(items, i)
		}
		return request.Page[int]{Items: items, Total: total}, nil
	}
}

// brokenInvalidate fails every Invalidate call.
type brokenInvalidate struct {
	cache.Cache[request.Page[int]]
}

func (brokenInvalidate) Invalidate(context.Context, string) (int, error) {
	return 0, errBoom
}

func TestPaginated_LoadMore(t *testing.T) {
	t.Parallel()

	t.Run("accumulates pages in order", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		p := request.NewPaginated(numbers(50, &calls), 10)
		t.Cleanup(func() { _ = p.Close() })

		ctx := context.Background()
		for range 3 {
			_, err := p.LoadMore(ctx)
			require.NoError(t, err)
		}

		st := p.State()
		require.Len(t, st.Items, 30)
		require.Equal(t, 1, st.Items[0])
		require.Equal(t, 30, st.Items[29])
		require.Equal(t, 3, st.Page)
		require.Equal(t, 50, st.Total)
		require.True(t, st.HasMore)
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("has more only while below total", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		p := request.NewPaginated(numbers(30, &calls), 10)
		t.Cleanup(func() { _ = p.Close() })

		ctx := context.Background()
		for range 3 {
			_, err := p.LoadMore(ctx)
			require.NoError(t, err)
		}
		require.False(t, p.HasMore())

		st, err := p.LoadMore(ctx)
		require.NoError(t, err)
		require.Len(t, st.Items, 30)
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("failure keeps loaded pages", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		fn := func(ctx context.Context, page, size int) (request.Page[int], error) {
			if page == 2 {
				calls.Add(1)
				return request.Page[int]{}, errBoom
			}
			return numbers(50, &calls)(ctx, page, size)
		}
		p := request.NewPaginated(fn, 10, request.WithRetries(0))
		t.Cleanup(func() { _ = p.Close() })

		ctx := context.Background()
		_, err := p.LoadMore(ctx)
		require.NoError(t, err)

		st, err := p.LoadMore(ctx)
		require.ErrorIs(t, err, errBoom)
		require.ErrorIs(t, st.Err, errBoom)
		require.Len(t, st.Items, 10)
		require.Equal(t, 1, st.Page)
	})
}

func TestPaginated_RefetchAndReset(t *testing.T) {
	t.Parallel()

	t.Run("refetch replaces items with page one", func(t *testing.T) {
		t.Parallel()

		store := cache.NewMemory[request.Page[int]]()
		t.Cleanup(func() { _ = store.Close() })

		var calls atomic.Int32
		p := request.NewPaginated(numbers(50, &calls), 10,
			request.WithCache[request.Page[int]](store),
			request.WithCacheKey("numbers"),
			request.WithTTL(time.Minute),
		)
		t.Cleanup(func() { _ = p.Close() })

		ctx := context.Background()
		for range 2 {
			_, err := p.LoadMore(ctx)
			require.NoError(t, err)
		}
		require.Equal(t, 2, store.Len())

		st, err := p.Refetch(ctx)
		require.NoError(t, err)
		require.Len(t, st.Items, 10)
		require.Equal(t, 1, st.Page)
		require.Equal(t, 1, store.Len())
		require.Equal(t, int32(3), calls.Load())

		_, err = store.Get(ctx, "numbers:page=1:size=10")
		require.NoError(t, err)
	})

	t.Run("refetch logs a failed invalidate", func(t *testing.T) {
		t.Parallel()

		mem := cache.NewMemory[request.Page[int]]()
		t.Cleanup(func() { _ = mem.Close() })

		var buf bytes.Buffer
		var calls atomic.Int32
		p := request.NewPaginated(numbers(50, &calls), 10,
			request.WithCache[request.Page[int]](brokenInvalidate{mem}),
			request.WithCacheKey("numbers"),
			request.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
		)
		t.Cleanup(func() { _ = p.Close() })

		ctx := context.Background()
		_, err := p.LoadMore(ctx)
		require.NoError(t, err)

		st, err := p.Refetch(ctx)
		require.NoError(t, err)
		require.Len(t, st.Items, 10)
		require.Contains(t, buf.String(), "cache invalidate failed")
		require.Contains(t, buf.String(), "boom")
	})

	t.Run("reset clears accumulated items", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		p := request.NewPaginated(numbers(50, &calls), 10)
		t.Cleanup(func() { _ = p.Close() })

		ctx := context.Background()
		_, err := p.LoadMore(ctx)
		require.NoError(t, err)

		p.Reset()
		st := p.State()
		require.Empty(t, st.Items)
		require.Zero(t, st.Page)
		require.False(t, st.HasMore)

		st, err = p.LoadMore(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, st.Page)
	})

	t.Run("start loads the first page", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		p := request.NewPaginated(numbers(5, &calls), 10)
		t.Cleanup(func() { _ = p.Close() })

		require.NoError(t, p.Start(context.Background()))
		require.Len(t, p.State().Items, 5)

		require.NoError(t, p.Close())
		_, err := p.LoadMore(context.Background())
		require.ErrorIs(t, err, request.ErrClosed)
	})
}
