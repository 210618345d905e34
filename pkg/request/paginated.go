package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Page is one page of results plus the total number of items available.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// PageFunc loads a 1-based page.
type PageFunc[T any] func(ctx context.Context, page, size int) (Page[T], error)

// PageState is a snapshot of a Paginated.
type PageState[T any] struct {
	Err      error
	Items    []T
	Page     int
	PageSize int
	Total    int
	Loading  bool
	HasMore  bool
}

// Paginated accumulates successive pages into one ordered sequence.
//
// Each page is fetched by its own Controller, so retries, tracing and
// caching apply per page. With a cache key K, page N of size M is cached
// under "K:page=N:size=M".
type Paginated[T any] struct {
	fn       PageFunc[T]
	opts     []Option
	pages    map[int]*Controller[Page[T]]
	baseKey  string
	name     string
	items    []T
	err      error
	size     int
	page     int
	total    int
	gen      uint64
	loadMu   sync.Mutex
	mu       sync.Mutex
	loading  bool
	closed   bool
	autoLoad bool
}

// NewPaginated creates a paginated loader. opts are applied to every page
// controller; refetch timers are not used for pages.
func NewPaginated[T any](fn PageFunc[T], pageSize int, opts ...Option) *Paginated[T] {
	probe := defaultOptions[Page[T]]()
	for _, opt := range opts {
		opt(probe)
	}

	name := probe.name
	if name == "" {
		name = probe.cacheKey
	}
	if name == "" {
		name = "pages"
	}

	return &Paginated[T]{
		fn:       fn,
		opts:     opts,
		pages:    make(map[int]*Controller[Page[T]]),
		baseKey:  probe.cacheKey,
		name:     name,
		size:     max(pageSize, 1),
		autoLoad: probe.immediate && probe.enabled,
	}
}

// Start loads the first page when the loader is immediate and enabled.
func (p *Paginated[T]) Start(ctx context.Context) error {
	if !p.autoLoad {
		return nil
	}
	if _, err := p.LoadMore(ctx); err != nil && !errors.Is(err, ErrCancelled) {
		return err
	}
	return nil
}

// LoadMore fetches the next page and appends it. The first call loads
// page 1. Once everything is loaded it returns the state unchanged.
// Concurrent calls are serialized.
func (p *Paginated[T]) LoadMore(ctx context.Context) (PageState[T], error) {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return PageState[T]{}, ErrClosed
	}
	if p.page > 0 && len(p.items) >= p.total {
		st := p.stateLocked()
		p.mu.Unlock()
		return st, nil
	}
	next := p.page + 1
	p.mu.Unlock()

	return p.load(ctx, next, false)
}

// Refetch drops every cached page and reloads page 1, replacing the
// accumulated items.
func (p *Paginated[T]) Refetch(ctx context.Context) (PageState[T], error) {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return PageState[T]{}, ErrClosed
	}
	p.mu.Unlock()

	if p.baseKey != "" {
		for _, c := range p.controllers() {
			if c.cached() {
				if _, err := c.opts.cache.Invalidate(ctx, p.baseKey+":page="); err != nil {
					c.opts.logger.Warn("cache invalidate failed",
						slog.String("request", p.name),
						slog.String("error", err.Error()),
					)
				}
				break
			}
		}
	}

	return p.load(ctx, 1, true)
}

// Reset clears the accumulated items and cancels any in-flight page.
func (p *Paginated[T]) Reset() {
	p.mu.Lock()
	p.gen++
	p.items = nil
	p.page = 0
	p.total = 0
	p.err = nil
	p.loading = false
	pages := p.pagesLocked()
	p.mu.Unlock()

	for _, c := range pages {
		c.Reset()
	}
}

// Close resets the loader and closes every page controller.
func (p *Paginated[T]) Close() error {
	p.Reset()

	p.mu.Lock()
	p.closed = true
	pages := p.pagesLocked()
	p.mu.Unlock()

	var errs []error
	for _, c := range pages {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// State returns a snapshot.
func (p *Paginated[T]) State() PageState[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

// HasMore reports whether fewer items were loaded than the reported total.
func (p *Paginated[T]) HasMore() bool {
	return p.State().HasMore
}

func (p *Paginated[T]) load(ctx context.Context, n int, replace bool) (PageState[T], error) {
	p.mu.Lock()
	gen := p.gen
	p.loading = true
	p.err = nil
	c := p.controllerLocked(n)
	p.mu.Unlock()

	var (
		pg  Page[T]
		err error
	)
	if replace {
		pg, err = c.Refetch(ctx)
	} else {
		pg, err = c.Execute(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen {
		return p.stateLocked(), ErrCancelled
	}

	p.loading = false
	if err != nil {
		if !errors.Is(err, ErrCancelled) {
			p.err = err
		}
		return p.stateLocked(), err
	}

	if n == 1 {
		p.items = slices.Clone(pg.Items)
	} else {
		p.items = append(p.items, pg.Items...)
	}
	p.page = n
	p.total = pg.Total

	return p.stateLocked(), nil
}

func (p *Paginated[T]) controllerLocked(n int) *Controller[Page[T]] {
	if c, ok := p.pages[n]; ok {
		return c
	}

	opts := slices.Clone(p.opts)
	opts = append(opts, WithName(p.name))
	if p.baseKey != "" {
		opts = append(opts, WithCacheKey(fmt.Sprintf("%s:page=%d:size=%d", p.baseKey, n, p.size)))
	}

	fn, size := p.fn, p.size
	c := New(func(ctx context.Context, _ ...any) (Page[T], error) {
		return fn(ctx, n, size)
	}, opts...)
	p.pages[n] = c

	return c
}

func (p *Paginated[T]) controllers() []*Controller[Page[T]] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pagesLocked()
}

func (p *Paginated[T]) pagesLocked() []*Controller[Page[T]] {
	out := make([]*Controller[Page[T]], 0, len(p.pages))
	for _, c := range p.pages {
		out = append(out, c)
	}
	return out
}

func (p *Paginated[T]) stateLocked() PageState[T] {
	return PageState[T]{
		Err:      p.err,
		Items:    slices.Clone(p.items),
		Page:     p.page,
		PageSize: p.size,
		Total:    p.total,
		Loading:  p.loading,
		HasMore:  len(p.items) < p.total,
	}
}

func (p *Paginated[T]) run(ctx context.Context, refetch bool) error {
	var err error
	if refetch || p.State().Page == 0 {
		_, err = p.Refetch(ctx)
	}
	return err
}

func (p *Paginated[T]) snapshot() any { return p.State() }
