package request

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// member is implemented by Controller and Paginated.
type member interface {
	run(ctx context.Context, refetch bool) error
	snapshot() any
	Reset()
	Close() error
}

// Group holds independent named controllers of possibly different payload
// types. Members never share state; the group only fans operations out.
type Group struct {
	members map[string]member
	limit   int
	mu      sync.RWMutex
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithConcurrency bounds how many members ExecuteAll and RefetchAll run at
// once. Zero or negative means unbounded.
func WithConcurrency(n int) GroupOption {
	return func(g *Group) { g.limit = n }
}

// NewGroup creates an empty group.
func NewGroup(opts ...GroupOption) *Group {
	g := &Group{members: make(map[string]member)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register adds c under name.
func Register[T any](g *Group, name string, c *Controller[T]) error {
	return g.add(name, c)
}

// RegisterPaginated adds p under name.
func RegisterPaginated[T any](g *Group, name string, p *Paginated[T]) error {
	return g.add(name, p)
}

// Lookup returns the controller registered under name. It fails with
// ErrNotRegistered when the name is unknown or holds a different type.
func Lookup[T any](g *Group, name string) (*Controller[T], error) {
	g.mu.RLock()
	m, ok := g.members[name]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	c, ok := m.(*Controller[T])
	if !ok {
		return nil, fmt.Errorf("%w: %q holds %T", ErrNotRegistered, name, m)
	}
	return c, nil
}

// LoadOrRegister returns the controller under name, creating it with
// create when absent. create runs under the group lock.
func LoadOrRegister[T any](g *Group, name string, create func() *Controller[T]) (*Controller[T], error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if m, ok := g.members[name]; ok {
		c, ok := m.(*Controller[T])
		if !ok {
			return nil, fmt.Errorf("%w: %q holds %T", ErrAlreadyRegistered, name, m)
		}
		return c, nil
	}

	c := create()
	g.members[name] = c
	return c, nil
}

// Remove closes and forgets the member under name.
func (g *Group) Remove(name string) error {
	g.mu.Lock()
	m, ok := g.members[name]
	delete(g.members, name)
	g.mu.Unlock()

	if !ok {
		return nil
	}
	return m.Close()
}

// Names returns the registered names in sorted order.
func (g *Group) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Sorted(maps.Keys(g.members))
}

// Len returns the number of members.
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// States returns each member's state keyed by name. Values are State[T]
// or PageState[T].
func (g *Group) States() map[string]any {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string]any, len(g.members))
	for name, m := range g.members {
		out[name] = m.snapshot()
	}
	return out
}

// ExecuteAll executes every member concurrently. Fresh cache entries are
// honoured. Failures do not stop other members; they are joined in the
// returned error. Cancellations and disabled members are ignored.
func (g *Group) ExecuteAll(ctx context.Context) error {
	return g.fanOut(ctx, false)
}

// RefetchAll is ExecuteAll bypassing the cache.
func (g *Group) RefetchAll(ctx context.Context) error {
	return g.fanOut(ctx, true)
}

// Reset resets every member.
func (g *Group) Reset() {
	for _, m := range g.snapshotMembers() {
		m.Reset()
	}
}

// Close closes every member and empties the group.
func (g *Group) Close() error {
	g.mu.Lock()
	members := g.members
	g.members = make(map[string]member)
	g.mu.Unlock()

	var errs []error
	for _, m := range members {
		errs = append(errs, m.Close())
	}
	return errors.Join(errs...)
}

func (g *Group) add(name string, m member) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.members[name]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}
	g.members[name] = m
	return nil
}

func (g *Group) snapshotMembers() map[string]member {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return maps.Clone(g.members)
}

func (g *Group) fanOut(ctx context.Context, refetch bool) error {
	var (
		eg   errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	if g.limit > 0 {
		eg.SetLimit(g.limit)
	}

	for name, m := range g.snapshotMembers() {
		eg.Go(func() error {
			err := m.run(ctx, refetch)
			if err == nil || errors.Is(err, ErrCancelled) || errors.Is(err, ErrDisabled) {
				return nil
			}
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	return errors.Join(errs...)
}
