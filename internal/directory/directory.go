// Package directory keeps a cached view of the HR employee directory.
//
// Every read goes through a request controller, so list and detail
// lookups share one cache, retry transient failures and refresh in the
// background. Writes go straight to the API and then patch or
// invalidate the affected cache entries.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/browo-hrthis/fetchkit/pkg/cache"
	"github.com/browo-hrthis/fetchkit/pkg/hrapi"
	"github.com/browo-hrthis/fetchkit/pkg/request"
)

// Cache keys. Pages are stored under ListKey + ":page=N:size=M".
const (
	ListKey        = "employees"
	employeePrefix = "employee:"
)

// PagerKey names the shared page loader for one page size in States.
func PagerKey(size int) string {
	return fmt.Sprintf("%s:size=%d", ListKey, size)
}

// EmployeeKey is the cache key of one employee.
func EmployeeKey(id string) string {
	return employeePrefix + id
}

// API is the subset of the HR client the directory needs.
type API interface {
	ListEmployees(ctx context.Context) (hrapi.EmployeeList, error)
	ListEmployeesPage(ctx context.Context, page, size int) (request.Page[hrapi.Employee], error)
	GetEmployee(ctx context.Context, id string) (hrapi.Employee, error)
	CreateEmployee(ctx context.Context, in hrapi.EmployeeCreate) (hrapi.Employee, error)
	UpdateEmployee(ctx context.Context, id string, in hrapi.EmployeeUpdate) (hrapi.Employee, error)
	DeleteEmployee(ctx context.Context, id string) error
}

// Service is the cached employee directory.
type Service struct {
	api    API
	store  cache.Cache[any]
	group  *request.Group
	list   *request.Controller[hrapi.EmployeeList]
	logger *slog.Logger
	reads  singleflight.Group
	base   []request.Option
	cfg    options

	pagersMu sync.Mutex
	pagers   map[int]*request.Paginated[hrapi.Employee]
}

// New builds the directory over api, caching in store.
func New(api API, store cache.Cache[any], opts ...Option) *Service {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Service{
		api:    api,
		store:  store,
		group:  request.NewGroup(request.WithConcurrency(cfg.concurrency)),
		logger: cfg.logger.With(slog.String("component", "directory")),
		cfg:    cfg,
		pagers: make(map[int]*request.Paginated[hrapi.Employee]),
	}

	s.base = []request.Option{
		request.WithTTL(cfg.ttl),
		request.WithRetries(cfg.retries),
		request.WithRetryDelay(cfg.retryDelay),
		request.WithLogger(s.logger),
		request.WithMetrics(cfg.metrics),
		request.WithDedupe(true),
	}
	if cfg.clock != nil {
		s.base = append(s.base, request.WithClock(cfg.clock))
	}

	listOpts := s.with(
		request.WithName("employees"),
		request.WithCacheKey(ListKey),
		request.WithCache(cache.Typed[hrapi.EmployeeList](store)),
	)
	if cfg.refetchInterval > 0 {
		listOpts = append(listOpts, request.WithRefetchInterval(cfg.refetchInterval))
	}

	s.list = request.New(func(ctx context.Context, _ ...any) (hrapi.EmployeeList, error) {
		list, err := api.ListEmployees(ctx)
		return list, hrapi.Retryable(err)
	}, listOpts...)

	// The group is fresh, so the name cannot collide.
	_ = request.Register(s.group, ListKey, s.list)

	return s
}

// Start loads the list and starts its refetch timer. A failed initial
// load is returned but the timer keeps running.
func (s *Service) Start(ctx context.Context) error {
	return s.list.Start(ctx)
}

// List returns all employees, from cache when fresh.
func (s *Service) List(ctx context.Context) (hrapi.EmployeeList, error) {
	return join(ctx, &s.reads, ListKey, s.list)
}

// ListState exposes the list controller state, including a stale list
// kept while a refresh fails.
func (s *Service) ListState() request.State[hrapi.EmployeeList] {
	return s.list.State()
}

// Get returns one employee, from cache when fresh.
func (s *Service) Get(ctx context.Context, id string) (hrapi.Employee, error) {
	c, err := s.employee(id)
	if err != nil {
		return hrapi.Employee{}, err
	}
	return join(ctx, &s.reads, EmployeeKey(id), c)
}

// Create stores a new employee, seeds its cache entry and appends it to
// a loaded list.
func (s *Service) Create(ctx context.Context, in hrapi.EmployeeCreate) (hrapi.Employee, error) {
	emp, err := s.api.CreateEmployee(ctx, in)
	if err != nil {
		return hrapi.Employee{}, err
	}

	if c, err := s.employee(emp.ID); err == nil {
		s.warn(ctx, "seed employee", c.Mutate(ctx, emp))
	}

	s.patchList(ctx, func(l hrapi.EmployeeList) hrapi.EmployeeList {
		l.Employees = append(slices.Clone(l.Employees), emp)
		l.Total++
		return l
	})
	s.invalidate(ctx, ListKey+":page=")
	s.resetPagers()

	return emp, nil
}

// Update applies a partial update, refreshes the employee entry and
// invalidates cached lists.
func (s *Service) Update(ctx context.Context, id string, in hrapi.EmployeeUpdate) (hrapi.Employee, error) {
	emp, err := s.api.UpdateEmployee(ctx, id, in)
	if err != nil {
		return hrapi.Employee{}, err
	}

	if c, err := s.employee(id); err == nil {
		s.warn(ctx, "update employee", c.Mutate(ctx, emp))
	}

	s.invalidate(ctx, ListKey)
	s.resetPagers()
	s.patchList(ctx, func(l hrapi.EmployeeList) hrapi.EmployeeList {
		l.Employees = slices.Clone(l.Employees)
		for i := range l.Employees {
			if l.Employees[i].ID == id {
				l.Employees[i] = emp
			}
		}
		return l
	})

	return emp, nil
}

// Delete removes an employee, drops its entry and removes it from a
// loaded list.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteEmployee(ctx, id); err != nil {
		return err
	}

	s.warn(ctx, "remove employee controller", s.group.Remove(EmployeeKey(id)))
	s.warn(ctx, "delete employee entry", s.store.Delete(ctx, EmployeeKey(id)))

	s.patchList(ctx, func(l hrapi.EmployeeList) hrapi.EmployeeList {
		n := len(l.Employees)
		l.Employees = slices.DeleteFunc(slices.Clone(l.Employees), func(e hrapi.Employee) bool {
			return e.ID == id
		})
		l.Total -= n - len(l.Employees)
		return l
	})
	s.invalidate(ctx, ListKey+":page=")
	s.resetPagers()

	return nil
}

// Pages returns a paginated loader whose pages share the directory cache.
func (s *Service) Pages(pageSize int) *request.Paginated[hrapi.Employee] {
	if pageSize <= 0 {
		pageSize = s.cfg.pageSize
	}
	return request.NewPaginated(func(ctx context.Context, page, size int) (request.Page[hrapi.Employee], error) {
		p, err := s.api.ListEmployeesPage(ctx, page, size)
		return p, hrapi.Retryable(err)
	}, pageSize, s.with(
		request.WithName("employees_page"),
		request.WithCacheKey(ListKey),
		request.WithCache(cache.Typed[request.Page[hrapi.Employee]](s.store)),
	)...)
}

// Page returns page n (1-based) of the directory. A loader per page size
// accumulates pages and is registered with the group, so Refresh and
// Revalidate reach it. Pages beyond the total come back empty.
func (s *Service) Page(ctx context.Context, n, size int) (request.Page[hrapi.Employee], error) {
	n = max(n, 1)
	if size <= 0 {
		size = s.cfg.pageSize
	}

	p, err := s.pager(size)
	if err != nil {
		return request.Page[hrapi.Employee]{}, err
	}

	st := p.State()
	for st.Page < n && (st.Page == 0 || st.HasMore) {
		next, err := p.LoadMore(ctx)
		if errors.Is(err, request.ErrCancelled) && ctx.Err() == nil {
			// A write reset the loader mid-load; start over from its new state.
			st = p.State()
			continue
		}
		if err != nil {
			return request.Page[hrapi.Employee]{}, err
		}
		if next.Page == st.Page {
			break
		}
		st = next
	}

	lo := min((n-1)*size, len(st.Items))
	hi := min(n*size, len(st.Items))
	return request.Page[hrapi.Employee]{Items: slices.Clone(st.Items[lo:hi]), Total: st.Total}, nil
}

// PageSize is the size used by Page when none is given.
func (s *Service) PageSize() int {
	return s.cfg.pageSize
}

func (s *Service) pager(size int) (*request.Paginated[hrapi.Employee], error) {
	s.pagersMu.Lock()
	defer s.pagersMu.Unlock()

	if p, ok := s.pagers[size]; ok {
		return p, nil
	}
	p := s.Pages(size)
	if err := request.RegisterPaginated(s.group, PagerKey(size), p); err != nil {
		_ = p.Close()
		return nil, err
	}
	s.pagers[size] = p
	return p, nil
}

// resetPagers drops accumulated pages after a write; the next Page call
// reloads them.
func (s *Service) resetPagers() {
	s.pagersMu.Lock()
	defer s.pagersMu.Unlock()
	for _, p := range s.pagers {
		p.Reset()
	}
}

// Refresh refetches every loaded controller, ignoring the cache.
func (s *Service) Refresh(ctx context.Context) error {
	return s.group.RefetchAll(ctx)
}

// Revalidate executes every loaded controller; only stale or missing
// entries reach the API.
func (s *Service) Revalidate(ctx context.Context) error {
	return s.group.ExecuteAll(ctx)
}

// Invalidate removes cache entries whose key contains match, or all
// entries when match is empty.
func (s *Service) Invalidate(ctx context.Context, match string) (int, error) {
	return s.store.Invalidate(ctx, match)
}

// Entry returns a raw cache entry with its metadata.
func (s *Service) Entry(ctx context.Context, key string) (cache.Entry[any], error) {
	return s.store.Entry(ctx, key)
}

// IsStale reports whether key is missing or past its stale threshold.
func (s *Service) IsStale(ctx context.Context, key string) bool {
	return s.store.IsStale(ctx, key)
}

// States returns every controller state keyed by cache key.
func (s *Service) States() map[string]any {
	return s.group.States()
}

// Close stops all controllers. The store is owned by the caller.
func (s *Service) Close() error {
	return s.group.Close()
}

// Shutdown adapts Close to a shutdown hook.
func (s *Service) Shutdown(context.Context) error {
	return s.Close()
}

func (s *Service) employee(id string) (*request.Controller[hrapi.Employee], error) {
	if id == "" {
		return nil, hrapi.ErrInvalidID
	}
	key := EmployeeKey(id)
	return request.LoadOrRegister(s.group, key, func() *request.Controller[hrapi.Employee] {
		return request.New(func(ctx context.Context, _ ...any) (hrapi.Employee, error) {
			emp, err := s.api.GetEmployee(ctx, id)
			return emp, hrapi.Retryable(err)
		}, s.with(
			request.WithName("employee"),
			request.WithCacheKey(key),
			request.WithCache(cache.Typed[hrapi.Employee](s.store)),
			request.WithImmediate(false),
		)...)
	})
}

// join collapses concurrent reads of one controller into a single
// Execute, so callers never supersede each other. The shared execution is
// detached from any one caller; each caller stops waiting when its own ctx
// is done. An execution superseded by a background refetch is retried once.
func join[T any](ctx context.Context, reads *singleflight.Group, key string, c *request.Controller[T]) (T, error) {
	ch := reads.DoChan(key, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		v, err := c.Execute(shared)
		if errors.Is(err, request.ErrCancelled) {
			v, err = c.Execute(shared)
		}
		return v, err
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// patchList rewrites the list in place when it is loaded. An unloaded
// list is left for the next fetch.
func (s *Service) patchList(ctx context.Context, fn func(hrapi.EmployeeList) hrapi.EmployeeList) {
	if !s.list.State().HasData {
		return
	}
	err := s.list.MutateFunc(ctx, func(prev hrapi.EmployeeList, ok bool) hrapi.EmployeeList {
		if !ok {
			return prev
		}
		return fn(prev)
	})
	s.warn(ctx, "patch employee list", err)
}

func (s *Service) invalidate(ctx context.Context, match string) {
	_, err := s.store.Invalidate(ctx, match)
	s.warn(ctx, "invalidate "+match, err)
}

func (s *Service) warn(ctx context.Context, op string, err error) {
	if err == nil || errors.Is(err, cache.ErrNotFound) {
		return
	}
	s.logger.WarnContext(ctx, "directory cache update failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}

func (s *Service) with(opts ...request.Option) []request.Option {
	return append(slices.Clone(s.base), opts...)
}
