package directory_test

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"github.com/browo-hrthis/fetchkit/internal/directory"
	"github.com/browo-hrthis/fetchkit/pkg/cache"
	"github.com/browo-hrthis/fetchkit/pkg/hrapi"
	"github.com/browo-hrthis/fetchkit/pkg/request"
)

type fakeAPI struct {
	employees []hrapi.Employee
	mu        sync.Mutex

	listCalls atomic.Int32
	getCalls  atomic.Int32
	pageCalls atomic.Int32
	// listFailures fails that many list calls with a 503.
	listFailures atomic.Int32
}

func newFakeAPI(n int) *fakeAPI {
	f := &fakeAPI{}
	faker := gofakeit.New(7)
	for i := 1; i <= n; i++ {
		first, last := faker.FirstName(), faker.LastName()
		f.employees = append(f.employees, hrapi.Employee{
			ID:        strconv.Itoa(i),
			Email:     faker.Email(),
			FirstName: first,
			LastName:  last,
			FullName:  first + " " + last,
			Status:    hrapi.StatusActive,
			IsActive:  true,
		})
	}
	return f
}

func (f *fakeAPI) ListEmployees(context.Context) (hrapi.EmployeeList, error) {
	f.listCalls.Add(1)
	if f.listFailures.Add(-1) >= 0 {
		return hrapi.EmployeeList{}, &hrapi.APIError{StatusCode: http.StatusServiceUnavailable}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return hrapi.EmployeeList{Employees: slices.Clone(f.employees), Total: len(f.employees)}, nil
}

func (f *fakeAPI) ListEmployeesPage(_ context.Context, page, size int) (request.Page[hrapi.Employee], error) {
	f.pageCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	start := min((page-1)*size, len(f.employees))
	return request.Page[hrapi.Employee]{
		Items: slices.Clone(f.employees[start:min(start+size, len(f.employees))]),
		Total: len(f.employees),
	}, nil
}

func (f *fakeAPI) GetEmployee(_ context.Context, id string) (hrapi.Employee, error) {
	f.getCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.employees {
		if e.ID == id {
			return e, nil
		}
	}
	return hrapi.Employee{}, &hrapi.APIError{StatusCode: http.StatusNotFound, Detail: "Employee not found"}
}

func (f *fakeAPI) CreateEmployee(_ context.Context, in hrapi.EmployeeCreate) (hrapi.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := hrapi.Employee{
		ID:        strconv.Itoa(len(f.employees) + 1000),
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		FullName:  in.FirstName + " " + in.LastName,
		Status:    hrapi.StatusActive,
		IsActive:  true,
	}
	f.employees = append(f.employees, e)
	return e, nil
}

func (f *fakeAPI) UpdateEmployee(_ context.Context, id string, in hrapi.EmployeeUpdate) (hrapi.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.employees {
		if e.ID == id {
			f.employees[i] = in.Apply(e)
			return f.employees[i], nil
		}
	}
	return hrapi.Employee{}, &hrapi.APIError{StatusCode: http.StatusNotFound}
}

func (f *fakeAPI) DeleteEmployee(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.employees)
	f.employees = slices.DeleteFunc(f.employees, func(e hrapi.Employee) bool { return e.ID == id })
	if len(f.employees) == n {
		return &hrapi.APIError{StatusCode: http.StatusNotFound}
	}
	return nil
}

func newService(t *testing.T, api *fakeAPI, opts ...directory.Option) (*directory.Service, *cache.Memory[any]) {
	t.Helper()

	store := cache.NewMemory[any]()
	opts = append([]directory.Option{directory.WithRetryDelay(time.Millisecond)}, opts...)
	svc := directory.New(api, store, opts...)
	t.Cleanup(func() {
		_ = svc.Close()
		_ = store.Close()
	})

	return svc, store
}

// --- Reads ---

func TestService_Read(t *testing.T) {
	t.Parallel()

	t.Run("list is cached", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(5)
		svc, _ := newService(t, api)
		ctx := context.Background()

		first, err := svc.List(ctx)
		require.NoError(t, err)
		second, err := svc.List(ctx)
		require.NoError(t, err)

		require.Equal(t, first, second)
		require.Equal(t, 5, second.Total)
		require.Equal(t, int32(1), api.listCalls.Load())
		require.False(t, svc.IsStale(ctx, directory.ListKey))
	})

	t.Run("concurrent readers share one fetch", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(4)
		svc, _ := newService(t, api)

		var wg sync.WaitGroup
		errs := make([]error, 10)
		for i := range errs {
			wg.Go(func() {
				_, errs[i] = svc.List(context.Background())
			})
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		require.Equal(t, int32(1), api.listCalls.Load())
	})

	t.Run("transient failures are retried", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(2)
		api.listFailures.Store(2)
		svc, _ := newService(t, api)

		list, err := svc.List(context.Background())
		require.NoError(t, err)
		require.Len(t, list.Employees, 2)
		require.Equal(t, int32(3), api.listCalls.Load())
		require.Equal(t, 2, svc.ListState().RetryCount)
	})

	t.Run("employee is cached per id", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(3)
		svc, store := newService(t, api)
		ctx := context.Background()

		for range 3 {
			emp, err := svc.Get(ctx, "2")
			require.NoError(t, err)
			require.Equal(t, "2", emp.ID)
		}
		require.Equal(t, int32(1), api.getCalls.Load())

		entry, err := store.Entry(ctx, directory.EmployeeKey("2"))
		require.NoError(t, err)
		require.IsType(t, hrapi.Employee{}, entry.Data)
	})

	t.Run("missing employee is not retried", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(1)
		svc, _ := newService(t, api)

		_, err := svc.Get(context.Background(), "404")
		require.ErrorIs(t, err, hrapi.ErrNotFound)
		require.Equal(t, int32(1), api.getCalls.Load())

		_, err = svc.Get(context.Background(), "")
		require.ErrorIs(t, err, hrapi.ErrInvalidID)
	})

	t.Run("pages accumulate and share the cache", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(45)
		svc, store := newService(t, api)
		ctx := context.Background()

		pages := svc.Pages(10)
		t.Cleanup(func() { _ = pages.Close() })

		for range 3 {
			_, err := pages.LoadMore(ctx)
			require.NoError(t, err)
		}
		st := pages.State()
		require.Len(t, st.Items, 30)
		require.True(t, st.HasMore)

		_, err := store.Get(ctx, "employees:page=3:size=10")
		require.NoError(t, err)

		again := svc.Pages(10)
		t.Cleanup(func() { _ = again.Close() })
		_, err = again.LoadMore(ctx)
		require.NoError(t, err)
		require.Equal(t, int32(3), api.pageCalls.Load())
	})

	t.Run("page shares one loader per size", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(45)
		svc, _ := newService(t, api)
		ctx := context.Background()

		p, err := svc.Page(ctx, 3, 10)
		require.NoError(t, err)
		require.Len(t, p.Items, 10)
		require.Equal(t, 45, p.Total)
		require.Equal(t, int32(3), api.pageCalls.Load())

		p, err = svc.Page(ctx, 1, 10)
		require.NoError(t, err)
		require.Len(t, p.Items, 10)
		require.Equal(t, int32(3), api.pageCalls.Load())
		require.Contains(t, svc.States(), directory.PagerKey(10))

		p, err = svc.Page(ctx, 9, 10)
		require.NoError(t, err)
		require.Empty(t, p.Items)
		require.Equal(t, int32(5), api.pageCalls.Load())

		// Refresh reaches the loader and reloads its first page.
		require.NoError(t, svc.Refresh(ctx))
		require.Equal(t, int32(6), api.pageCalls.Load())
	})
}

// --- Writes ---

func TestService_Write(t *testing.T) {
	t.Parallel()

	t.Run("create appends to loaded list and seeds the entry", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(2)
		svc, _ := newService(t, api)
		ctx := context.Background()

		_, err := svc.List(ctx)
		require.NoError(t, err)

		created, err := svc.Create(ctx, hrapi.EmployeeCreate{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"})
		require.NoError(t, err)

		list, err := svc.List(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, list.Total)
		require.Equal(t, created, list.Employees[2])
		require.Equal(t, int32(1), api.listCalls.Load())

		got, err := svc.Get(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, "Ada Lovelace", got.FullName)
		require.Zero(t, api.getCalls.Load())
	})

	t.Run("update refreshes the entry and the list", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(3)
		svc, _ := newService(t, api)
		ctx := context.Background()

		_, err := svc.List(ctx)
		require.NoError(t, err)
		_, err = svc.Get(ctx, "1")
		require.NoError(t, err)

		status := hrapi.StatusInactive
		_, err = svc.Update(ctx, "1", hrapi.EmployeeUpdate{Status: &status})
		require.NoError(t, err)

		got, err := svc.Get(ctx, "1")
		require.NoError(t, err)
		require.False(t, got.IsActive)
		require.Equal(t, int32(1), api.getCalls.Load())

		list, err := svc.List(ctx)
		require.NoError(t, err)
		require.False(t, list.Employees[0].IsActive)
	})

	t.Run("delete removes the employee everywhere", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(3)
		svc, store := newService(t, api)
		ctx := context.Background()

		_, err := svc.List(ctx)
		require.NoError(t, err)
		_, err = svc.Get(ctx, "2")
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, "2"))

		list, err := svc.List(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, list.Total)
		for _, e := range list.Employees {
			require.NotEqual(t, "2", e.ID)
		}

		_, err = store.Get(ctx, directory.EmployeeKey("2"))
		require.ErrorIs(t, err, cache.ErrNotFound)

		_, err = svc.Get(ctx, "2")
		require.ErrorIs(t, err, hrapi.ErrNotFound)
		require.ErrorIs(t, svc.Delete(ctx, "2"), hrapi.ErrNotFound)
	})
}

// --- Maintenance ---

func TestService_Maintenance(t *testing.T) {
	t.Parallel()

	t.Run("refresh refetches loaded controllers", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(2)
		svc, _ := newService(t, api)
		ctx := context.Background()

		_, err := svc.List(ctx)
		require.NoError(t, err)
		_, err = svc.Get(ctx, "1")
		require.NoError(t, err)

		require.NoError(t, svc.Revalidate(ctx))
		require.Equal(t, int32(1), api.listCalls.Load())

		require.NoError(t, svc.Refresh(ctx))
		require.Equal(t, int32(2), api.listCalls.Load())
		require.Equal(t, int32(2), api.getCalls.Load())

		states := svc.States()
		require.Contains(t, states, directory.ListKey)
		require.Contains(t, states, directory.EmployeeKey("1"))
	})

	t.Run("invalidate by substring", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(3)
		svc, _ := newService(t, api)
		ctx := context.Background()

		_, err := svc.List(ctx)
		require.NoError(t, err)
		for _, id := range []string{"1", "2"} {
			_, err := svc.Get(ctx, id)
			require.NoError(t, err)
		}

		n, err := svc.Invalidate(ctx, "employee:")
		require.NoError(t, err)
		require.Equal(t, 2, n)

		n, err = svc.Invalidate(ctx, "employee:")
		require.NoError(t, err)
		require.Zero(t, n)

		_, err = svc.Entry(ctx, directory.ListKey)
		require.NoError(t, err)
	})

	t.Run("start loads the list", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(1)
		svc, _ := newService(t, api)

		require.NoError(t, svc.Start(context.Background()))
		require.True(t, svc.ListState().HasData)
		require.Equal(t, int32(1), api.listCalls.Load())
	})
}
