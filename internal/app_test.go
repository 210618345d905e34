package internal_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/browo-hrthis/fetchkit/internal"
	"github.com/browo-hrthis/fetchkit/internal/directory"
	"github.com/browo-hrthis/fetchkit/middlewares"
	"github.com/browo-hrthis/fetchkit/pkg/cache"
	"github.com/browo-hrthis/fetchkit/pkg/hrapi"
	"github.com/browo-hrthis/fetchkit/pkg/request"
)

// memoryAPI is an in-memory HR backend.
type memoryAPI struct {
	employees []hrapi.Employee
	mu        sync.Mutex
	listCalls atomic.Int32
	pageCalls atomic.Int32
	down      atomic.Bool
}

func newMemoryAPI(n int) *memoryAPI {
	api := &memoryAPI{}
	faker := gofakeit.New(11)
	for i := 1; i <= n; i++ {
		api.employees = append(api.employees, hrapi.Employee{
			ID:        strconv.Itoa(i),
			Email:     faker.Email(),
			FirstName: faker.FirstName(),
			LastName:  faker.LastName(),
			Status:    hrapi.StatusActive,
			IsActive:  true,
		})
	}
	return api
}

var errDown = &hrapi.APIError{StatusCode: http.StatusServiceUnavailable, Detail: "maintenance"}

func (m *memoryAPI) ListEmployees(context.Context) (hrapi.EmployeeList, error) {
	m.listCalls.Add(1)
	if m.down.Load() {
		return hrapi.EmployeeList{}, errDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return hrapi.EmployeeList{Employees: slices.Clone(m.employees), Total: len(m.employees)}, nil
}

func (m *memoryAPI) ListEmployeesPage(_ context.Context, page, size int) (request.Page[hrapi.Employee], error) {
	m.pageCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	start := min((page-1)*size, len(m.employees))
	return request.Page[hrapi.Employee]{
		Items: slices.Clone(m.employees[start:min(start+size, len(m.employees))]),
		Total: len(m.employees),
	}, nil
}

func (m *memoryAPI) GetEmployee(_ context.Context, id string) (hrapi.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.employees {
		if e.ID == id {
			return e, nil
		}
	}
	return hrapi.Employee{}, &hrapi.APIError{StatusCode: http.StatusNotFound, Detail: "Employee not found"}
}

func (m *memoryAPI) CreateEmployee(_ context.Context, in hrapi.EmployeeCreate) (hrapi.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.HasSuffix(in.Email, "@taken.test") {
		return hrapi.Employee{}, &hrapi.APIError{StatusCode: http.StatusConflict, Detail: "email already registered"}
	}
	e := hrapi.Employee{
		ID:        strconv.Itoa(100 + len(m.employees)),
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		FullName:  in.FirstName + " " + in.LastName,
		Status:    hrapi.StatusActive,
		IsActive:  true,
	}
	m.employees = append(m.employees, e)
	return e, nil
}

func (m *memoryAPI) UpdateEmployee(_ context.Context, id string, in hrapi.EmployeeUpdate) (hrapi.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.employees {
		if e.ID == id {
			m.employees[i] = in.Apply(e)
			return m.employees[i], nil
		}
	}
	return hrapi.Employee{}, &hrapi.APIError{StatusCode: http.StatusNotFound}
}

func (m *memoryAPI) DeleteEmployee(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.employees)
	m.employees = slices.DeleteFunc(m.employees, func(e hrapi.Employee) bool { return e.ID == id })
	if len(m.employees) == n {
		return &hrapi.APIError{StatusCode: http.StatusNotFound}
	}
	return nil
}

func newApp(t *testing.T, api *memoryAPI, opts ...internal.Option) (*internal.App, *cache.Memory[any]) {
	t.Helper()

	store := cache.NewMemory[any]()
	dir := directory.New(api, store,
		directory.WithRetries(1),
		directory.WithRetryDelay(time.Millisecond),
	)
	t.Cleanup(func() {
		_ = dir.Close()
		_ = store.Close()
	})

	opts = append([]internal.Option{
		internal.WithCache(store),
		internal.WithDirectory(dir),
		internal.WithMiddleware(middlewares.RequestID(), middlewares.Recover()),
	}, opts...)
	return internal.New(opts...), store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// --- Employees ---

func TestApp_Employees(t *testing.T) {
	t.Parallel()

	t.Run("list is served from cache", func(t *testing.T) {
		t.Parallel()

		api := newMemoryAPI(3)
		app, _ := newApp(t, api)

		for range 2 {
			rec := do(t, app, http.MethodGet, "/employees", "")
			require.Equal(t, http.StatusOK, rec.Code)
			require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

			list := decode[hrapi.EmployeeList](t, rec)
			require.Equal(t, 3, list.Total)
			require.Len(t, list.Employees, 3)
		}
		require.Equal(t, int32(1), api.listCalls.Load())
	})

	t.Run("stale list is served when the backend fails", func(t *testing.T) {
		t.Parallel()

		api := newMemoryAPI(2)
		app, store := newApp(t, api)

		require.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/employees", "").Code)

		_, err := store.Invalidate(context.Background(), directory.ListKey)
		require.NoError(t, err)
		api.down.Store(true)

		rec := do(t, app, http.MethodGet, "/employees", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Header().Get("Warning"), "Stale")
		require.Len(t, decode[hrapi.EmployeeList](t, rec).Employees, 2)
	})

	t.Run("backend failure without data is a 502", func(t *testing.T) {
		t.Parallel()

		api := newMemoryAPI(2)
		api.down.Store(true)
		app, _ := newApp(t, api)

		rec := do(t, app, http.MethodGet, "/employees", "")
		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.Equal(t, int32(2), api.listCalls.Load())
	})

	t.Run("paged list", func(t *testing.T) {
		t.Parallel()

		type page struct {
			Items   []hrapi.Employee `json:"items"`
			Page    int              `json:"page"`
			Size    int              `json:"size"`
			Total   int              `json:"total"`
			HasMore bool             `json:"has_more"`
		}

		api := newMemoryAPI(25)
		app, _ := newApp(t, api)

		rec := do(t, app, http.MethodGet, "/employees?page=2&size=10", "")
		require.Equal(t, http.StatusOK, rec.Code)
		second := decode[page](t, rec)
		require.Len(t, second.Items, 10)
		require.Equal(t, "11", second.Items[0].ID)
		require.Equal(t, 2, second.Page)
		require.Equal(t, 25, second.Total)
		require.True(t, second.HasMore)

		third := decode[page](t, do(t, app, http.MethodGet, "/employees?page=3&size=10", ""))
		require.Len(t, third.Items, 5)
		require.False(t, third.HasMore)

		beyond := decode[page](t, do(t, app, http.MethodGet, "/employees?page=5&size=10", ""))
		require.NotNil(t, beyond.Items)
		require.Empty(t, beyond.Items)
		require.Equal(t, int32(3), api.pageCalls.Load())

		// Accumulated pages answer without the backend.
		decode[page](t, do(t, app, http.MethodGet, "/employees?page=2&size=10", ""))
		require.Equal(t, int32(3), api.pageCalls.Load())

		// A write drops the accumulated pages.
		rec = do(t, app, http.MethodPost, "/employees", `{"email":"ada@example.test","first_name":"Ada","last_name":"Lovelace"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		created := decode[hrapi.Employee](t, rec)

		third = decode[page](t, do(t, app, http.MethodGet, "/employees?page=3&size=10", ""))
		require.Len(t, third.Items, 6)
		require.Equal(t, created.ID, third.Items[5].ID)
		require.Equal(t, 26, third.Total)

		for _, target := range []string{"/employees?page=0", "/employees?page=x", "/employees?size=500"} {
			require.Equal(t, http.StatusBadRequest, do(t, app, http.MethodGet, target, "").Code, target)
		}
	})

	t.Run("get by id", func(t *testing.T) {
		t.Parallel()

		app, _ := newApp(t, newMemoryAPI(3))

		rec := do(t, app, http.MethodGet, "/employees/2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "2", decode[hrapi.Employee](t, rec).ID)

		rec = do(t, app, http.MethodGet, "/employees/99", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "Employee not found")
	})

	t.Run("create", func(t *testing.T) {
		t.Parallel()

		app, _ := newApp(t, newMemoryAPI(1))
		require.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/employees", "").Code)

		rec := do(t, app, http.MethodPost, "/employees", `{"email":"ada@example.test","first_name":"Ada","last_name":"Lovelace"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		created := decode[hrapi.Employee](t, rec)
		require.Equal(t, "/employees/"+created.ID, rec.Header().Get("Location"))

		list := decode[hrapi.EmployeeList](t, do(t, app, http.MethodGet, "/employees", ""))
		require.Equal(t, 2, list.Total)
		require.Equal(t, created.ID, list.Employees[1].ID)
	})

	t.Run("create validates input", func(t *testing.T) {
		t.Parallel()

		app, _ := newApp(t, newMemoryAPI(1))

		rec := do(t, app, http.MethodPost, "/employees", `{"email":"x@example.test"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "first_name, last_name")

		rec = do(t, app, http.MethodPost, "/employees", `{"email":`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, app, http.MethodPost, "/employees", `{"email":"a@taken.test","first_name":"A","last_name":"B"}`)
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Contains(t, rec.Body.String(), "email already registered")
	})

	t.Run("update and delete", func(t *testing.T) {
		t.Parallel()

		app, _ := newApp(t, newMemoryAPI(2))

		rec := do(t, app, http.MethodPatch, "/employees/1", `{"position":"CTO"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "CTO", decode[hrapi.Employee](t, rec).Position)

		rec = do(t, app, http.MethodGet, "/employees/1", "")
		require.Equal(t, "CTO", decode[hrapi.Employee](t, rec).Position)

		require.Equal(t, http.StatusNoContent, do(t, app, http.MethodDelete, "/employees/1", "").Code)
		require.Equal(t, http.StatusNotFound, do(t, app, http.MethodGet, "/employees/1", "").Code)
		require.Equal(t, http.StatusNotFound, do(t, app, http.MethodDelete, "/employees/1", "").Code)
	})
}

// --- Cache ---

func TestApp_Cache(t *testing.T) {
	t.Parallel()

	t.Run("entry reports age and staleness", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		app, _ := newApp(t, newMemoryAPI(2), internal.WithClock(func() time.Time { return now }))
		require.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/employees/1", "").Code)

		now = now.Add(10 * time.Minute)
		rec := do(t, app, http.MethodGet, "/cache/entries/employee:1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var view struct {
			Data  hrapi.Employee `json:"data"`
			Key   string         `json:"key"`
			TTL   string         `json:"ttl"`
			Stale bool           `json:"stale"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		require.Equal(t, "employee:1", view.Key)
		require.Equal(t, "1", view.Data.ID)
		require.Equal(t, "5m0s", view.TTL)
		require.True(t, view.Stale)
	})

	t.Run("refresh reloads loaded controllers", func(t *testing.T) {
		t.Parallel()

		api := newMemoryAPI(2)
		app, _ := newApp(t, api)

		require.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/employees", "").Code)
		require.Equal(t, int32(1), api.listCalls.Load())

		require.Equal(t, http.StatusNoContent, do(t, app, http.MethodPost, "/cache/refresh", "").Code)
		require.Equal(t, int32(2), api.listCalls.Load())

		require.Equal(t, http.StatusNoContent, do(t, app, http.MethodPost, "/cache/refresh?mode=revalidate", "").Code)
		require.Equal(t, int32(2), api.listCalls.Load())

		require.Equal(t, http.StatusBadRequest, do(t, app, http.MethodPost, "/cache/refresh?mode=bogus", "").Code)
	})

	t.Run("missing entry", func(t *testing.T) {
		t.Parallel()

		app, _ := newApp(t, newMemoryAPI(1))
		require.Equal(t, http.StatusNotFound, do(t, app, http.MethodGet, "/cache/entries/nope", "").Code)
	})

	t.Run("invalidate by substring", func(t *testing.T) {
		t.Parallel()

		app, store := newApp(t, newMemoryAPI(3))
		for _, target := range []string{"/employees", "/employees/1", "/employees/2"} {
			require.Equal(t, http.StatusOK, do(t, app, http.MethodGet, target, "").Code)
		}

		rec := do(t, app, http.MethodDelete, "/cache?match=employee:", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"removed":2}`, rec.Body.String())
		require.Equal(t, 1, store.Len())

		require.Equal(t, http.StatusBadRequest, do(t, app, http.MethodDelete, "/cache", "").Code)
	})
}

// --- Ops ---

func TestApp_Ops(t *testing.T) {
	t.Parallel()

	t.Run("health", func(t *testing.T) {
		t.Parallel()

		app, _ := newApp(t, newMemoryAPI(1), internal.WithHealthChecks(
			internal.WithReadinessCheck("hrapi", func(context.Context) error { return errors.New("unreachable") }),
		))

		require.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/health/live", "").Code)
		rec := do(t, app, http.MethodGet, "/health/ready?format=json", "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Contains(t, rec.Body.String(), "unreachable")
	})

	t.Run("metrics", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewRegistry()
		reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "fetchkit_test_total"}))
		app, _ := newApp(t, newMemoryAPI(1), internal.WithRegistry(reg))

		rec := do(t, app, http.MethodGet, "/metrics", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "fetchkit_test_total")
	})

	t.Run("unknown route and method", func(t *testing.T) {
		t.Parallel()

		app, _ := newApp(t, newMemoryAPI(1))
		require.Equal(t, http.StatusNotFound, do(t, app, http.MethodGet, "/nope", "").Code)
		require.Equal(t, http.StatusMethodNotAllowed, do(t, app, http.MethodPut, "/employees/1", "").Code)
	})
}

// --- Run ---

func TestApp_Run(t *testing.T) {
	t.Parallel()

	t.Run("serves until the context ends and runs hooks", func(t *testing.T) {
		t.Parallel()

		api := newMemoryAPI(2)
		var hooks []string
		var mu sync.Mutex
		record := func(name string) func(context.Context) error {
			return func(context.Context) error {
				mu.Lock()
				defer mu.Unlock()
				hooks = append(hooks, name)
				return nil
			}
		}

		app, _ := newApp(t, api, internal.WithShutdownHook(record("tracer")))

		ctx, cancel := context.WithCancel(context.Background())
		addrCh := make(chan net.Addr, 1)
		errCh := make(chan error, 1)
		go func() {
			errCh <- app.Run(ctx,
				internal.Address("127.0.0.1:0"),
				internal.ShutdownTimeout(time.Second),
				internal.ShutdownHook(record("redis")),
				internal.OnReady(func(a net.Addr) { addrCh <- a }),
			)
		}()

		addr := <-addrCh
		// The directory was started before the listener opened.
		require.Equal(t, int32(1), api.listCalls.Load())

		resp, err := http.Get("http://" + addr.String() + "/employees")
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, int32(1), api.listCalls.Load())

		cancel()
		require.NoError(t, <-errCh)

		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, []string{"tracer", "redis"}, hooks)
	})

	t.Run("hook errors are joined", func(t *testing.T) {
		t.Parallel()

		errA, errB := errors.New("a"), errors.New("b")
		app, _ := newApp(t, newMemoryAPI(1),
			internal.WithShutdownHook(func(context.Context) error { return errA }),
			internal.WithShutdownHook(func(context.Context) error { return errB }),
		)

		ctx, cancel := context.WithCancel(context.Background())
		ready := make(chan struct{})
		errCh := make(chan error, 1)
		go func() {
			errCh <- app.Run(ctx, internal.Address("127.0.0.1:0"), internal.OnReady(func(net.Addr) { close(ready) }))
		}()

		<-ready
		cancel()
		err := <-errCh
		require.ErrorIs(t, err, errA)
		require.ErrorIs(t, err, errB)
	})

	t.Run("failed startup hook aborts", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		app, _ := newApp(t, newMemoryAPI(1))

		err := app.Run(context.Background(),
			internal.Address("127.0.0.1:0"),
			internal.StartupHook(func(context.Context) error { return boom }),
		)
		require.ErrorIs(t, err, boom)
	})
}
