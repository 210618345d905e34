package hrapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"github.com/browo-hrthis/fetchkit/pkg/hrapi"
	"github.com/browo-hrthis/fetchkit/pkg/retry"
)

// fakeBackend is an in-memory employees API.
type fakeBackend struct {
	employees []map[string]any
	mu        sync.Mutex
	nextID    int
	ignoreQ   bool
}

func newFakeBackend(t *testing.T, n int) (*fakeBackend, *hrapi.Client) {
	t.Helper()

	fb := &fakeBackend{nextID: 1}
	faker := gofakeit.New(42)
	for range n {
		fb.employees = append(fb.employees, map[string]any{
			"id":         fb.nextID,
			"email":      faker.Email(),
			"first_name": faker.FirstName(),
			"last_name":  faker.LastName(),
			"position":   faker.JobTitle(),
			"status":     "active",
		})
		fb.nextID++
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/employees/", fb.list)
	mux.HandleFunc("POST /api/employees/", fb.create)
	mux.HandleFunc("GET /api/employees/{id}", fb.get)
	mux.HandleFunc("PATCH /api/employees/{id}", fb.update)
	mux.HandleFunc("DELETE /api/employees/{id}", fb.remove)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Not authenticated"}`)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := hrapi.New(srv.URL, hrapi.WithToken("secret"))
	require.NoError(t, err)

	return fb, c
}

func (fb *fakeBackend) list(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	items := fb.employees
	if !fb.ignoreQ {
		if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
			size, _ := strconv.Atoi(r.URL.Query().Get("size"))
			start := min((page-1)*size, len(items))
			items = items[start:min(start+size, len(items))]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"employees": items, "total": len(fb.employees)})
}

func (fb *fakeBackend) find(id string) (int, bool) {
	for i, e := range fb.employees {
		if strconv.Itoa(e["id"].(int)) == id {
			return i, true
		}
	}
	return 0, false
}

func (fb *fakeBackend) get(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	i, ok := fb.find(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Employee not found"})
		return
	}
	writeJSON(w, http.StatusOK, fb.employees[i])
}

func (fb *fakeBackend) create(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	var in map[string]any
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in["email"] == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "email required"}}})
		return
	}
	in["id"] = fb.nextID
	fb.nextID++
	fb.employees = append(fb.employees, in)
	writeJSON(w, http.StatusCreated, in)
}

func (fb *fakeBackend) update(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	i, ok := fb.find(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Employee not found"})
		return
	}
	var in map[string]any
	_ = json.NewDecoder(r.Body).Decode(&in)
	for k, v := range in {
		fb.employees[i][k] = v
	}
	writeJSON(w, http.StatusOK, fb.employees[i])
}

func (fb *fakeBackend) remove(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	i, ok := fb.find(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Employee not found"})
		return
	}
	fb.employees = append(fb.employees[:i], fb.employees[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ptr[T any](v T) *T { return &v }

// --- Reads ---

func TestClient_Read(t *testing.T) {
	t.Parallel()

	t.Run("list normalises employees", func(t *testing.T) {
		t.Parallel()

		_, c := newFakeBackend(t, 3)

		list, err := c.ListEmployees(context.Background())
		require.NoError(t, err)
		require.Equal(t, 3, list.Total)
		require.Len(t, list.Employees, 3)

		e := list.Employees[0]
		require.Equal(t, "1", e.ID)
		require.Equal(t, e.FirstName+" "+e.LastName, e.FullName)
		require.True(t, e.IsActive)
	})

	t.Run("pages", func(t *testing.T) {
		t.Parallel()

		_, c := newFakeBackend(t, 25)

		page, err := c.ListEmployeesPage(context.Background(), 3, 10)
		require.NoError(t, err)
		require.Equal(t, 25, page.Total)
		require.Len(t, page.Items, 5)
		require.Equal(t, "21", page.Items[0].ID)
	})

	t.Run("pages are sliced when the backend ignores paging", func(t *testing.T) {
		t.Parallel()

		fb, c := newFakeBackend(t, 25)
		fb.ignoreQ = true

		page, err := c.ListEmployeesPage(context.Background(), 2, 10)
		require.NoError(t, err)
		require.Len(t, page.Items, 10)
		require.Equal(t, "11", page.Items[0].ID)
	})

	t.Run("missing employee matches ErrNotFound", func(t *testing.T) {
		t.Parallel()

		_, c := newFakeBackend(t, 1)

		_, err := c.GetEmployee(context.Background(), "99")
		require.ErrorIs(t, err, hrapi.ErrNotFound)

		var apiErr *hrapi.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		require.Equal(t, "Employee not found", apiErr.Detail)
	})

	t.Run("empty id", func(t *testing.T) {
		t.Parallel()

		_, c := newFakeBackend(t, 1)
		_, err := c.GetEmployee(context.Background(), " ")
		require.ErrorIs(t, err, hrapi.ErrInvalidID)
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
		}))
		t.Cleanup(srv.Close)

		c, err := hrapi.New(srv.URL)
		require.NoError(t, err)
		require.ErrorIs(t, c.Ping(context.Background()), hrapi.ErrUnauthorized)
	})
}

// --- Writes ---

func TestClient_Write(t *testing.T) {
	t.Parallel()

	t.Run("create update delete", func(t *testing.T) {
		t.Parallel()

		_, c := newFakeBackend(t, 0)
		ctx := context.Background()

		created, err := c.CreateEmployee(ctx, hrapi.EmployeeCreate{
			Email:     gofakeit.Email(),
			FirstName: "Ada",
			LastName:  "Lovelace",
		})
		require.NoError(t, err)
		require.Equal(t, "Ada Lovelace", created.FullName)

		updated, err := c.UpdateEmployee(ctx, created.ID, hrapi.EmployeeUpdate{Status: ptr("terminated")})
		require.NoError(t, err)
		require.Equal(t, hrapi.StatusTerminated, updated.Status)
		require.False(t, updated.IsActive)

		require.NoError(t, c.DeleteEmployee(ctx, created.ID))
		require.ErrorIs(t, c.DeleteEmployee(ctx, created.ID), hrapi.ErrNotFound)
	})

	t.Run("validation detail list", func(t *testing.T) {
		t.Parallel()

		_, c := newFakeBackend(t, 0)

		_, err := c.CreateEmployee(context.Background(), hrapi.EmployeeCreate{})
		var apiErr *hrapi.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
		require.Equal(t, "email required", apiErr.Detail)
	})
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	notFound := &hrapi.APIError{StatusCode: http.StatusNotFound}
	unavailable := &hrapi.APIError{StatusCode: http.StatusServiceUnavailable}
	transport := errors.New("connection reset")

	var calls int
	out := retry.Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, hrapi.Retryable(notFound)
	}, retry.WithRetries(3))
	require.Equal(t, 1, calls)
	require.ErrorIs(t, out.Err, hrapi.ErrNotFound)

	require.Equal(t, unavailable, hrapi.Retryable(unavailable))
	require.Equal(t, transport, hrapi.Retryable(transport))
	require.Nil(t, hrapi.Retryable(nil))
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	t.Parallel()

	_, err := hrapi.New("/api")
	require.Error(t, err)
}
