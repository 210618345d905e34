package internal

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/browo-hrthis/fetchkit/internal/directory"
	"github.com/browo-hrthis/fetchkit/pkg/cache"
	"github.com/browo-hrthis/fetchkit/pkg/hrapi"
)

type employeeHandler struct {
	dir *directory.Service
}

const maxPageSize = 100

// pageView is the JSON form of one directory page.
type pageView struct {
	Items   []hrapi.Employee `json:"items"`
	Page    int              `json:"page"`
	Size    int              `json:"size"`
	Total   int              `json:"total"`
	HasMore bool             `json:"has_more"`
}

func (h *employeeHandler) list(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	if q.Has("page") || q.Has("size") {
		return h.page(w, r)
	}

	list, err := h.dir.List(r.Context())
	if err != nil {
		// A failed refresh still answers with the list held from before.
		st := h.dir.ListState()
		if !st.HasData {
			return err
		}
		w.Header().Set("Warning", `110 - "Response is Stale"`)
		list = st.Data
	}
	return writeJSON(w, http.StatusOK, list)
}

// page serves ?page=N&size=M. Either parameter may be omitted.
func (h *employeeHandler) page(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	n, err := positiveParam(q.Get("page"), 1)
	if err != nil {
		return ErrBadRequest("invalid page parameter", WithDetail(q.Get("page")), WithError(err))
	}
	size, err := positiveParam(q.Get("size"), 0)
	if err != nil || size > maxPageSize {
		return ErrBadRequest("invalid size parameter", WithDetail("size must be between 1 and "+strconv.Itoa(maxPageSize)))
	}

	p, err := h.dir.Page(r.Context(), n, size)
	if err != nil {
		return err
	}
	if size == 0 {
		size = h.dir.PageSize()
	}
	items := p.Items
	if items == nil {
		items = []hrapi.Employee{}
	}
	return writeJSON(w, http.StatusOK, pageView{
		Items:   items,
		Page:    n,
		Size:    size,
		Total:   p.Total,
		HasMore: n*size < p.Total,
	})
}

// refresh reloads every loaded controller. ?mode=revalidate only reaches
// the API for stale or missing entries.
func (h *employeeHandler) refresh(w http.ResponseWriter, r *http.Request) error {
	var err error
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "refetch":
		err = h.dir.Refresh(r.Context())
	case "revalidate":
		err = h.dir.Revalidate(r.Context())
	default:
		return ErrBadRequest("invalid mode parameter", WithDetail(mode))
	}
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func positiveParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

func (h *employeeHandler) get(w http.ResponseWriter, r *http.Request) error {
	emp, err := h.dir.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, emp)
}

func (h *employeeHandler) create(w http.ResponseWriter, r *http.Request) error {
	var in hrapi.EmployeeCreate
	if err := decodeJSON(r, &in); err != nil {
		return err
	}

	var missing []string
	for field, v := range map[string]string{"email": in.Email, "first_name": in.FirstName, "last_name": in.LastName} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return ErrBadRequest("missing required fields", WithDetail(strings.Join(missing, ", ")))
	}

	emp, err := h.dir.Create(r.Context(), in)
	if err != nil {
		return err
	}
	w.Header().Set("Location", "/employees/"+emp.ID)
	return writeJSON(w, http.StatusCreated, emp)
}

func (h *employeeHandler) update(w http.ResponseWriter, r *http.Request) error {
	var in hrapi.EmployeeUpdate
	if err := decodeJSON(r, &in); err != nil {
		return err
	}

	emp, err := h.dir.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, emp)
}

func (h *employeeHandler) delete(w http.ResponseWriter, r *http.Request) error {
	if err := h.dir.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type cacheHandler struct {
	store cache.Cache[any]
	now   func() time.Time
}

// entryView is the JSON form of a cache entry.
type entryView struct {
	Data      any        `json:"data"`
	Timestamp time.Time  `json:"timestamp"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Key       string     `json:"key"`
	TTL       string     `json:"ttl"`
	Age       string     `json:"age"`
	Stale     bool       `json:"stale"`
}

func (h *cacheHandler) entry(w http.ResponseWriter, r *http.Request) error {
	key := chi.URLParam(r, "key")
	e, err := h.store.Entry(r.Context(), key)
	if errors.Is(err, cache.ErrNotFound) {
		return ErrNotFound("cache entry not found", WithDetail(key), WithError(err))
	}
	if err != nil {
		return err
	}

	now := h.now()
	view := entryView{
		Data:      e.Data,
		Timestamp: e.Timestamp,
		Key:       key,
		TTL:       e.TTL.String(),
		Age:       e.Age(now).Round(time.Millisecond).String(),
		Stale:     e.Stale(now),
	}
	if exp := e.ExpiresAt(); !exp.IsZero() {
		view.ExpiresAt = &exp
	}
	return writeJSON(w, http.StatusOK, view)
}

// invalidate removes every entry whose key contains ?match=. An empty
// match clears the cache; a missing one is rejected.
func (h *cacheHandler) invalidate(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	if !q.Has("match") {
		return ErrBadRequest("missing match parameter")
	}

	n, err := h.store.Invalidate(r.Context(), q.Get("match"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}
