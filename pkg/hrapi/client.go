package hrapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/browo-hrthis/fetchkit/pkg/request"
)

const (
	employeesPath  = "/api/employees/"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10
)

// Client talks to the HRthis employees API.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
	base      *url.URL
	token     string
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default client with a 10 second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables it.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
		}
	}
}

// WithLogger logs each request at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for baseURL, e.g. "https://hr.example.com".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("hrapi: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("hrapi: base url %q must be absolute", baseURL)
	}

	c := &Client{
		base:      u,
		http:      &http.Client{Timeout: defaultTimeout},
		logger:    slog.New(slog.DiscardHandler),
		userAgent: "fetchkit",
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// ListEmployees returns every employee.
func (c *Client) ListEmployees(ctx context.Context) (EmployeeList, error) {
	var out EmployeeList
	err := c.do(ctx, http.MethodGet, employeesPath, nil, nil, &out, http.StatusOK)
	return out, err
}

// ListEmployeesPage returns one 1-based page. Backends that ignore the
// paging parameters are sliced on the client.
func (c *Client) ListEmployeesPage(ctx context.Context, page, size int) (request.Page[Employee], error) {
	page, size = max(page, 1), max(size, 1)

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var out EmployeeList
	if err := c.do(ctx, http.MethodGet, employeesPath, q, nil, &out, http.StatusOK); err != nil {
		return request.Page[Employee]{}, err
	}

	items := out.Employees
	if len(items) > size {
		start := min((page-1)*size, len(items))
		items = items[start:min(start+size, len(items))]
	}

	return request.Page[Employee]{Items: items, Total: out.Total}, nil
}

// GetEmployee returns one employee. A missing id matches ErrNotFound.
func (c *Client) GetEmployee(ctx context.Context, id string) (Employee, error) {
	var out Employee
	path, err := employeePath(id)
	if err != nil {
		return out, err
	}
	err = c.do(ctx, http.MethodGet, path, nil, nil, &out, http.StatusOK)
	return out, err
}

// CreateEmployee creates an employee and returns the stored record.
func (c *Client) CreateEmployee(ctx context.Context, in EmployeeCreate) (Employee, error) {
	var out Employee
	err := c.do(ctx, http.MethodPost, employeesPath, nil, in, &out, http.StatusCreated, http.StatusOK)
	return out, err
}

// UpdateEmployee applies a partial update.
func (c *Client) UpdateEmployee(ctx context.Context, id string, in EmployeeUpdate) (Employee, error) {
	var out Employee
	path, err := employeePath(id)
	if err != nil {
		return out, err
	}
	err = c.do(ctx, http.MethodPatch, path, nil, in, &out, http.StatusOK)
	return out, err
}

// DeleteEmployee removes an employee. The backend soft-deletes.
func (c *Client) DeleteEmployee(ctx context.Context, id string) error {
	path, err := employeePath(id)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil, http.StatusNoContent, http.StatusOK)
}

// Ping checks that the API answers the list endpoint. It fits
// health.CheckFunc.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("size", "1")
	return c.do(ctx, http.MethodGet, employeesPath, q, nil, nil, http.StatusOK)
}

func employeePath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidID
	}
	return "/api/employees/" + url.PathEscape(id), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any, want ...int) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.base.JoinPath(path)
	// JoinPath drops the trailing slash the list endpoint needs.
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("hrapi: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("hrapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "hrapi request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if !slices.Contains(want, resp.StatusCode) {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     detail(raw),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrDecode, method, path, err)
	}
	return nil
}
