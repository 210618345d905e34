package hrapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/browo-hrthis/fetchkit/pkg/retry"
)

var (
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("hrapi: not found")
	// ErrUnauthorized matches 401 and 403 responses.
	ErrUnauthorized = errors.New("hrapi: unauthorized")
	// ErrDecode wraps malformed response bodies.
	ErrDecode = errors.New("hrapi: decode response")
	// ErrInvalidID is returned for empty employee ids.
	ErrInvalidID = errors.New("hrapi: empty employee id")
)

// APIError is a non-2xx response.
type APIError struct {
	Method     string
	Path       string
	Detail     string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("hrapi: %s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("hrapi: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is lets errors.Is match ErrNotFound and ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// Temporary reports whether repeating the request may succeed:
// 408, 429 and 5xx.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// Retryable marks client errors as permanent for the retry package, so
// a 404 or 422 is reported immediately instead of being retried.
func Retryable(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.Temporary() {
		return retry.Permanent(err)
	}
	if errors.Is(err, ErrDecode) || errors.Is(err, ErrInvalidID) {
		return retry.Permanent(err)
	}
	return err
}

// detail extracts {"detail": ...} bodies. Validation errors carry a list
// of objects with a msg field.
func detail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return string(payload.Detail)
}
