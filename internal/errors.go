package internal

import (
	"context"
	"errors"
	"net/http"

	"github.com/browo-hrthis/fetchkit/pkg/cache"
	"github.com/browo-hrthis/fetchkit/pkg/hrapi"
	"github.com/browo-hrthis/fetchkit/pkg/request"
)

// HTTPError is an error with the status and message to render.
type HTTPError struct {
	// Err is the underlying error. It is logged, never rendered.
	Err error

	// Message is the client-facing message.
	Message string

	// Detail is an optional extended description.
	Detail string

	// Code is the HTTP status code.
	Code int
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) StatusCode() int {
	return e.Code
}

func (e *HTTPError) StatusText() string {
	return http.StatusText(e.Code)
}

// HTTPErrorOption configures an HTTPError.
type HTTPErrorOption func(*HTTPError)

// NewHTTPError creates a new HTTPError with the given status code and message.
func NewHTTPError(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	e := &HTTPError{Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func WithDetail(detail string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Detail = detail
	}
}

func WithError(err error) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Err = err
	}
}

// Convenience constructors for common HTTP errors.

func ErrBadRequest(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message, opts...)
}

func ErrNotFound(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusNotFound, message, opts...)
}

func ErrServiceUnavailable(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusServiceUnavailable, message, opts...)
}

// IsHTTPError reports whether err wraps an HTTPError.
func IsHTTPError(err error) bool {
	var he *HTTPError
	return errors.As(err, &he)
}

// AsHTTPError extracts the HTTPError from err. Returns nil if there is none.
func AsHTTPError(err error) *HTTPError {
	var he *HTTPError
	if errors.As(err, &he) {
		return he
	}
	return nil
}

// StatusFor maps an error from the directory stack to an HTTP status.
//
// Upstream client errors such as validation failures keep their status.
// Upstream server failures, auth failures and undecodable bodies become
// 502, since they are the service's problem and not the caller's.
func StatusFor(err error) int {
	if he := AsHTTPError(err); he != nil {
		return he.Code
	}

	var apiErr *hrapi.APIError
	switch {
	case errors.Is(err, hrapi.ErrNotFound), errors.Is(err, cache.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, hrapi.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, hrapi.ErrUnauthorized), errors.Is(err, hrapi.ErrDecode):
		return http.StatusBadGateway
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, request.ErrDisabled), errors.Is(err, request.ErrClosed), errors.Is(err, request.ErrCancelled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
