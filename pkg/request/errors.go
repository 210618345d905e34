package request

import (
	"errors"

	"github.com/browo-hrthis/fetchkit/pkg/retry"
)

var (
	// ErrCancelled is returned when an execution was abandoned: its
	// context was cancelled, a newer execution superseded it, or the
	// controller was reset. It is never stored in State.Err.
	ErrCancelled = retry.ErrCancelled

	// ErrDisabled is returned by Execute while the controller is disabled.
	ErrDisabled = errors.New("request: controller disabled")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("request: controller closed")

	// ErrInvalidSchedule wraps a refetch schedule that failed to parse.
	ErrInvalidSchedule = errors.New("request: invalid refetch schedule")

	// ErrNotRegistered is returned by Group lookups for unknown names.
	ErrNotRegistered = errors.New("request: no controller registered under name")

	// ErrAlreadyRegistered is returned when a Group name is reused.
	ErrAlreadyRegistered = errors.New("request: name already registered")
)
