package health

import "errors"

var (
	// ErrCheckFailed is reported by Response.Err when a check failed.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout wraps failures caused by the run deadline.
	ErrCheckTimeout = errors.New("health: check timeout")
)
