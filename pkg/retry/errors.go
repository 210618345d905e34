package retry

import "errors"

var (
	// ErrCancelled marks an intentionally abandoned call. A function may
	// return it (or context.Canceled) to stop retries without failing.
	ErrCancelled = errors.New("retry: cancelled")

	// ErrPanic wraps a value recovered from a panicking call.
	ErrPanic = errors.New("retry: call panicked")
)
