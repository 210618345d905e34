package retry

import (
	"context"
	"errors"
	"fmt"
)

// Status is the terminal state of a retried call.
type Status int

const (
	// Succeeded means a call returned without error.
	Succeeded Status = iota
	// Cancelled means the call was abandoned on purpose. It is not a failure.
	Cancelled
	// Failed means every permitted call returned an error.
	Failed
)

// String returns the lower-case name of the status.
func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the result of Do.
type Outcome[T any] struct {
	Value T
	// Err is the last call error when Status is Failed, nil otherwise.
	Err    error
	Status Status
	// Attempts is the number of calls made.
	Attempts int
}

// Ok reports whether the outcome succeeded.
func (o Outcome[T]) Ok() bool {
	return o.Status == Succeeded
}

// Do calls fn until it succeeds, is cancelled, or the retry budget is spent.
//
// A call error is a cancellation when it matches context.Canceled or
// ErrCancelled, or when ctx itself was cancelled. Cancellations end the
// loop immediately with a Cancelled outcome and no error. Errors wrapped
// with Permanent, and deadline errors from an expired ctx, fail without
// further retries. Every other error is retried after the backoff delay.
func Do[T any](ctx context.Context, fn func(ctx context.Context) (T, error), opts ...Option) Outcome[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	var last error

	for n := 1; ; n++ {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return interrupted[T](ctx, n-1, last, err)
			}
		}

		v, err := call(ctx, fn)
		if err == nil {
			return Outcome[T]{Value: v, Status: Succeeded, Attempts: n}
		}

		if IsCancellation(ctx, err) {
			return Outcome[T]{Status: Cancelled, Attempts: n}
		}

		last = err
		retry := n <= o.retries && !isPermanent(err) && ctx.Err() == nil

		a := Attempt{Number: n, Err: unwrapPermanent(err), Retry: retry}
		if retry {
			a.Delay = o.backoff(n)
		}
		if o.observer != nil {
			o.observer(a)
		}

		if !retry {
			return Outcome[T]{Err: unwrapPermanent(err), Status: Failed, Attempts: n}
		}

		if err := o.sleep(ctx, a.Delay); err != nil {
			return interrupted[T](ctx, n, last, err)
		}
	}
}

// Run is Do for calls that only return an error. It returns nil on
// success, ErrCancelled on cancellation and the last error on failure.
func Run(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) error {
	out := Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)

	switch out.Status {
	case Succeeded:
		return nil
	case Cancelled:
		return ErrCancelled
	default:
		return out.Err
	}
}

// IsCancellation reports whether err represents intentional abandonment.
func IsCancellation(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
		return true
	}
	return ctx != nil && errors.Is(ctx.Err(), context.Canceled)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do fails immediately and
// reports the unwrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func unwrapPermanent(err error) error {
	if p, ok := err.(*permanentError); ok {
		return p.err
	}
	return err
}

// interrupted builds the outcome when waiting was cut short by ctx or the limiter.
func interrupted[T any](ctx context.Context, attempts int, last, cause error) Outcome[T] {
	if IsCancellation(ctx, cause) {
		return Outcome[T]{Status: Cancelled, Attempts: attempts}
	}
	return Outcome[T]{Err: errors.Join(last, cause), Status: Failed, Attempts: attempts}
}

func call[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn(ctx)
}
