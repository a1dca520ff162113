package fetch

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAborted matches every *AbortError.
	ErrAborted = errors.New("aborted")
	// ErrTimeout is the cancellation cause of an expired per-request timeout.
	ErrTimeout = errors.New("timeout")
)

// AbortError reports that the caller's context was cancelled. Cause is the
// value of context.Cause at the time of cancellation.
type AbortError struct {
	Cause error
}

func (e *AbortError) Error() string {
	if e.Cause == nil {
		return "aborted"
	}
	return "aborted: " + e.Cause.Error()
}

func (e *AbortError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrAborted) true for any AbortError.
func (e *AbortError) Is(target error) bool { return target == ErrAborted }

// CtxErr returns an *AbortError when ctx is done, nil otherwise.
func CtxErr(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return &AbortError{Cause: context.Cause(ctx)}
}

// IsAbort reports whether err stems from cancellation of the caller's context.
func IsAbort(err error) bool {
	return errors.Is(err, ErrAborted)
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, e.Status)
}

// MaxBytesError is returned when a body exceeds the configured limit and
// truncation was not allowed.
type MaxBytesError struct {
	Limit int64
}

func (e *MaxBytesError) Error() string {
	return fmt.Sprintf("response exceeded maxBytes (%d)", e.Limit)
}

// classify maps a transport or read error to an abort, a timeout, or the
// original error.
func classify(parent, reqCtx context.Context, err error) error {
	if aerr := CtxErr(parent); aerr != nil {
		return aerr
	}
	if errors.Is(context.Cause(reqCtx), ErrTimeout) {
		return fmt.Errorf("request timed out: %w", ErrTimeout)
	}
	return err
}
