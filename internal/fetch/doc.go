// Package fetch performs the bounded byte-range reads that every artwork
// extractor and sidecar probe is built on.
//
// Bytes issues a GET with an optional Range header, composes the caller's
// context with a per-request timeout and reads at most MaxBytes of the body.
// Failures are classified so that callers can tell a cancelled operation
// (IsAbort) apart from an ordinary miss: a parent cancellation is returned as
// an *AbortError carrying the cancellation cause, while an expired per-request
// timeout wraps ErrTimeout and is treated like any other failed attempt.
//
// NewClient builds the shared *http.Client used by the engines: bounded retry
// for idempotent requests, per-host rate limiting and a file:// protocol backed
// by filesystem.RetryDir.
package fetch
