package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Range is an inclusive byte range. A negative End requests everything from
// Start onwards.
type Range struct {
	Start int64
	End   int64
}

// Header renders the Range request header value.
func (r Range) Header() string {
	if r.End < 0 {
		return fmt.Sprintf("bytes=%d-", r.Start)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// Options bounds a single fetch.
type Options struct {
	Timeout       time.Duration
	MaxBytes      int64
	AllowTruncate bool
	Range         *Range
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, d, ErrTimeout)
}

// Bytes fetches url and returns its body, reading at most opts.MaxBytes.
// A 206 response to a range request is accepted like any other 2xx status.
func Bytes(ctx context.Context, doer Doer, url string, opts Options) ([]byte, error) {
	if err := CtxErr(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if opts.Range != nil {
		req.Header.Set("Range", opts.Range.Header())
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, classify(ctx, reqCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: statusText(resp)}
	}

	if opts.MaxBytes <= 0 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, classify(ctx, reqCtx, err)
		}
		return body, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBytes+1))
	if err != nil {
		return nil, classify(ctx, reqCtx, err)
	}
	if int64(len(body)) > opts.MaxBytes {
		if !opts.AllowTruncate {
			return nil, &MaxBytesError{Limit: opts.MaxBytes}
		}
		body = body[:opts.MaxBytes]
	}
	return body, nil
}

// Probe issues a bodiless request (HEAD, or a GET whose body is discarded)
// and returns the response status and headers. The body is closed before
// returning.
func Probe(ctx context.Context, doer Doer, method, url string, rng *Range, timeout time.Duration) (int, http.Header, error) {
	if err := CtxErr(ctx); err != nil {
		return 0, nil, err
	}

	reqCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, nil)
	if err != nil {
		return 0, nil, err
	}
	if rng != nil {
		req.Header.Set("Range", rng.Header())
	}

	resp, err := doer.Do(req)
	if err != nil {
		return 0, nil, classify(ctx, reqCtx, err)
	}
	resp.Body.Close()
	return resp.StatusCode, resp.Header, nil
}

// Stream opens url for reading with the per-request timeout applied to the
// whole read. The returned closer must be called to release the timeout.
func Stream(ctx context.Context, doer Doer, url string, timeout time.Duration) (io.ReadCloser, error) {
	if err := CtxErr(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := withTimeout(ctx, timeout)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := doer.Do(req)
	if err != nil {
		cancel()
		return nil, classify(ctx, reqCtx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: statusText(resp)}
	}
	return &streamBody{ReadCloser: resp.Body, parent: ctx, reqCtx: reqCtx, cancel: cancel}, nil
}

type streamBody struct {
	io.ReadCloser
	parent, reqCtx context.Context
	cancel         context.CancelFunc
}

func (s *streamBody) Read(p []byte) (int, error) {
	n, err := s.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		err = classify(s.parent, s.reqCtx, err)
	}
	return n, err
}

func (s *streamBody) Close() error {
	err := s.ReadCloser.Close()
	s.cancel()
	return err
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
}
