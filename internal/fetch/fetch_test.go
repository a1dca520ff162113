package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestBytesRangeHeader(t *testing.T) {
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	body, err := Bytes(context.Background(), srv.Client(), srv.URL, Options{
		Range:    &Range{Start: 0, End: 9},
		MaxBytes: 10,
	})
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if gotRange != "bytes=0-9" {
		t.Errorf("Expected Range bytes=0-9, got %q", gotRange)
	}
	if string(body) != "0123456789" {
		t.Errorf("Unexpected body %q", body)
	}
}

func TestBytesMaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	_, err := Bytes(context.Background(), srv.Client(), srv.URL, Options{MaxBytes: 10})
	var mbe *MaxBytesError
	if !errors.As(err, &mbe) {
		t.Fatalf("Expected MaxBytesError, got %v", err)
	}
	if err.Error() != "response exceeded maxBytes (10)" {
		t.Errorf("Unexpected message %q", err.Error())
	}

	body, err := Bytes(context.Background(), srv.Client(), srv.URL, Options{MaxBytes: 10, AllowTruncate: true})
	if err != nil {
		t.Fatalf("Expected truncated read, got %v", err)
	}
	if len(body) != 10 {
		t.Errorf("Expected 10 bytes, got %d", len(body))
	}
}

func TestBytesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Bytes(context.Background(), srv.Client(), srv.URL, Options{})
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("Expected HTTPError, got %v", err)
	}
	if he.StatusCode != 404 || err.Error() != "HTTP 404 Not Found" {
		t.Errorf("Unexpected error %q", err.Error())
	}
	if IsAbort(err) {
		t.Error("HTTP errors must not be classified as aborts")
	}
}

func TestBytesTimeoutIsNotAbort(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := Bytes(context.Background(), srv.Client(), srv.URL, Options{Timeout: 20 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if IsAbort(err) {
		t.Error("Timeout should not be classified as abort")
	}
}

func TestBytesParentAbort(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cause := errors.New("race-lost")
	ctx, cancel := context.WithCancelCause(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel(cause)
	}()

	_, err := Bytes(ctx, srv.Client(), srv.URL, Options{Timeout: 5 * time.Second})
	if !IsAbort(err) {
		t.Fatalf("Expected abort, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected abort to carry cause, got %v", err)
	}
}

func TestBytesAlreadyAborted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Bytes(ctx, http.DefaultClient, "http://127.0.0.1:1/", Options{})
	if !IsAbort(err) {
		t.Errorf("Expected abort without network, got %v", err)
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "image/jpeg")
	}))
	defer srv.Close()

	status, header, err := Probe(context.Background(), srv.Client(), http.MethodHead, srv.URL, nil, time.Second)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if status != 200 || header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("Unexpected probe result %d %v", status, header)
	}
}

type failingTransport struct {
	calls atomic.Int32
	fail  int32
}

func (f *failingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := f.calls.Add(1)
	if n <= f.fail {
		return nil, errors.New("connection reset")
	}
	return &http.Response{StatusCode: 200, Body: http.NoBody, Header: http.Header{}, Request: req}, nil
}

func TestTransportRetriesIdempotentRequests(t *testing.T) {
	base := &failingTransport{fail: 2}
	client := &http.Client{Transport: &Transport{Base: base, RetryMax: 2}}

	resp, err := client.Get("http://example.invalid/a.mp3")
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	resp.Body.Close()
	if base.calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", base.calls.Load())
	}
}

func TestTransportDoesNotRetryPost(t *testing.T) {
	base := &failingTransport{fail: 1}
	client := &http.Client{Transport: &Transport{Base: base, RetryMax: 2}}

	_, err := client.Post("http://example.invalid/", "text/plain", strings.NewReader("x"))
	if err == nil {
		t.Fatal("Expected POST failure")
	}
	if base.calls.Load() != 1 {
		t.Errorf("Expected 1 attempt, got %d", base.calls.Load())
	}
}

func TestHostLimiterWaitHonoursContext(t *testing.T) {
	l := NewHostLimiter(0.001, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "a"); err != nil {
		t.Fatalf("First token should be immediate: %v", err)
	}
	if err := l.Wait(ctx, "a"); err == nil {
		t.Error("Expected second wait to fail within the deadline")
	}
	if err := l.Wait(context.Background(), "b"); err != nil {
		t.Errorf("Other hosts have their own bucket: %v", err)
	}
}

func TestClientFileScheme(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.bin"), []byte("abcdefgh"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	client := NewClient(ClientConfig{FileRoot: dir})
	body, err := Bytes(context.Background(), client, "file:///a.bin", Options{Range: &Range{Start: 2, End: 4}})
	if err != nil {
		t.Fatalf("Bytes over file:// failed: %v", err)
	}
	if string(body) != "cde" {
		t.Errorf("Expected ranged body cde, got %q", body)
	}
}
