package fetch

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"media-artwork/internal/filesystem"
	"media-artwork/internal/metrics"
)

const (
	defaultRetryMax = 2
)

// HostLimiter holds one token bucket per host.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewHostLimiter returns a limiter allowing rps requests per second per host.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	h.mu.Lock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.limit, h.burst)
		h.limiters[host] = l
	}
	h.mu.Unlock()
	return l.Wait(ctx)
}

// Transport adds bounded retry of replayable requests and optional per-host
// rate limiting to a base RoundTripper.
type Transport struct {
	Base http.RoundTripper

	// RetryMax is the number of retries after the first attempt.
	RetryMax int

	Limiter *HostLimiter
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	if t.Limiter != nil && req.URL.Host != "" {
		start := time.Now()
		if err := t.Limiter.Wait(req.Context(), req.URL.Host); err != nil {
			return nil, err
		}
		metrics.FetchRateLimitWait.Observe(time.Since(start).Seconds())
	}

	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	retries := t.RetryMax
	if retries < 0 || !canRetry {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			metrics.FetchRetriesTotal.Inc()
		}
		resp, err := t.Base.RoundTrip(req.Clone(req.Context()))
		if err == nil {
			metrics.FetchRequestsTotal.WithLabelValues(req.Method, statusClass(resp.StatusCode)).Inc()
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			break
		}
	}
	metrics.FetchRequestsTotal.WithLabelValues(req.Method, "error").Inc()
	return nil, lastErr
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// ClientConfig configures NewClient.
type ClientConfig struct {
	// Timeout bounds whole requests; per-fetch timeouts are applied by the
	// callers through their contexts.
	Timeout   time.Duration
	RetryMax  int
	RateLimit float64 // requests per second per host, 0 disables
	RateBurst int
	// FileRoot enables the file:// scheme rooted at the given directory.
	FileRoot string
}

// DefaultClientConfig returns the configuration used by the server.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RetryMax:  defaultRetryMax,
		RateBurst: 4,
	}
}

// NewClient builds the HTTP client shared by the artwork and video engines.
func NewClient(cfg ClientConfig) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSHandshakeTimeout = 10 * time.Second
	base.ResponseHeaderTimeout = 15 * time.Second
	if cfg.FileRoot != "" {
		base.RegisterProtocol("file", http.NewFileTransport(filesystem.RetryDir{
			Root:   cfg.FileRoot,
			Config: filesystem.DefaultRetryConfig(),
		}))
	}

	tr := &Transport{Base: base, RetryMax: cfg.RetryMax}
	if cfg.RateLimit > 0 {
		tr.Limiter = NewHostLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	return &http.Client{Transport: tr, Timeout: cfg.Timeout}
}
