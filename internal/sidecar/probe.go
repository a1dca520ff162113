package sidecar

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
	"time"

	_ "golang.org/x/image/webp"

	"media-artwork/internal/fetch"
	"media-artwork/internal/metrics"
)

// imageContentType accepts a missing header; servers often omit it for
// static files.
func imageContentType(h http.Header) bool {
	ct := h.Get("Content-Type")
	return ct == "" || strings.HasPrefix(strings.ToLower(ct), "image/")
}

func statusVerdict(status int, h http.Header, ok func(int) bool) Verdict {
	switch {
	case ok(status):
		if !imageContentType(h) {
			return False
		}
		return True
	case status == http.StatusNotFound || status == http.StatusGone:
		return False
	}
	return Indeterminate
}

func is2xx(status int) bool { return status >= 200 && status < 300 }

func isRangeOK(status int) bool { return status == http.StatusOK || status == http.StatusPartialContent }

// probeHTTP runs a HEAD or ranged GET probe. Transport failures and
// timeouts are indeterminate; only cancellation of ctx is an error.
func (r *Resolver) probeHTTP(ctx context.Context, method, url string, cfg Config) (Verdict, error) {
	if v, ok := r.cache.get(ctx, cfg, method, url); ok {
		metrics.SidecarProbesTotal.WithLabelValues(method, "cached").Inc()
		return v, nil
	}

	var (
		httpMethod = http.MethodHead
		rng        *fetch.Range
		accept     = is2xx
	)
	if method == methodGetRange {
		httpMethod = http.MethodGet
		rng = &fetch.Range{Start: 0, End: 0}
		accept = isRangeOK
	}

	start := time.Now()
	status, header, err := fetch.Probe(ctx, r.doer, httpMethod, url, rng, cfg.Timeout)
	r.observe(cfg, method, url, time.Since(start))
	v := Indeterminate
	if err != nil {
		if fetch.IsAbort(err) {
			return Indeterminate, err
		}
		r.log.Debugf("%s probe of %s failed: %v", method, url, err)
	} else {
		v = statusVerdict(status, header, accept)
	}
	metrics.SidecarProbesTotal.WithLabelValues(method, v.String()).Inc()
	return v, nil
}

// probeImage downloads and decodes the image header. Any failure, timeouts
// included, is a negative verdict.
func (r *Resolver) probeImage(ctx context.Context, url string, cfg Config) (Verdict, error) {
	if v, ok := r.cache.get(ctx, cfg, methodImg, url); ok {
		metrics.SidecarProbesTotal.WithLabelValues(methodImg, "cached").Inc()
		if v == True {
			return True, nil
		}
		return False, nil
	}

	start := time.Now()
	v, err := r.decodeProbe(ctx, url, cfg)
	r.observe(cfg, methodImg, url, time.Since(start))
	if err != nil {
		return Indeterminate, err
	}
	metrics.SidecarProbesTotal.WithLabelValues(methodImg, v.String()).Inc()
	r.cache.set(ctx, cfg, methodImg, url, v)
	return v, nil
}

func (r *Resolver) decodeProbe(ctx context.Context, url string, cfg Config) (Verdict, error) {
	body, err := fetch.Stream(ctx, r.doer, url, cfg.Timeout)
	if err != nil {
		if fetch.IsAbort(err) {
			return Indeterminate, err
		}
		return False, nil
	}
	defer body.Close()

	if _, _, err := image.DecodeConfig(body); err != nil {
		if aerr := fetch.CtxErr(ctx); aerr != nil {
			return Indeterminate, aerr
		}
		r.log.Debugf("img probe of %s failed: %v", url, err)
		return False, nil
	}
	return True, nil
}

func (r *Resolver) observe(cfg Config, method, url string, d time.Duration) {
	if cfg.OnProbe != nil {
		cfg.OnProbe(method, url, d)
	}
}
