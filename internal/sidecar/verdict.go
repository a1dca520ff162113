package sidecar

import (
	"context"

	"media-artwork/internal/kvstore"
)

// Verdict is the outcome of one probe.
type Verdict int8

const (
	Indeterminate Verdict = iota - 1
	False
	True
)

func (v Verdict) String() string {
	switch v {
	case True:
		return "true"
	case False:
		return "false"
	}
	return "indeterminate"
}

func (v Verdict) encode() string {
	switch v {
	case True:
		return "1"
	case False:
		return "0"
	}
	return "-1"
}

func decodeVerdict(s string) (Verdict, bool) {
	switch s {
	case "1":
		return True, true
	case "0":
		return False, true
	case "-1":
		return Indeterminate, true
	}
	return Indeterminate, false
}

// Probe method names, also used as cache key components.
const (
	methodHead     = "head"
	methodGetRange = "get-range"
	methodImg      = "img"
)

func anyMethod(m Mode) string { return "any:" + string(m) }

// CacheKey returns the session store key of a verdict.
func CacheKey(prefix, method, url string) string {
	return prefix + ":sidecar:" + method + ":" + url
}

type verdictCache struct {
	store kvstore.Store
}

func (c verdictCache) get(ctx context.Context, cfg Config, method, url string) (Verdict, bool) {
	if !cfg.Cache || c.store == nil {
		return Indeterminate, false
	}
	s, ok, err := c.store.Get(ctx, CacheKey(cfg.prefix(), method, url))
	if err != nil || !ok {
		return Indeterminate, false
	}
	return decodeVerdict(s)
}

// set is a no-op once ctx is done so that cancelled probes leave no trace.
func (c verdictCache) set(ctx context.Context, cfg Config, method, url string, v Verdict) {
	if !cfg.Cache || c.store == nil || ctx.Err() != nil {
		return
	}
	_ = c.store.Set(context.WithoutCancel(ctx), CacheKey(cfg.prefix(), method, url), v.encode())
}
