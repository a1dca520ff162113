package sidecar

import (
	"context"
	"errors"
	"sort"
	"sync"

	"media-artwork/internal/fetch"
	"media-artwork/internal/kvstore"
	"media-artwork/internal/logging"
)

// ErrSidecarFound is the cancellation cause of probes still running once
// enough sidecars were found.
var ErrSidecarFound = errors.New("sidecar-found")

// Resolver validates sidecar candidates against a session verdict cache.
type Resolver struct {
	doer  fetch.Doer
	cache verdictCache
	log   *logging.Logger
}

// NewResolver returns a Resolver issuing probes through doer. A nil store
// disables caching.
func NewResolver(doer fetch.Doer, store kvstore.Store) *Resolver {
	return &Resolver{doer: doer, cache: verdictCache{store: store}, log: logging.Named("sidecar", false)}
}

// WithLogger returns a copy of r that logs through l.
func (r *Resolver) WithLogger(l *logging.Logger) *Resolver {
	cp := *r
	cp.log = l
	return &cp
}

// CachedVerdict returns the overall verdict recorded for url under the
// configured mode without touching the network.
func (r *Resolver) CachedVerdict(ctx context.Context, url string, cfg Config) (Verdict, bool) {
	return r.cache.get(ctx, cfg, anyMethod(cfg.mode()), url)
}

// Validate reports whether url points at an image. Only cancellation of ctx
// is returned as an error.
func (r *Resolver) Validate(ctx context.Context, url string, cfg Config) (bool, error) {
	if err := fetch.CtxErr(ctx); err != nil {
		return false, err
	}

	mode := cfg.mode()
	anyKey := anyMethod(mode)
	if v, ok := r.cache.get(ctx, cfg, anyKey, url); ok && v != Indeterminate {
		return v == True, nil
	}

	// Indeterminate overall verdicts stay out of the any: key so the next
	// call probes again.
	settle := func(v Verdict) bool {
		if v != Indeterminate {
			r.cache.set(ctx, cfg, anyKey, url, v)
		}
		return v == True
	}

	switch mode {
	case ModeNone:
		return settle(True), nil

	case ModeHead, ModeGetRange:
		method := string(mode)
		v, err := r.probeHTTP(ctx, method, url, cfg)
		if err != nil {
			return false, err
		}
		r.cache.set(ctx, cfg, method, url, v)
		return settle(v), nil

	case ModeImg:
		v, err := r.probeImage(ctx, url, cfg)
		if err != nil {
			return false, err
		}
		return settle(v), nil
	}

	for _, method := range []string{methodHead, methodGetRange} {
		v, err := r.probeHTTP(ctx, method, url, cfg)
		if err != nil {
			return false, err
		}
		r.cache.set(ctx, cfg, method, url, v)
		if v != Indeterminate {
			return settle(v), nil
		}
	}
	v, err := r.probeImage(ctx, url, cfg)
	if err != nil {
		return false, err
	}
	return settle(v), nil
}

// Find validates groups with up to cfg.Concurrency workers. Candidates of one
// group are tried in order and the first valid one counts for the group. Once
// cfg.MaxResults groups have hit, outstanding probes are cancelled with
// ErrSidecarFound. Hits are returned in group order. onErr, when set, sees
// non-abort probe errors; calls are serialized.
func (r *Resolver) Find(ctx context.Context, groups [][]string, cfg Config, onErr func(url string, err error)) ([]string, error) {
	if err := fetch.CtxErr(ctx); err != nil {
		return nil, err
	}
	maxResults := cfg.maxResults()

	if cfg.mode() == ModeNone {
		var out []string
		for _, g := range groups {
			for _, u := range g {
				if len(out) < maxResults {
					out = append(out, u)
				}
			}
		}
		return out, nil
	}

	findCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		mu   sync.Mutex
		hits = make(map[int]string)
		wg   sync.WaitGroup
		jobs = make(chan int)
	)

	worker := func() {
		defer wg.Done()
		for gi := range jobs {
			for _, u := range groups[gi] {
				if findCtx.Err() != nil {
					break
				}
				ok, err := r.Validate(findCtx, u, cfg)
				if err != nil {
					if !fetch.IsAbort(err) && onErr != nil {
						mu.Lock()
						onErr(u, err)
						mu.Unlock()
					}
					continue
				}
				if !ok {
					continue
				}
				mu.Lock()
				if len(hits) < maxResults {
					hits[gi] = u
					if len(hits) >= maxResults {
						cancel(ErrSidecarFound)
					}
				}
				mu.Unlock()
				break
			}
		}
	}

	workers := min(cfg.concurrency(), len(groups))
	for range workers {
		wg.Add(1)
		go worker()
	}

feed:
	for gi := range groups {
		select {
		case jobs <- gi:
		case <-findCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := fetch.CtxErr(ctx); err != nil {
		return nil, err
	}

	idx := make([]int, 0, len(hits))
	for gi := range hits {
		idx = append(idx, gi)
	}
	sort.Ints(idx)
	out := make([]string, 0, len(idx))
	for _, gi := range idx {
		out = append(out, hits[gi])
	}
	return out, nil
}
