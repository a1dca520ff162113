package artwork

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"media-artwork/internal/embedded"
	"media-artwork/internal/fetch"
	"media-artwork/internal/logging"
	"media-artwork/internal/metrics"
	"media-artwork/internal/sidecar"
)

var (
	errNoCandidates   = errors.New("no sidecar candidates generated")
	errNoValidSidecar = errors.New("no valid sidecar URL found")
	errNoEmbedded     = errors.New("no embedded artwork extracted")
)

// race answers from cached sidecar verdicts when it can, otherwise runs both
// sources and keeps whichever succeeds first.
func (e *Engine) race(ctx context.Context, c *call, log *logging.Logger) (*Results, error) {
	cfg := e.sidecarConfig(c)
	groups, err := sidecar.CandidateGroups(c.url, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Cache {
		for _, g := range groups {
			for _, u := range g {
				if v, ok := e.resolver.CachedVerdict(ctx, u, cfg); ok && v == sidecar.True {
					log.Debugf("cached sidecar verdict for %s", u)
					metrics.ArtworkRaceWinner.WithLabelValues("cache").Inc()
					return c.finish([]Result{sidecarResult(u)})
				}
			}
		}
	}

	sidecarCtx, cancelSidecar := context.WithCancelCause(ctx)
	defer cancelSidecar(nil)
	embeddedCtx, cancelEmbedded := context.WithCancelCause(ctx)
	defer cancelEmbedded(nil)

	type outcome struct {
		source Source
		url    string
		pic    embedded.Picture
		err    error
	}
	done := make(chan outcome, 2)

	go func() {
		u, err := e.raceSidecar(sidecarCtx, groups, cfg, log)
		done <- outcome{source: SourceSidecar, url: u, err: err}
	}()
	go func() {
		pics, err := embedded.Extract(embeddedCtx, c.url, e.embeddedOptions(c, log))
		if err == nil && len(pics) == 0 {
			err = errNoEmbedded
		}
		o := outcome{source: SourceEmbedded, err: err}
		if err == nil {
			o.pic = pics[0]
		}
		done <- o
	}()

	var sidecarErr, embeddedErr error
	for range 2 {
		o := <-done
		if o.err != nil {
			if o.source == SourceSidecar {
				sidecarErr = o.err
			} else {
				embeddedErr = o.err
			}
			continue
		}

		metrics.ArtworkRaceWinner.WithLabelValues(string(o.source)).Inc()
		if o.source == SourceSidecar {
			cancelEmbedded(ErrRaceLost)
			return c.finish([]Result{sidecarResult(o.url)})
		}
		cancelSidecar(ErrRaceLost)
		return c.finish(e.materialize(c, []embedded.Picture{o.pic}))
	}

	if err := fetch.CtxErr(ctx); err != nil {
		return nil, err
	}
	c.attempt(fmt.Sprintf("sidecar: %v", sidecarErr))
	c.attempt(fmt.Sprintf("embedded: %v", embeddedErr))
	return c.finish(nil)
}

// raceSidecar returns the first valid candidate. Probe failures count as
// misses.
func (e *Engine) raceSidecar(ctx context.Context, groups [][]string, cfg sidecar.Config, log *logging.Logger) (string, error) {
	if cfg.Validate == sidecar.ModeNone {
		if len(groups) == 0 {
			return "", errNoCandidates
		}
		return groups[0][0], nil
	}
	cfg.MaxResults = 1
	found, err := e.resolver.WithLogger(log).Find(ctx, groups, cfg, nil)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", errNoValidSidecar
	}
	return found[0], nil
}

// findSidecars runs the sidecar search recording probe failures as attempts.
func (e *Engine) findSidecars(ctx context.Context, c *call, log *logging.Logger) ([]Result, error) {
	cfg := e.sidecarConfig(c)
	groups, err := sidecar.CandidateGroups(c.url, cfg)
	if err != nil {
		c.attempt("sidecar:" + err.Error())
		return nil, nil
	}
	urls, err := e.resolver.WithLogger(log).Find(ctx, groups, cfg, func(u string, err error) {
		c.attempt(fmt.Sprintf("sidecar:%s:%s: %v", cfg.Validate, u, err))
	})
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(urls))
	for _, u := range urls {
		out = append(out, sidecarResult(u))
	}
	return out, nil
}

// findEmbedded extracts and materializes every embedded picture.
func (e *Engine) findEmbedded(ctx context.Context, c *call, log *logging.Logger) ([]Result, error) {
	pics, err := embedded.Extract(ctx, c.url, e.embeddedOptions(c, log))
	if err != nil {
		if fetch.IsAbort(err) {
			return nil, err
		}
		c.attempt("embedded:" + err.Error())
		return nil, nil
	}
	return e.materialize(c, pics), nil
}

// all runs both sources to completion. Sidecar results come first.
func (e *Engine) all(ctx context.Context, c *call, log *logging.Logger) (*Results, error) {
	var (
		g                   errgroup.Group
		sidecars, embeddeds []Result
	)
	if c.opts.has(SourceSidecar) {
		g.Go(func() (err error) {
			sidecars, err = e.findSidecars(ctx, c, log)
			return err
		})
	}
	if c.opts.has(SourceEmbedded) {
		g.Go(func() (err error) {
			embeddeds, err = e.findEmbedded(ctx, c, log)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return c.finish(append(sidecars, embeddeds...))
}

// ordered tries the configured sources one at a time, in the order given,
// and stops at the first that yields results.
func (e *Engine) ordered(ctx context.Context, c *call, log *logging.Logger) (*Results, error) {
	var items []Result
	tried := make(map[Source]bool, len(c.opts.Sources))
	for _, src := range c.opts.Sources {
		if tried[src] {
			continue
		}
		tried[src] = true

		var (
			found []Result
			err   error
		)
		switch src {
		case SourceSidecar:
			found, err = e.findSidecars(ctx, c, log)
		case SourceEmbedded:
			found, err = e.findEmbedded(ctx, c, log)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			items = found
			break
		}
	}
	return c.finish(items)
}
