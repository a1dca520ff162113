package artwork

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"media-artwork/internal/embedded"
	"media-artwork/internal/fetch"
	"media-artwork/internal/kvstore"
	"media-artwork/internal/logging"
	"media-artwork/internal/metrics"
	"media-artwork/internal/render"
	"media-artwork/internal/sidecar"
	"media-artwork/internal/validation"
)

// Config wires an Engine to its collaborators.
type Config struct {
	Doer fetch.Doer
	// BaseURL resolves relative audio URLs. Required only when callers pass
	// relative URLs.
	BaseURL string
	// Session holds sidecar verdicts for the lifetime of the process.
	Session   kvstore.Store
	Renderer  *render.Renderer
	Validator *validation.Validator
}

// Engine resolves artwork for audio files. It is safe for concurrent use.
type Engine struct {
	doer      fetch.Doer
	base      *url.URL
	session   kvstore.Store
	renderer  *render.Renderer
	validator *validation.Validator
	resolver  *sidecar.Resolver
}

// NewEngine returns an Engine. Missing collaborators get in-memory defaults.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Doer == nil {
		return nil, errors.New("artwork: a fetch.Doer is required")
	}
	e := &Engine{
		doer:      cfg.Doer,
		session:   cfg.Session,
		renderer:  cfg.Renderer,
		validator: cfg.Validator,
	}
	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("artwork: invalid base URL: %w", err)
		}
		e.base = base
	}
	if e.session == nil {
		e.session = kvstore.NewMemory(0)
	}
	if e.renderer == nil {
		e.renderer = render.NewRenderer("")
	}
	if e.validator == nil {
		e.validator = validation.New()
	}
	e.resolver = sidecar.NewResolver(e.doer, e.session)
	return e, nil
}

// Renderer returns the renderer the engine materializes into.
func (e *Engine) Renderer() *render.Renderer { return e.renderer }

type request struct {
	URL     string  `json:"url" validate:"required,mediaurl"`
	Options Options `json:"options"`
}

func (e *Engine) resolveURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if e.base == nil {
		return "", fmt.Errorf("relative URL %q needs a base URL", raw)
	}
	return e.base.ResolveReference(u).String(), nil
}

// Thumbnail returns artwork for the audio file at rawURL. Cancellation of
// ctx is returned as a *fetch.AbortError; absence of artwork as a
// *NotFoundError.
func (e *Engine) Thumbnail(ctx context.Context, rawURL string, opts Options) (*Results, error) {
	opts = opts.normalize()
	if err := e.validator.Validate(request{URL: rawURL, Options: opts}); err != nil {
		metrics.ArtworkRequestsTotal.WithLabelValues(strategyLabel(opts.SourceStrategy), "invalid").Inc()
		return nil, err
	}
	if err := fetch.CtxErr(ctx); err != nil {
		return nil, err
	}
	audioURL, err := e.resolveURL(rawURL)
	if err != nil {
		return nil, err
	}

	c := &call{url: audioURL, opts: opts, start: time.Now()}
	log := logging.Named("artwork", opts.Debug)

	strategy := opts.SourceStrategy
	var res *Results
	switch {
	case strategy == StrategyRace && opts.has(SourceSidecar) && opts.has(SourceEmbedded):
		res, err = e.race(ctx, c, log)
	case strategy == StrategyAll:
		res, err = e.all(ctx, c, log)
	default:
		strategy = StrategyOrdered
		res, err = e.ordered(ctx, c, log)
	}

	outcome := "found"
	switch {
	case fetch.IsAbort(err):
		outcome = "aborted"
	case err != nil:
		outcome = "not_found"
	}
	metrics.ArtworkRequestsTotal.WithLabelValues(string(strategy), outcome).Inc()
	metrics.ArtworkDuration.WithLabelValues(string(strategy)).Observe(time.Since(c.start).Seconds())

	if err != nil {
		log.Debugf("%s: %v", audioURL, err)
		return nil, err
	}
	log.Debugf("%s: %d result(s) via %s in %s", audioURL, len(res.Items), strategy, res.Timing.Total)
	return res, nil
}

func strategyLabel(s Strategy) string {
	if s == StrategyRace || s == StrategyAll {
		return string(s)
	}
	return string(StrategyOrdered)
}

func (e *Engine) embeddedOptions(c *call, log *logging.Logger) embedded.Options {
	return embedded.Options{
		Doer:        e.doer,
		Timeout:     c.opts.Timeout,
		MaxBytes:    c.opts.Embedded.MaxBytes,
		PreferFront: c.opts.Embedded.PreferPicture == "front",
		OnFetch: func(n int, d time.Duration) {
			c.addFetch(d)
			c.emit(Event{Phase: "embedded-fetch", URL: c.url, Detail: fmt.Sprintf("%d bytes", n), Elapsed: d})
		},
		Log: log,
	}
}

func (e *Engine) sidecarConfig(c *call) sidecar.Config {
	cfg := c.opts.sidecarConfig()
	cfg.OnProbe = func(method, u string, d time.Duration) {
		c.addFetch(d)
		c.emit(Event{Phase: "sidecar-validate", URL: u, Detail: method, Elapsed: d})
	}
	return cfg
}

// materialize turns embedded pictures into results. Pictures that fail to
// transcode are recorded as attempts and skipped.
func (e *Engine) materialize(c *call, pics []embedded.Picture) []Result {
	var out []Result
	for _, p := range pics {
		start := time.Now()
		m, err := e.renderer.Materialize(p.Data, p.Mime, c.opts.Output)
		if err != nil {
			c.attempt("embedded:" + err.Error())
			continue
		}
		c.addRender(m)
		c.emit(Event{Phase: "materialize", URL: c.url, Detail: p.Container, Elapsed: time.Since(start)})

		mime := m.Mime
		out = append(out, Result{
			URI:        m.URI,
			Source:     SourceEmbedded,
			Container:  p.Container,
			Kind:       p.Kind,
			InputMime:  p.Mime,
			OutputMime: &mime,
			Width:      m.Width,
			Height:     m.Height,
		})
	}
	return out
}

func sidecarResult(u string) Result {
	return Result{URI: u, Source: SourceSidecar, Kind: embedded.KindFront}
}

// CacheSize returns the bytes held by sidecar verdicts whose keys start with
// prefix.
func (e *Engine) CacheSize(ctx context.Context, prefix string) (int64, error) {
	return e.session.ValueBytes(ctx, prefix)
}

// ClearCache drops sidecar verdicts whose keys start with prefix.
func (e *Engine) ClearCache(ctx context.Context, prefix string) (int, error) {
	return e.session.Clear(ctx, prefix)
}

// CleanupObjectURLs revokes every object URL issued so far.
func (e *Engine) CleanupObjectURLs() int { return e.renderer.URLs.RevokeAll() }

// ClearCanvasPool empties the canvas pool and reports whether it held any.
func (e *Engine) ClearCanvasPool() bool { return e.renderer.Canvases.Clear() > 0 }

// MemoryUsage reports pooled canvases and live object URLs.
func (e *Engine) MemoryUsage() render.Usage { return e.renderer.Usage() }
