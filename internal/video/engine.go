package video

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"media-artwork/internal/fetch"
	"media-artwork/internal/kvstore"
	"media-artwork/internal/logging"
	"media-artwork/internal/metrics"
	"media-artwork/internal/render"
	"media-artwork/internal/validation"
)

const (
	seekAttempts       = 3
	seekBackoff        = 100 * time.Millisecond
	seekAttemptTimeout = 5 * time.Second
	seekTolerance      = 0.5  // seconds
	frameTolerance     = 0.03 // seconds
	endMargin          = 0.05 // seconds kept clear of the end

	minCachedValueLen = 30
)

var (
	errLoadTimeout = errors.New("video load timed out")
	errSeekTimeout = errors.New("seek timed out")
)

// IsTimeout reports whether err is a load or seek timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, errLoadTimeout) || errors.Is(err, errSeekTimeout)
}

// Config wires an Engine to its collaborators.
type Config struct {
	Players PlayerFactory
	// Cache holds encoded thumbnails. It is only used when a call enables
	// caching.
	Cache     kvstore.Store
	Renderer  *render.Renderer
	Validator *validation.Validator
	// BaseURL resolves relative video URLs.
	BaseURL string
	Now     func() time.Time
}

// Engine produces video thumbnails. It is safe for concurrent use.
type Engine struct {
	players   PlayerFactory
	cache     kvstore.Store
	renderer  *render.Renderer
	validator *validation.Validator
	base      *url.URL
	now       func() time.Time

	seekBackoff time.Duration
	flight      singleflight.Group
}

// NewEngine returns an Engine. A PlayerFactory is required; the other
// collaborators get in-memory defaults.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Players == nil {
		return nil, errors.New("video: a PlayerFactory is required")
	}
	e := &Engine{
		players:     cfg.Players,
		cache:       cfg.Cache,
		renderer:    cfg.Renderer,
		validator:   cfg.Validator,
		now:         cfg.Now,
		seekBackoff: seekBackoff,
	}
	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("video: invalid base URL: %w", err)
		}
		e.base = base
	}
	if e.cache == nil {
		e.cache = kvstore.NewMemory(0)
	}
	if e.renderer == nil {
		e.renderer = render.NewRenderer("")
	}
	if e.validator == nil {
		e.validator = validation.New()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// Thumbnail is one captured frame.
type Thumbnail struct {
	URI       string          `json:"uri"`
	Timestamp float64         `json:"timestamp"`
	SeekTime  float64         `json:"seekTime"`
	Duration  float64         `json:"duration"` // video duration, 0 for cache hits
	Mime      render.MimeSpec `json:"mime"`
	Width     int             `json:"width,omitempty"`
	Height    int             `json:"height,omitempty"`
	SizeKB    float64         `json:"sizeKB"`
	Cached    bool            `json:"cached"`
}

// Timing aggregates where a call spent its time.
type Timing struct {
	Load        time.Duration
	Seeks       []time.Duration
	Encodes     []time.Duration
	SeekTotal   time.Duration
	EncodeTotal time.Duration
	Total       time.Duration
}

// Results is the outcome of a Thumbnails call, one entry per timestamp that
// produced a frame, in request order.
type Results struct {
	Thumbnails []Thumbnail
	Timing     Timing
}

func (r *Results) clone() *Results {
	c := *r
	c.Thumbnails = append([]Thumbnail(nil), r.Thumbnails...)
	c.Timing.Seeks = append([]time.Duration(nil), r.Timing.Seeks...)
	c.Timing.Encodes = append([]time.Duration(nil), r.Timing.Encodes...)
	return &c
}

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

// Thumbnails captures a frame of the video at rawURL for every requested
// timestamp. Options are validated before any I/O. Concurrent cached calls
// with identical options share one generation.
func (e *Engine) Thumbnails(ctx context.Context, rawURL string, opts Options) (*Results, error) {
	opts = opts.normalize()
	if err := e.validator.Validate(request{URL: rawURL, Options: opts}); err != nil {
		metrics.VideoThumbnailsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := fetch.CtxErr(ctx); err != nil {
		return nil, err
	}
	videoURL, err := e.resolveURL(rawURL)
	if err != nil {
		return nil, err
	}

	if !opts.Cache || opts.Type != render.OutputDataURI {
		return e.generate(ctx, videoURL, opts)
	}

	ch := e.flight.DoChan(flightKey(videoURL, opts), func() (any, error) {
		return e.generate(ctx, videoURL, opts)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			// The leader was cancelled, not us.
			if fetch.IsAbort(r.Err) && ctx.Err() == nil {
				return e.generate(ctx, videoURL, opts)
			}
			return nil, r.Err
		}
		return r.Val.(*Results).clone(), nil
	case <-ctx.Done():
		return nil, fetch.CtxErr(ctx)
	}
}

func flightKey(videoURL string, o Options) string {
	ts := make([]string, len(o.Timestamps))
	for i, t := range o.Timestamps {
		ts[i] = formatFloat(t)
	}
	return strings.Join([]string{
		o.CacheKeyPrefix,
		strconv.Itoa(o.Size),
		o.Mime.Type,
		formatFloat(o.Mime.Q(-1)),
		strconv.FormatBool(o.CacheReadOnly),
		strings.Join(ts, ","),
		videoURL,
	}, "|")
}

// call carries the state of one generation.
type call struct {
	url    string
	opts   Options
	start  time.Time
	log    *logging.Logger
	timing Timing

	player Player
	meta   Metadata
}

func (c *call) emit(phase string, ts float64, d time.Duration) {
	if c.opts.OnTiming != nil {
		c.opts.OnTiming(Event{Phase: phase, URL: c.url, Timestamp: ts, Elapsed: d})
	}
}

func (e *Engine) generate(ctx context.Context, videoURL string, opts Options) (*Results, error) {
	c := &call{url: videoURL, opts: opts, start: time.Now(), log: logging.Named("video", opts.Debug)}
	defer func() {
		if c.player != nil {
			c.player.Release()
		}
	}()

	useCache := opts.Cache && opts.Type == render.OutputDataURI
	format := opts.Mime.Format()
	thumbs := make([]Thumbnail, 0, len(opts.Timestamps))

	for _, ts := range opts.Timestamps {
		if err := fetch.CtxErr(ctx); err != nil {
			return nil, err
		}
		key := CacheKey{Prefix: opts.CacheKeyPrefix, Size: opts.Size, Format: format, Timestamp: ts, URL: videoURL}

		if useCache {
			if th, ok := e.lookup(ctx, key, c.log); ok {
				metrics.VideoThumbnailsTotal.WithLabelValues("cache_hit").Inc()
				c.emit("cache-hit", ts, 0)
				thumbs = append(thumbs, th)
				continue
			}
		}
		if opts.CacheReadOnly {
			c.log.Debugf("%s: no cached frame for %s, skipping", videoURL, formatFloat(ts))
			continue
		}

		th, err := e.capture(ctx, c, ts)
		if err != nil {
			metrics.VideoThumbnailsTotal.WithLabelValues("error").Inc()
			c.log.Debugf("%s: %v", videoURL, err)
			return nil, err
		}
		metrics.VideoThumbnailsTotal.WithLabelValues("generated").Inc()

		if useCache {
			key.CreatedAt = e.now()
			key.SeekTime = th.SeekTime
			e.store(ctx, key, th.URI, c.log)
		}
		thumbs = append(thumbs, th)
	}

	c.timing.Total = time.Since(c.start)
	c.log.Debugf("%s: %d thumbnail(s) in %s", videoURL, len(thumbs), c.timing.Total)
	return &Results{Thumbnails: thumbs, Timing: c.timing}, nil
}

// load creates the call's player on first use.
func (e *Engine) load(ctx context.Context, c *call) error {
	if c.player != nil {
		return nil
	}
	c.player = e.players()

	loadCtx, cancel := context.WithTimeoutCause(ctx, c.opts.LoadTimeout, errLoadTimeout)
	defer cancel()

	start := time.Now()
	meta, err := c.player.Load(loadCtx, c.url)
	d := time.Since(start)
	c.timing.Load = d
	metrics.VideoPhaseDuration.WithLabelValues("load").Observe(d.Seconds())
	c.emit("load", 0, d)

	if err != nil {
		if aerr := fetch.CtxErr(ctx); aerr != nil {
			return aerr
		}
		if errors.Is(context.Cause(loadCtx), errLoadTimeout) {
			return fmt.Errorf("%w after %s", errLoadTimeout, c.opts.LoadTimeout)
		}
		return fmt.Errorf("failed to load video: %w", err)
	}
	if meta.Width == 0 || meta.Height == 0 {
		return ErrZeroDimensions
	}
	c.meta = meta
	c.log.Debugf("%s: loaded %dx%d, %.2fs", c.url, meta.Width, meta.Height, meta.Duration)
	return nil
}

// seekTarget maps a requested timestamp onto the playable range.
func seekTarget(ts float64, meta Metadata) float64 {
	t := ts
	if ts < 1 {
		t = ts * meta.Duration
	}
	end := meta.Duration
	if end <= 0 {
		end = meta.SeekableEnd
	}
	return math.Max(0, math.Min(t, end-endMargin))
}

func (e *Engine) capture(ctx context.Context, c *call, ts float64) (Thumbnail, error) {
	if err := e.load(ctx, c); err != nil {
		return Thumbnail{}, err
	}

	var target float64
	if c.meta.SeekableEnd > 0 {
		target = seekTarget(ts, c.meta)
		start := time.Now()
		reached, err := e.seek(ctx, c, target)
		d := time.Since(start)
		c.timing.Seeks = append(c.timing.Seeks, d)
		c.timing.SeekTotal += d
		metrics.VideoPhaseDuration.WithLabelValues("seek").Observe(d.Seconds())
		c.emit("seek", ts, d)
		if err != nil {
			return Thumbnail{}, err
		}
		if math.Abs(reached-target) > seekTolerance {
			c.log.Debugf("%s: seek landed at %.3fs, wanted %.3fs", c.url, reached, target)
		}
	}

	frame, err := c.player.Frame(ctx)
	if err != nil {
		if aerr := fetch.CtxErr(ctx); aerr != nil {
			return Thumbnail{}, aerr
		}
		return Thumbnail{}, fmt.Errorf("failed to capture frame at %.2fs: %w", target, err)
	}
	if math.Abs(frame.MediaTime-target) > frameTolerance {
		c.log.Debugf("%s: presented frame at %.3fs, wanted %.3fs", c.url, frame.MediaTime, target)
	}

	start := time.Now()
	out, err := e.renderer.Render(frame.Image, c.opts.Size, *c.opts.Mime, c.opts.Type)
	d := time.Since(start)
	c.timing.Encodes = append(c.timing.Encodes, d)
	c.timing.EncodeTotal += d
	metrics.VideoPhaseDuration.WithLabelValues("encode").Observe(d.Seconds())
	c.emit("encode", ts, d)
	if err != nil {
		return Thumbnail{}, err
	}

	th := Thumbnail{
		URI:       out.URI,
		Timestamp: ts,
		SeekTime:  round2(target),
		Duration:  c.meta.Duration,
		Mime:      out.Mime,
		Width:     out.Width,
		Height:    out.Height,
		SizeKB:    sizeKB(out.URI),
	}
	c.log.Debugf("%s: frame at %.2fs -> %dx%d %s, %.2f KB", c.url, th.SeekTime, th.Width, th.Height, th.Mime.Type, th.SizeKB)
	return th, nil
}

// seek retries failed seeks with a linear backoff, bounding each attempt.
func (e *Engine) seek(ctx context.Context, c *call, t float64) (float64, error) {
	var lastErr error
	for attempt := 1; attempt <= seekAttempts; attempt++ {
		if attempt > 1 {
			metrics.VideoSeekRetries.Inc()
			select {
			case <-time.After(time.Duration(attempt-1) * e.seekBackoff):
			case <-ctx.Done():
				return 0, fetch.CtxErr(ctx)
			}
		}

		attemptCtx, cancel := context.WithTimeoutCause(ctx, seekAttemptTimeout, errSeekTimeout)
		reached, err := c.player.Seek(attemptCtx, t)
		cause := context.Cause(attemptCtx)
		cancel()
		if err == nil {
			return reached, nil
		}
		if aerr := fetch.CtxErr(ctx); aerr != nil {
			return 0, aerr
		}
		if errors.Is(cause, errSeekTimeout) {
			err = errSeekTimeout
		}
		lastErr = err
		c.log.Debugf("%s: seek to %.2fs failed (attempt %d/%d): %v", c.url, t, attempt, seekAttempts, err)
	}
	return 0, fmt.Errorf("seek to %.2fs failed after %d attempts: %w", t, seekAttempts, lastErr)
}

func sizeKB(uri string) float64 {
	return round2(float64(len(uri)) / 1024)
}
