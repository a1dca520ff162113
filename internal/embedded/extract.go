package embedded

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"media-artwork/internal/fetch"
	"media-artwork/internal/logging"
	"media-artwork/internal/metrics"
)

// DefaultMaxBytes bounds every container read.
const DefaultMaxBytes = 1_000_000

// Options configures an extraction.
type Options struct {
	Doer     fetch.Doer
	Timeout  time.Duration
	MaxBytes int64
	// PreferFront keeps only front covers when the file has any.
	PreferFront bool
	// OnFetch is called after every network read with the number of bytes
	// received and the time spent.
	OnFetch func(n int, d time.Duration)
	Log     *logging.Logger
}

func (o Options) maxBytes() int64 {
	if o.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return o.MaxBytes
}

func (o Options) fetch(ctx context.Context, u string, fo fetch.Options) ([]byte, error) {
	fo.Timeout = o.Timeout
	start := time.Now()
	b, err := fetch.Bytes(ctx, o.Doer, u, fo)
	elapsed := time.Since(start)
	if o.OnFetch != nil {
		o.OnFetch(len(b), elapsed)
	}
	if err == nil {
		metrics.EmbeddedFetchBytes.Observe(float64(len(b)))
	}
	return b, err
}

// window fetches the first maxBytes of a file once and shares the result
// between the parsers that need it.
type window struct {
	once sync.Once
	buf  []byte
	err  error
}

func (w *window) get(ctx context.Context, u string, opts Options) ([]byte, error) {
	w.once.Do(func() {
		limit := opts.maxBytes()
		w.buf, w.err = opts.fetch(ctx, u, fetch.Options{
			MaxBytes:      limit,
			AllowTruncate: true,
			Range:         &fetch.Range{Start: 0, End: limit - 1},
		})
	})
	return w.buf, w.err
}

type parser struct {
	name string
	run  func(ctx context.Context, u string, opts Options, w *window) ([]Picture, error)
}

var (
	mp3Parser = parser{"mp3", func(ctx context.Context, u string, opts Options, _ *window) ([]Picture, error) {
		return ExtractMP3(ctx, u, opts)
	}}
	m4aParser = parser{"m4a", func(ctx context.Context, u string, opts Options, w *window) ([]Picture, error) {
		b, err := w.get(ctx, u, opts)
		if err != nil {
			return nil, err
		}
		p, err := ParseM4A(b)
		if err != nil {
			return nil, err
		}
		return []Picture{p}, nil
	}}
	mkaParser = parser{"mka", func(ctx context.Context, u string, opts Options, w *window) ([]Picture, error) {
		b, err := w.get(ctx, u, opts)
		if err != nil {
			return nil, err
		}
		return ParseMKA(b)
	}}
	tagParser = parser{"tag", func(ctx context.Context, u string, opts Options, w *window) ([]Picture, error) {
		b, err := w.get(ctx, u, opts)
		if err != nil {
			return nil, err
		}
		return ParseTagged(b)
	}}
)

// parsersFor picks the parsers to try from the URL's extension. A known
// extension selects exactly one parser; anything else tries them all.
func parsersFor(rawURL string) []parser {
	switch Extension(rawURL) {
	case "mp3":
		return []parser{mp3Parser}
	case "m4a", "m4b", "mp4", "aac":
		return []parser{m4aParser}
	case "mka", "mkv", "webm":
		return []parser{mkaParser}
	case "flac", "ogg", "oga", "opus":
		return []parser{tagParser}
	}
	return []parser{mp3Parser, m4aParser, mkaParser, tagParser}
}

// Extension returns the lower-cased extension of the URL path without the
// dot, ignoring query and fragment.
func Extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
}

// ExtractError aggregates the failure of every parser that was tried.
type ExtractError struct {
	Attempts []string
}

func (e *ExtractError) Error() string {
	return "embedded artwork extraction failed. " + strings.Join(e.Attempts, " | ")
}

// Extract returns the pictures embedded in the file at rawURL. Parsers are
// tried in order until one succeeds. Cancellation of ctx is returned as an
// abort immediately rather than recorded as a parser failure.
func Extract(ctx context.Context, rawURL string, opts Options) ([]Picture, error) {
	var (
		w        window
		attempts []string
	)
	for _, p := range parsersFor(rawURL) {
		if err := fetch.CtxErr(ctx); err != nil {
			return nil, err
		}
		pics, err := p.run(ctx, rawURL, opts, &w)
		if err != nil {
			if fetch.IsAbort(err) {
				return nil, err
			}
			metrics.EmbeddedExtractionsTotal.WithLabelValues(p.name, failureStatus(err)).Inc()
			opts.Log.Debugf("%s parser failed for %s: %v", p.name, rawURL, err)
			attempts = append(attempts, p.name+": "+err.Error())
			continue
		}
		metrics.EmbeddedExtractionsTotal.WithLabelValues(p.name, "found").Inc()
		if opts.PreferFront {
			pics = PreferFront(pics)
		}
		return pics, nil
	}
	return nil, &ExtractError{Attempts: attempts}
}

// failureStatus separates transport failures from files that were read but
// carried no usable picture.
func failureStatus(err error) string {
	var he *fetch.HTTPError
	if errors.As(err, &he) || errors.Is(err, fetch.ErrTimeout) {
		return "error"
	}
	return "not_found"
}
