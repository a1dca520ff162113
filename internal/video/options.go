package video

import (
	"time"

	"media-artwork/internal/render"
)

// Defaults for Options.
const (
	DefaultSize        = 480
	DefaultLoadTimeout = 15 * time.Second
)

// Event is passed to OnTiming as frames are produced.
type Event struct {
	Phase     string // load, seek, encode, cache-hit
	URL       string
	Timestamp float64
	Elapsed   time.Duration
}

// Options configures a Thumbnails call. Start from DefaultOptions; nil
// slices and zero values fall back to the defaults, booleans are taken as
// given.
type Options struct {
	// Timestamps in [0,1) are fractions of the duration, larger values are
	// seconds.
	Timestamps []float64         `json:"timestamps" validate:"omitempty,dive,gte=0"`
	Size       int               `json:"size" validate:"gt=0,lte=32767"`
	Mime       *render.MimeSpec  `json:"mime"`
	Type       render.OutputType `json:"type" validate:"omitempty,oneof=dataURI objectURL"`
	Cache      bool              `json:"cache"`
	// CacheReadOnly serves cache hits only and never loads the video.
	CacheReadOnly  bool          `json:"cacheReadOnly"`
	CacheKeyPrefix string        `json:"cacheKeyPrefix"`
	LoadTimeout    time.Duration `json:"loadTimeout" validate:"gte=0"`
	Debug          bool          `json:"debug"`
	OnTiming       func(Event)   `json:"-"`
}

// DefaultOptions returns the stock configuration: one frame at 10% of the
// duration, 480px wide, WebP at quality 0.2, as a data URI, uncached.
func DefaultOptions() Options {
	return Options{
		Timestamps:     []float64{0.1},
		Size:           DefaultSize,
		Mime:           &render.MimeSpec{Type: render.MimeWebP, Quality: render.Quality(0.2)},
		Type:           render.OutputDataURI,
		CacheKeyPrefix: DefaultCacheKeyPrefix,
		LoadTimeout:    DefaultLoadTimeout,
	}
}

func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.Timestamps == nil {
		o.Timestamps = def.Timestamps
	}
	if o.Size == 0 {
		o.Size = def.Size
	}
	if o.Mime == nil {
		o.Mime = def.Mime
	} else if o.Mime.Type == "" {
		m := *o.Mime
		m.Type = def.Mime.Type
		o.Mime = &m
	}
	if o.Type == "" {
		o.Type = def.Type
	}
	if o.CacheKeyPrefix == "" {
		o.CacheKeyPrefix = def.CacheKeyPrefix
	}
	if o.LoadTimeout == 0 {
		o.LoadTimeout = def.LoadTimeout
	}
	return o
}
