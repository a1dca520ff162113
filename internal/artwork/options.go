package artwork

import (
	"slices"
	"time"

	"media-artwork/internal/embedded"
	"media-artwork/internal/render"
	"media-artwork/internal/sidecar"
)

// Source names where a result came from.
type Source string

const (
	SourceSidecar  Source = "sidecar"
	SourceEmbedded Source = "embedded"
)

// Strategy selects how sources are combined.
type Strategy string

const (
	StrategyRace    Strategy = "race"
	StrategyAll     Strategy = "all"
	StrategyOrdered Strategy = "ordered"
)

// EmbeddedOptions bounds embedded extraction.
type EmbeddedOptions struct {
	MaxBytes int64 `json:"maxBytes" validate:"gte=0"`
	// PreferPicture "front" keeps only front covers when a file has any.
	PreferPicture string `json:"preferPicture" validate:"omitempty,oneof=front any"`
}

// Event is passed to OnTiming as work progresses.
type Event struct {
	Phase   string // sidecar-validate, embedded-fetch, materialize
	URL     string
	Detail  string
	Elapsed time.Duration
}

// Options configures a Thumbnail call. Start from DefaultOptions; nil
// slices and zero numbers fall back to the defaults, but booleans are taken
// as given.
type Options struct {
	Sources        []Source `json:"sources" validate:"omitempty,dive,oneof=sidecar embedded"`
	SourceStrategy Strategy `json:"sourceStrategy"`

	SidecarNames           []string            `json:"sidecarNames"`
	SidecarExts            []string            `json:"sidecarExts"`
	SidecarIncludeBasename bool                `json:"sidecarIncludeBasename"`
	SidecarValidate        sidecar.Mode        `json:"sidecarValidate" validate:"omitempty,oneof=none head get-range img auto"`
	SidecarConcurrency     int                 `json:"sidecarConcurrency" validate:"gte=0"`
	SidecarMaxResults      int                 `json:"sidecarMaxResults" validate:"gte=0"`
	SidecarCache           bool                `json:"sidecarCache"`
	SidecarCacheKeyPrefix  string              `json:"sidecarCacheKeyPrefix"`
	ResolveSidecarURL      sidecar.ResolveFunc `json:"-"`

	Embedded EmbeddedOptions      `json:"embedded"`
	Output   render.OutputOptions `json:"output"`

	Timeout  time.Duration `json:"timeout" validate:"gte=0"`
	OnTiming func(Event)   `json:"-"`
	Debug    bool          `json:"debug"`
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	sc := sidecar.DefaultConfig()
	return Options{
		Sources:                []Source{SourceSidecar, SourceEmbedded},
		SourceStrategy:         StrategyRace,
		SidecarNames:           sc.Names,
		SidecarExts:            sc.Exts,
		SidecarIncludeBasename: sc.IncludeBasename,
		SidecarValidate:        sc.Validate,
		SidecarConcurrency:     sc.Concurrency,
		SidecarMaxResults:      sc.MaxResults,
		SidecarCache:           sc.Cache,
		SidecarCacheKeyPrefix:  sc.CacheKeyPrefix,
		Embedded: EmbeddedOptions{
			MaxBytes:      embedded.DefaultMaxBytes,
			PreferPicture: "front",
		},
		Output:  render.OutputOptions{Type: render.OutputObjectURL},
		Timeout: sc.Timeout,
	}
}

// normalize fills unset fields from DefaultOptions.
func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.Sources == nil {
		o.Sources = def.Sources
	}
	if o.SourceStrategy == "" {
		o.SourceStrategy = def.SourceStrategy
	}
	if o.SidecarNames == nil {
		o.SidecarNames = def.SidecarNames
	}
	if o.SidecarExts == nil {
		o.SidecarExts = def.SidecarExts
	}
	if o.SidecarValidate == "" {
		o.SidecarValidate = def.SidecarValidate
	}
	if o.SidecarConcurrency <= 0 {
		o.SidecarConcurrency = def.SidecarConcurrency
	}
	if o.SidecarMaxResults <= 0 {
		o.SidecarMaxResults = def.SidecarMaxResults
	}
	if o.SidecarCacheKeyPrefix == "" {
		o.SidecarCacheKeyPrefix = def.SidecarCacheKeyPrefix
	}
	if o.Embedded.MaxBytes <= 0 {
		o.Embedded.MaxBytes = def.Embedded.MaxBytes
	}
	if o.Embedded.PreferPicture == "" {
		o.Embedded.PreferPicture = def.Embedded.PreferPicture
	}
	if o.Output.Type == "" {
		o.Output.Type = def.Output.Type
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	return o
}

func (o Options) has(s Source) bool { return slices.Contains(o.Sources, s) }

func (o Options) sidecarConfig() sidecar.Config {
	return sidecar.Config{
		Names:           o.SidecarNames,
		Exts:            o.SidecarExts,
		IncludeBasename: o.SidecarIncludeBasename,
		Validate:        o.SidecarValidate,
		Concurrency:     o.SidecarConcurrency,
		MaxResults:      o.SidecarMaxResults,
		Cache:           o.SidecarCache,
		CacheKeyPrefix:  o.SidecarCacheKeyPrefix,
		Timeout:         o.Timeout,
		Resolve:         o.ResolveSidecarURL,
	}
}
