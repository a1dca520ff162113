package sidecar

import (
	"strings"
	"time"
)

// Mode selects how candidate URLs are validated.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeHead     Mode = "head"
	ModeGetRange Mode = "get-range"
	ModeImg      Mode = "img"
	ModeAuto     Mode = "auto"
)

// ParseMode maps unknown values to ModeAuto.
func ParseMode(s string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeNone, ModeHead, ModeGetRange, ModeImg:
		return m
	}
	return ModeAuto
}

// DefaultNames are the stems media players conventionally use for folder art.
var DefaultNames = []string{"folder", "cover", "albumart", "front", "album", "default", "thumb", "artwork", "thumbnail"}

// DefaultExts are the extensions tried for every stem.
var DefaultExts = []string{"jpg", "jpeg"}

// DefaultCacheKeyPrefix namespaces verdict cache keys.
const DefaultCacheKeyPrefix = "audio-thumbnail.js"

// Config controls candidate generation, validation and caching.
type Config struct {
	Names           []string
	Exts            []string
	IncludeBasename bool
	Validate        Mode
	Concurrency     int
	MaxResults      int
	Cache           bool
	CacheKeyPrefix  string
	// Timeout bounds each probe request.
	Timeout time.Duration
	// Resolve overrides relative resolution against the audio URL.
	Resolve ResolveFunc
	// OnProbe observes every network probe.
	OnProbe func(method, url string, d time.Duration)
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Names:           append([]string{}, DefaultNames...),
		Exts:            append([]string{}, DefaultExts...),
		IncludeBasename: true,
		Validate:        ModeAuto,
		Concurrency:     6,
		MaxResults:      1,
		Cache:           true,
		CacheKeyPrefix:  DefaultCacheKeyPrefix,
		Timeout:         15 * time.Second,
	}
}

func (c Config) mode() Mode {
	if c.Validate == "" {
		return ModeAuto
	}
	return c.Validate
}

func (c Config) prefix() string {
	if c.CacheKeyPrefix == "" {
		return DefaultCacheKeyPrefix
	}
	return c.CacheKeyPrefix
}

func (c Config) concurrency() int { return max(1, c.Concurrency) }

func (c Config) maxResults() int { return max(1, c.MaxResults) }
