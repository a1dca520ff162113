package video

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// DefaultCacheKeyPrefix prefixes every thumbnail cache key.
const DefaultCacheKeyPrefix = "video-thumbnail.js"

// CacheKey identifies one cached thumbnail. Encoded keys sort by creation
// time within a prefix, which is what eviction relies on.
type CacheKey struct {
	Prefix    string
	CreatedAt time.Time // millisecond precision
	SeekTime  float64   // seconds, rounded to 2 digits when encoded
	Size      int
	Format    string // e.g. "webp"
	Timestamp float64
	URL       string
}

// Suffix is the part of the key that does not depend on when or where the
// frame was taken. Lookups match on it regardless of prefix.
func (k CacheKey) Suffix() string {
	return fmt.Sprintf("%d|%s|%s|%s", k.Size, k.Format, formatFloat(k.Timestamp), k.URL)
}

// String encodes the key as "<prefix>-<epochMs>-<seekTime>-<suffix>".
func (k CacheKey) String() string {
	return fmt.Sprintf("%s-%013d-%s-%s", k.Prefix, k.CreatedAt.UnixMilli(), formatFloat(round2(k.SeekTime)), k.Suffix())
}

var cacheKeyPattern = regexp.MustCompile(`^(.+?)-(\d{13,})-(\d+(?:\.\d{1,2})?)-(\d{1,5})\|(\w{3,4})\|(\d+(?:\.\d+)?)\|(.+)$`)

// ParseCacheKey decodes a key produced by CacheKey.String.
func ParseCacheKey(s string) (CacheKey, error) {
	m := cacheKeyPattern.FindStringSubmatch(s)
	if m == nil {
		return CacheKey{}, fmt.Errorf("malformed cache key %q", s)
	}
	ms, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return CacheKey{}, fmt.Errorf("cache key timestamp: %w", err)
	}
	seek, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return CacheKey{}, fmt.Errorf("cache key seek time: %w", err)
	}
	size, err := strconv.Atoi(m[4])
	if err != nil {
		return CacheKey{}, fmt.Errorf("cache key size: %w", err)
	}
	ts, err := strconv.ParseFloat(m[6], 64)
	if err != nil {
		return CacheKey{}, fmt.Errorf("cache key frame timestamp: %w", err)
	}
	return CacheKey{
		Prefix:    m[1],
		CreatedAt: time.UnixMilli(ms),
		SeekTime:  seek,
		Size:      size,
		Format:    m[5],
		Timestamp: ts,
		URL:       m[7],
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
