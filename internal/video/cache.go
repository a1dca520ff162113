package video

import (
	"context"
	"errors"
	"strings"

	"media-artwork/internal/kvstore"
	"media-artwork/internal/logging"
	"media-artwork/internal/metrics"
	"media-artwork/internal/render"
)

// lookup finds a cached frame for key, whatever prefix and creation time it
// was stored under.
func (e *Engine) lookup(ctx context.Context, key CacheKey, log *logging.Logger) (Thumbnail, bool) {
	k, v, found, err := e.cache.FindSuffix(ctx, "-"+key.Suffix())
	if err != nil {
		log.Warnf("thumbnail cache lookup failed: %v", err)
		return Thumbnail{}, false
	}
	if !found || !strings.HasPrefix(v, "data:image/") || len(v) <= minCachedValueLen {
		return Thumbnail{}, false
	}
	parsed, err := ParseCacheKey(k)
	if err != nil {
		log.Debugf("ignoring cache entry: %v", err)
		return Thumbnail{}, false
	}
	return Thumbnail{
		URI:       v,
		Timestamp: parsed.Timestamp,
		SeekTime:  parsed.SeekTime,
		Mime:      render.MimeSpec{Type: "image/" + parsed.Format},
		SizeKB:    sizeKB(v),
		Cached:    true,
	}, true
}

// store writes value under key unless the key exists. On quota errors the
// oldest entries under the same prefix are evicted one at a time until the
// write fits; when nothing is left to evict the frame is simply not cached.
func (e *Engine) store(ctx context.Context, key CacheKey, value string, log *logging.Logger) {
	k := key.String()
	if _, ok, err := e.cache.Get(ctx, k); err == nil && ok {
		return
	}

	var victims []string
	listed := false
	for {
		err := e.cache.Set(ctx, k, value)
		if err == nil {
			return
		}
		if !errors.Is(err, kvstore.ErrQuotaExceeded) {
			log.Warnf("failed to cache thumbnail: %v", err)
			return
		}
		if !listed {
			victims, err = e.cache.Keys(ctx, key.Prefix+"-")
			if err != nil {
				log.Warnf("failed to list cached thumbnails: %v", err)
				return
			}
			listed = true
		}
		if len(victims) == 0 {
			log.Debugf("thumbnail cache full, nothing left to evict")
			return
		}
		if err := e.cache.Remove(ctx, victims[0]); err != nil {
			log.Warnf("failed to evict %s: %v", victims[0], err)
			return
		}
		log.Debugf("evicted %s", victims[0])
		metrics.VideoCacheEvictions.Inc()
		victims = victims[1:]
	}
}

// CacheSize returns the bytes held by cached thumbnails whose keys start
// with prefix, DefaultCacheKeyPrefix when empty.
func (e *Engine) CacheSize(ctx context.Context, prefix string) (int64, error) {
	if prefix == "" {
		prefix = DefaultCacheKeyPrefix
	}
	return e.cache.ValueBytes(ctx, prefix)
}

// ClearCache drops cached thumbnails whose keys start with prefix,
// DefaultCacheKeyPrefix when empty.
func (e *Engine) ClearCache(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		prefix = DefaultCacheKeyPrefix
	}
	return e.cache.Clear(ctx, prefix)
}

// CleanupObjectURLs revokes every object URL issued so far.
func (e *Engine) CleanupObjectURLs() int { return e.renderer.URLs.RevokeAll() }

// ClearCanvasPool empties the canvas pool and reports whether it held any.
func (e *Engine) ClearCanvasPool() bool { return e.renderer.Canvases.Clear() > 0 }

// MemoryUsage reports pooled canvases and live object URLs.
func (e *Engine) MemoryUsage() render.Usage { return e.renderer.Usage() }

// Renderer returns the renderer frames are encoded with.
func (e *Engine) Renderer() *render.Renderer { return e.renderer }
