// Package startup handles configuration loading and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - MEDIA_DIR: root directory served to file:// media URLs (default: /media)
//   - CACHE_DIR: scratch directory (default: /cache)
//   - DATABASE_DIR: directory of the persistent thumbnail cache (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: enable or disable the metrics server (default: true)
//   - PUBLIC_URL: base for relative media URLs and blob: URIs
//   - FETCH_TIMEOUT: per-request timeout for media fetches (default: 15s)
//   - THUMBNAIL_CACHE_QUOTA: byte quota of the thumbnail cache (default: 5 MiB)
//   - PROBE_RATE_LIMIT, PROBE_RATE_BURST: per-host request rate (0 disables)
//   - FFMPEG_PATH, FFPROBE_PATH: video tool binaries
//   - VIPS_ENABLED: use libvips for WebP output (default: true)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: log health check requests (default: true)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// An unwritable DATABASE_DIR is not fatal: [Config.PersistentCache] is
// cleared and the caller falls back to an in-memory cache.
package startup
