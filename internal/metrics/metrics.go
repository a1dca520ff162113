package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_artwork_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_artwork_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_artwork_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Audio artwork metrics
var (
	ArtworkRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_artwork_artwork_requests_total",
			Help: "Total number of audio artwork lookups by strategy and outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: found, not_found, aborted, invalid
	)

	ArtworkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_artwork_artwork_duration_seconds",
			Help:    "End-to-end audio artwork lookup duration by strategy",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"strategy"},
	)

	ArtworkRaceWinner = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_artwork_artwork_race_winner_total",
			Help: "Winning source of race-strategy lookups",
		},
		[]string{"source"}, // sidecar, embedded, cache
	)

	SidecarProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_artwork_sidecar_probes_total",
			Help: "Sidecar validation probes by method and verdict",
		},
		[]string{"method", "verdict"}, // verdict: true, false, indeterminate, cached
	)

	EmbeddedExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_artwork_embedded_extractions_total",
			Help: "Embedded artwork extraction attempts by container and status",
		},
		[]string{"container", "status"},
	)

	EmbeddedFetchBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_artwork_embedded_fetch_bytes",
			Help:    "Bytes fetched per embedded artwork extraction",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)
)

// Image materialization metrics
var (
	MaterializePhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_artwork_materialize_phase_duration_seconds",
			Help:    "Duration of materialization phases",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"phase"}, // decode, draw, encode
	)

	MaterializePassthroughTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_artwork_materialize_passthrough_total",
			Help: "Images emitted without transcoding",
		},
	)

	ObjectURLsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_artwork_object_urls_active",
			Help: "Number of registered object URLs not yet revoked",
		},
	)

	CanvasPoolEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_artwork_canvas_pool_entries",
			Help: "Number of pooled canvases",
		},
	)

	VipsAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_artwork_vips_available",
			Help: "Whether libvips is initialized (1) or not (0)",
		},
	)
)

// Video thumbnail metrics
var (
	VideoThumbnailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_artwork_video_thumbnails_total",
			Help: "Video frame thumbnails by status",
		},
		[]string{"status"}, // generated, cache_hit, error
	)

	VideoPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_artwork_video_phase_duration_seconds",
			Help:    "Duration of video thumbnail phases",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"phase"}, // load, seek, encode
	)

	VideoSeekRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_artwork_video_seek_retries_total",
			Help: "Seek attempts beyond the first",
		},
	)

	VideoCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_artwork_video_cache_evictions_total",
			Help: "Cache entries evicted after quota errors",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_artwork_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_artwork_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_artwork_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Cache store metrics
var (
	CacheStoreEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_artwork_cache_store_entries",
			Help: "Entries in the key/value stores",
		},
		[]string{"store"}, // persistent, session
	)

	CacheStoreBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_artwork_cache_store_bytes",
			Help: "Bytes used by the key/value stores",
		},
		[]string{"store"},
	)

	CacheStoreQuotaErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_artwork_cache_store_quota_errors_total",
			Help: "Writes rejected because the store quota was exceeded",
		},
		[]string{"store"},
	)
)

// Outbound fetch metrics
var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_artwork_fetch_requests_total",
			Help: "Outbound media requests by method and status class",
		},
		[]string{"method", "status"},
	)

	FetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_artwork_fetch_retries_total",
			Help: "Outbound requests retried after transport errors",
		},
	)

	FetchRateLimitWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_artwork_fetch_rate_limit_wait_seconds",
			Help:    "Time spent waiting on per-host rate limits",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_artwork_filesystem_retry_attempts_total",
			Help: "Filesystem operation retry attempts after stale NFS handles",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_artwork_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_artwork_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_artwork_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_artwork_filesystem_retry_duration_seconds",
			Help:    "Total duration of retried filesystem operations",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_artwork_memory_usage_ratio",
			Help: "Go heap usage relative to the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_artwork_memory_paused",
			Help: "Whether background work is paused for memory pressure (1) or not (0)",
		},
	)
)
