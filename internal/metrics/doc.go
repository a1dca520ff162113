// Package metrics provides Prometheus instrumentation for the artwork service.
//
// All metrics are prefixed with "media_artwork_" and registered through
// promauto at package initialization. They are exposed on the dedicated
// metrics port by the handlers package.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Audio Artwork Metrics
//
//   - ArtworkRequestsTotal: lookups by strategy and outcome
//   - ArtworkDuration: end-to-end lookup duration
//   - ArtworkRaceWinner: which source won a race
//   - SidecarProbesTotal: validation probes by method and verdict
//   - EmbeddedExtractionsTotal, EmbeddedFetchBytes
//
// ## Materialization Metrics
//
//   - MaterializePhaseDuration: decode, draw and encode phases
//   - MaterializePassthroughTotal: images emitted without transcoding
//   - ObjectURLsActive, CanvasPoolEntries, VipsAvailable
//
// ## Video Thumbnail Metrics
//
//   - VideoThumbnailsTotal, VideoPhaseDuration, VideoSeekRetries,
//     VideoCacheEvictions
//
// ## Storage, Fetch, Filesystem and Memory Metrics
//
//   - CacheStoreEntries, CacheStoreBytes, CacheStoreQuotaErrors
//   - FetchRequestsTotal, FetchRetriesTotal, FetchRateLimitWait
//   - Filesystem retry counters for NFS stale handles
//   - MemoryUsageRatio, MemoryPaused
//
// Gauges that mirror engine state are refreshed by a Collector, which polls a
// StatsProvider at a fixed interval.
package metrics
