package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, strategy := range []string{"race", "all", "ordered"} {
		for _, outcome := range []string{"found", "not_found", "aborted", "invalid"} {
			ArtworkRequestsTotal.WithLabelValues(strategy, outcome)
		}
		ArtworkDuration.WithLabelValues(strategy)
	}

	for _, source := range []string{"sidecar", "embedded", "cache"} {
		ArtworkRaceWinner.WithLabelValues(source)
	}

	for _, method := range []string{"head", "get-range", "img"} {
		for _, verdict := range []string{"true", "false", "indeterminate", "cached"} {
			SidecarProbesTotal.WithLabelValues(method, verdict)
		}
	}

	for _, container := range []string{"mp3", "m4a", "mka", "tag"} {
		for _, status := range []string{"found", "not_found", "error"} {
			EmbeddedExtractionsTotal.WithLabelValues(container, status)
		}
	}

	for _, phase := range []string{"decode", "draw", "encode"} {
		MaterializePhaseDuration.WithLabelValues(phase)
	}

	for _, status := range []string{"generated", "cache_hit", "error"} {
		VideoThumbnailsTotal.WithLabelValues(status)
	}
	for _, phase := range []string{"load", "seek", "encode"} {
		VideoPhaseDuration.WithLabelValues(phase)
	}

	for _, store := range []string{"persistent", "session"} {
		CacheStoreEntries.WithLabelValues(store)
		CacheStoreBytes.WithLabelValues(store)
		CacheStoreQuotaErrors.WithLabelValues(store)
	}

	volumes := []string{"media", "cache", "database", "unknown"}
	for _, op := range []string{"stat", "open"} {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
