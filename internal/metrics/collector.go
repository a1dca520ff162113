package metrics

import (
	"time"

	"media-artwork/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current statistics
type Stats struct {
	PersistentEntries int
	PersistentBytes   int64
	SessionEntries    int
	SessionBytes      int64
	ObjectURLs        int
	CanvasPoolEntries int
	MemoryUsageRatio  float64
	MemoryPaused      bool
}

// Collector periodically collects and updates gauge metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	CacheStoreEntries.WithLabelValues("persistent").Set(float64(stats.PersistentEntries))
	CacheStoreBytes.WithLabelValues("persistent").Set(float64(stats.PersistentBytes))
	CacheStoreEntries.WithLabelValues("session").Set(float64(stats.SessionEntries))
	CacheStoreBytes.WithLabelValues("session").Set(float64(stats.SessionBytes))
	ObjectURLsActive.Set(float64(stats.ObjectURLs))
	CanvasPoolEntries.Set(float64(stats.CanvasPoolEntries))
	MemoryUsageRatio.Set(stats.MemoryUsageRatio)
	if stats.MemoryPaused {
		MemoryPaused.Set(1)
	} else {
		MemoryPaused.Set(0)
	}

	logging.Debug("Metrics collected: cache=%d entries/%d bytes, session=%d entries, objectURLs=%d, canvases=%d",
		stats.PersistentEntries, stats.PersistentBytes, stats.SessionEntries, stats.ObjectURLs, stats.CanvasPoolEntries)
}
