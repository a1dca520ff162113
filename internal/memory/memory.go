package memory

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"media-artwork/internal/logging"
	"media-artwork/internal/metrics"
)

// Config holds memory management configuration
type Config struct {
	// MemoryLimitBytes is the soft memory limit (0 = use GOMEMLIMIT or no limit)
	MemoryLimitBytes int64

	// HighWaterMark is the fraction of the limit at which callers should throttle (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the fraction at which background work pauses (0.0-1.0)
	CriticalWaterMark float64

	// CheckInterval is how often heap usage is sampled
	CheckInterval time.Duration
}

// DefaultConfig returns the thresholds used by the server and prerender.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Usage is a point-in-time view of heap usage against the limit.
type Usage struct {
	HeapAlloc  uint64  `json:"heapAlloc"`
	HeapInuse  uint64  `json:"heapInuse"`
	Limit      int64   `json:"limit"`
	Ratio      float64 `json:"ratio"`
	Paused     bool    `json:"paused"`
	NumGC      uint32  `json:"numGC"`
	Goroutines int     `json:"goroutines"`
}

// Monitor samples heap usage and pauses memory-hungry work when the
// critical water mark is crossed. Work resumes once usage drops below the
// high water mark.
type Monitor struct {
	config Config
	limit  int64

	stopOnce sync.Once
	stop     chan struct{}

	mu      sync.RWMutex
	last    runtime.MemStats
	paused  bool
	resumed chan struct{}
}

// NewMonitor creates a monitor. Without an explicit limit it falls back to
// GOMEMLIMIT; with neither, backpressure is disabled but Snapshot still
// reports heap figures.
func NewMonitor(config Config) *Monitor {
	limit := config.MemoryLimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < math.MaxInt64 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %s", formatBytes(limit))
		}
	}
	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit configured, backpressure disabled")
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultConfig().CheckInterval
	}

	return &Monitor{
		config:  config,
		limit:   limit,
		stop:    make(chan struct{}),
		resumed: make(chan struct{}),
	}
}

// Start begins sampling in the background.
func (m *Monitor) Start() {
	m.sample()
	if m.limit == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sample()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and releases any waiters.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) sample() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = stats
	if m.limit <= 0 {
		return
	}

	usage := float64(stats.HeapAlloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= m.config.CriticalWaterMark && !m.paused:
		logging.Warn("Memory critical (%.1f%% of limit), pausing background work", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		go runtime.GC()
	case usage < m.config.HighWaterMark && m.paused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming background work", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resumed)
		m.resumed = make(chan struct{})
	}
}

// Wait blocks while work is paused. It returns ctx's error if ctx ends
// first, and nil immediately when not paused or once the monitor stops.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.RLock()
	paused, resumed := m.paused, m.resumed
	m.mu.RUnlock()
	if !paused {
		return nil
	}

	select {
	case <-resumed:
		return nil
	case <-m.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShouldThrottle reports whether heap usage is above the high water mark.
func (m *Monitor) ShouldThrottle() bool {
	if m.limit <= 0 {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.last.HeapAlloc) >= float64(m.limit)*m.config.HighWaterMark
}

// IsPaused reports whether background work is paused.
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Snapshot returns the most recent sample.
func (m *Monitor) Snapshot() Usage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u := Usage{
		HeapAlloc:  m.last.HeapAlloc,
		HeapInuse:  m.last.HeapInuse,
		Limit:      m.limit,
		Paused:     m.paused,
		NumGC:      m.last.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
	if m.limit > 0 {
		u.Ratio = float64(m.last.HeapAlloc) / float64(m.limit)
	}
	return u
}
