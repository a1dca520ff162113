package handlers

import (
	"sync/atomic"
	"time"

	"media-artwork/internal/artwork"
	"media-artwork/internal/memory"
	"media-artwork/internal/render"
	"media-artwork/internal/video"
)

// Handlers serves the artwork and video thumbnail API.
type Handlers struct {
	artwork  *artwork.Engine
	video    *video.Engine
	renderer *render.Renderer
	monitor  *memory.Monitor

	startTime time.Time
	ready     atomic.Bool
}

// New returns Handlers over engines that share renderer. monitor may be nil.
func New(art *artwork.Engine, vid *video.Engine, renderer *render.Renderer, monitor *memory.Monitor) *Handlers {
	return &Handlers{
		artwork:   art,
		video:     vid,
		renderer:  renderer,
		monitor:   monitor,
		startTime: time.Now(),
	}
}

// SetReady flips the readiness probe.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}
