package render

import (
	"fmt"
	"image"
	"sync"
)

// maxPooledPixels bounds the canvases kept for reuse to 1920x1080.
const maxPooledPixels = 1920 * 1080

// CanvasPool recycles RGBA buffers by exact size. A canvas is checked out by
// Acquire and must be handed back with Release; two callers never share one.
type CanvasPool struct {
	mu     sync.Mutex
	byKey  map[string][]*image.NRGBA
	pooled int
}

// NewCanvasPool returns an empty pool.
func NewCanvasPool() *CanvasPool {
	return &CanvasPool{byKey: make(map[string][]*image.NRGBA)}
}

func canvasKey(w, h int) string { return fmt.Sprintf("%dx%d", w, h) }

// Acquire returns a cleared w×h canvas.
func (p *CanvasPool) Acquire(w, h int) *image.NRGBA {
	key := canvasKey(w, h)
	p.mu.Lock()
	if list := p.byKey[key]; len(list) > 0 {
		c := list[len(list)-1]
		p.byKey[key] = list[:len(list)-1]
		p.pooled--
		p.mu.Unlock()
		clear(c.Pix)
		return c
	}
	p.mu.Unlock()
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

// Release returns a canvas to the pool. Canvases above 1920x1080 are dropped.
func (p *CanvasPool) Release(c *image.NRGBA) {
	if c == nil {
		return
	}
	b := c.Bounds()
	if b.Dx()*b.Dy() > maxPooledPixels {
		return
	}
	key := canvasKey(b.Dx(), b.Dy())
	p.mu.Lock()
	p.byKey[key] = append(p.byKey[key], c)
	p.pooled++
	p.mu.Unlock()
}

// Clear drops every pooled canvas and returns how many were held.
func (p *CanvasPool) Clear() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.pooled
	p.byKey = make(map[string][]*image.NRGBA)
	p.pooled = 0
	return n
}

// Len returns the number of pooled canvases.
func (p *CanvasPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pooled
}
