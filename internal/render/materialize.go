package render

import (
	"errors"
	"image"
	"math"
	"time"

	"golang.org/x/image/draw"

	"media-artwork/internal/metrics"
)

// Renderer materializes images into data URIs or object URLs.
type Renderer struct {
	Canvases *CanvasPool
	URLs     *ObjectURLs
}

// NewRenderer returns a Renderer with its own pool and registry. origin is
// the host part of issued blob: URIs.
func NewRenderer(origin string) *Renderer {
	return &Renderer{
		Canvases: NewCanvasPool(),
		URLs:     NewObjectURLs(origin),
	}
}

// Output is a materialized image.
type Output struct {
	URI    string
	Type   OutputType
	Mime   MimeSpec
	Width  int // 0 when the bytes were passed through
	Height int

	DecodeTime time.Duration
	EncodeTime time.Duration
}

// Emit wraps already-encoded bytes as the requested output type.
func (r *Renderer) Emit(data []byte, mime string, typ OutputType) string {
	if typ == OutputDataURI {
		return DataURI(data, mime)
	}
	return r.URLs.Create(data, mime)
}

// NeedsTranscode reports whether opts require decoding input of inputMime.
func NeedsTranscode(inputMime string, opts OutputOptions) bool {
	if opts.Size > 0 {
		return true
	}
	if opts.Mime == nil || opts.Mime.Type == "" {
		return false
	}
	return opts.Mime.Type != inputMime || opts.Mime.Quality != nil
}

// Materialize emits data as requested by opts, transcoding only when needed.
func (r *Renderer) Materialize(data []byte, inputMime string, opts OutputOptions) (*Output, error) {
	typ := opts.Type
	if typ == "" {
		typ = OutputObjectURL
	}

	if !NeedsTranscode(inputMime, opts) {
		metrics.MaterializePassthroughTotal.Inc()
		return &Output{
			URI:  r.Emit(data, inputMime, typ),
			Type: typ,
			Mime: MimeSpec{Type: inputMime},
		}, nil
	}

	start := time.Now()
	img, err := Decode(data)
	decodeTime := time.Since(start)
	metrics.MaterializePhaseDuration.WithLabelValues("decode").Observe(decodeTime.Seconds())
	if err != nil {
		return nil, err
	}

	spec := MimeSpec{Type: inputMime}
	if opts.Mime != nil {
		if opts.Mime.Type != "" {
			spec.Type = opts.Mime.Type
		}
		spec.Quality = opts.Mime.Quality
	}
	if spec.Type == "" {
		spec.Type = MimeJPEG
	}

	out, err := r.Render(img, opts.Size, spec, typ)
	if err != nil {
		return nil, err
	}
	out.DecodeTime = decodeTime
	return out, nil
}

// TargetSize returns the destination dimensions for a source of srcW×srcH
// scaled to width (0 keeps the source size), preserving aspect ratio. The
// width is clamped to MaxCanvasDimension.
func TargetSize(srcW, srcH, width int) (int, int) {
	if width <= 0 {
		width = srcW
	}
	width = min(width, MaxCanvasDimension)
	height := int(math.Round(float64(srcH) * float64(width) / float64(srcW)))
	return max(1, width), max(1, min(height, MaxCanvasDimension))
}

// Render draws src into a pooled canvas of the target size and encodes it.
func (r *Renderer) Render(src image.Image, width int, spec MimeSpec, typ OutputType) (*Output, error) {
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("unable to determine image dimensions")
	}
	w, h := TargetSize(b.Dx(), b.Dy(), width)

	drawStart := time.Now()
	canvas := r.Canvases.Acquire(w, h)
	defer r.Canvases.Release(canvas)
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), src, b, draw.Src, nil)
	metrics.MaterializePhaseDuration.WithLabelValues("draw").Observe(time.Since(drawStart).Seconds())

	encStart := time.Now()
	data, actual, err := Encode(canvas, spec)
	encodeTime := time.Since(encStart)
	metrics.MaterializePhaseDuration.WithLabelValues("encode").Observe(encodeTime.Seconds())
	if err != nil {
		return nil, err
	}

	return &Output{
		URI:        r.Emit(data, actual.Type, typ),
		Type:       typ,
		Mime:       actual,
		Width:      w,
		Height:     h,
		EncodeTime: encodeTime,
	}, nil
}

// Usage reports what the renderer currently holds on to.
type Usage struct {
	CanvasPoolEntries int   `json:"canvasPoolEntries"`
	ActiveObjectURLs  int   `json:"activeObjectURLs"`
	ObjectURLBytes    int64 `json:"objectURLBytes"`
}

// Usage returns the current pool and registry sizes.
func (r *Renderer) Usage() Usage {
	return Usage{
		CanvasPoolEntries: r.Canvases.Len(),
		ActiveObjectURLs:  r.URLs.Len(),
		ObjectURLBytes:    r.URLs.Bytes(),
	}
}
