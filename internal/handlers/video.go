package handlers

import (
	"net/http"

	"media-artwork/internal/render"
	"media-artwork/internal/video"
)

type videoTiming struct {
	LoadMs   float64   `json:"loadMs"`
	SeeksMs  []float64 `json:"seeksMs"`
	EncodeMs []float64 `json:"encodesMs"`
	TotalMs  float64   `json:"totalMs"`
}

type videoResponse struct {
	URL        string            `json:"url"`
	Thumbnails []video.Thumbnail `json:"thumbnails"`
	Timing     videoTiming       `json:"timing"`
}

func videoOptions(q *queryParams) video.Options {
	opts := video.DefaultOptions()

	if ts := q.floats("t"); ts != nil {
		opts.Timestamps = ts
	}
	opts.Size = q.integer("size", opts.Size)
	if m := q.mime(); m != nil {
		opts.Mime = m
	}
	if t := q.get("type"); t != "" {
		opts.Type = render.OutputType(t)
	}
	opts.Cache = q.boolean("cache", opts.Cache)
	opts.CacheReadOnly = q.boolean("cacheReadOnly", opts.CacheReadOnly)
	if p := q.get("prefix"); p != "" {
		opts.CacheKeyPrefix = p
	}
	opts.LoadTimeout = q.duration("loadTimeout", opts.LoadTimeout)
	opts.Debug = q.boolean("debug", false)
	return opts
}

// GetVideoThumbnail captures frames of the video named by the url parameter.
func (h *Handlers) GetVideoThumbnail(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	opts := videoOptions(q)
	if q.err != nil {
		writeEngineError(w, r, q.err)
		return
	}

	videoURL := q.get("url")
	res, err := h.video.Thumbnails(r.Context(), videoURL, opts)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	timing := videoTiming{
		LoadMs:   millis(res.Timing.Load),
		SeeksMs:  make([]float64, len(res.Timing.Seeks)),
		EncodeMs: make([]float64, len(res.Timing.Encodes)),
		TotalMs:  millis(res.Timing.Total),
	}
	for i, d := range res.Timing.Seeks {
		timing.SeeksMs[i] = millis(d)
	}
	for i, d := range res.Timing.Encodes {
		timing.EncodeMs[i] = millis(d)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, videoResponse{URL: videoURL, Thumbnails: res.Thumbnails, Timing: timing})
}
