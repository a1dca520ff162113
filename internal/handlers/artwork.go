package handlers

import (
	"net/http"

	"media-artwork/internal/artwork"
	"media-artwork/internal/render"
	"media-artwork/internal/sidecar"
)

type artworkTiming struct {
	TotalMs  float64 `json:"totalMs"`
	FetchMs  float64 `json:"fetchMs"`
	DecodeMs float64 `json:"decodeMs"`
	EncodeMs float64 `json:"encodeMs"`
}

type artworkResponse struct {
	URL    string           `json:"url"`
	Best   *artwork.Result  `json:"best"`
	Items  []artwork.Result `json:"items"`
	Timing artworkTiming    `json:"timing"`
}

// artworkOptions builds engine options from the query string on top of
// artwork.DefaultOptions.
func artworkOptions(q *queryParams) artwork.Options {
	opts := artwork.DefaultOptions()

	if sources := q.list("sources"); sources != nil {
		opts.Sources = make([]artwork.Source, len(sources))
		for i, s := range sources {
			opts.Sources[i] = artwork.Source(s)
		}
	}
	if s := q.get("strategy"); s != "" {
		opts.SourceStrategy = artwork.Strategy(s)
	}
	if names := q.list("names"); names != nil {
		opts.SidecarNames = names
	}
	if exts := q.list("exts"); exts != nil {
		opts.SidecarExts = exts
	}
	opts.SidecarIncludeBasename = q.boolean("basename", opts.SidecarIncludeBasename)
	if v := q.get("validate"); v != "" {
		opts.SidecarValidate = sidecar.Mode(v)
	}
	opts.SidecarConcurrency = q.integer("concurrency", opts.SidecarConcurrency)
	opts.SidecarMaxResults = q.integer("maxResults", opts.SidecarMaxResults)
	opts.SidecarCache = q.boolean("sidecarCache", opts.SidecarCache)
	if p := q.get("prefix"); p != "" {
		opts.SidecarCacheKeyPrefix = p
	}

	opts.Embedded.MaxBytes = int64(q.integer("maxBytes", int(opts.Embedded.MaxBytes)))
	if p := q.get("prefer"); p != "" {
		opts.Embedded.PreferPicture = p
	}

	if t := q.get("type"); t != "" {
		opts.Output.Type = render.OutputType(t)
	}
	opts.Output.Mime = q.mime()
	opts.Output.Size = q.integer("size", opts.Output.Size)

	opts.Timeout = q.duration("timeout", opts.Timeout)
	opts.Debug = q.boolean("debug", false)
	return opts
}

// GetArtwork resolves artwork for the audio file named by the url parameter.
func (h *Handlers) GetArtwork(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	opts := artworkOptions(q)
	if q.err != nil {
		writeEngineError(w, r, q.err)
		return
	}

	audioURL := q.get("url")
	res, err := h.artwork.Thumbnail(r.Context(), audioURL, opts)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, artworkResponse{
		URL:   audioURL,
		Best:  res.Best,
		Items: res.Items,
		Timing: artworkTiming{
			TotalMs:  millis(res.Timing.Total),
			FetchMs:  millis(res.Timing.FetchTotal),
			DecodeMs: millis(res.Timing.DecodeTotal),
			EncodeMs: millis(res.Timing.EncodeTotal),
		},
	})
}
