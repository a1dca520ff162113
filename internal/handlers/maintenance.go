package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-artwork/internal/memory"
	"media-artwork/internal/render"
	"media-artwork/internal/video"
)

// CacheStats reports bytes held by the video thumbnail cache and by
// sidecar verdicts.
type CacheStats struct {
	Prefix       string `json:"prefix"`
	VideoBytes   int64  `json:"videoBytes"`
	SidecarBytes int64  `json:"sidecarBytes"`
}

// GetCacheStats returns cache sizes. The prefix parameter scopes the video
// cache and defaults to the standard key prefix.
func (h *Handlers) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = video.DefaultCacheKeyPrefix
	}

	videoBytes, err := h.video.CacheSize(r.Context(), prefix)
	if err != nil {
		writeJSONError(w, "failed to measure video cache: "+err.Error(), http.StatusInternalServerError)
		return
	}
	sidecarBytes, err := h.artwork.CacheSize(r.Context(), r.URL.Query().Get("sidecarPrefix"))
	if err != nil {
		writeJSONError(w, "failed to measure sidecar cache: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, CacheStats{Prefix: prefix, VideoBytes: videoBytes, SidecarBytes: sidecarBytes})
}

// ClearCache removes cached video thumbnails under prefix. With
// sidecar=true the sidecar verdicts are dropped as well.
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	withSidecar := q.boolean("sidecar", false)
	if q.err != nil {
		writeEngineError(w, r, q.err)
		return
	}

	removed, err := h.video.ClearCache(r.Context(), q.get("prefix"))
	if err != nil {
		writeJSONError(w, "failed to clear video cache: "+err.Error(), http.StatusInternalServerError)
		return
	}
	resp := map[string]int{"videoRemoved": removed}
	if withSidecar {
		n, err := h.artwork.ClearCache(r.Context(), q.get("sidecarPrefix"))
		if err != nil {
			writeJSONError(w, "failed to clear sidecar cache: "+err.Error(), http.StatusInternalServerError)
			return
		}
		resp["sidecarRemoved"] = n
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}

// CleanupObjectURLs revokes every issued blob: URI.
func (h *Handlers) CleanupObjectURLs(w http.ResponseWriter, _ *http.Request) {
	revoked := h.artwork.CleanupObjectURLs()
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int{"revoked": revoked})
}

// ClearCanvasPool drops pooled canvases.
func (h *Handlers) ClearCanvasPool(w http.ResponseWriter, _ *http.Request) {
	cleared := h.video.ClearCanvasPool()
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]bool{"cleared": cleared})
}

// MemoryResponse combines renderer bookkeeping with Go heap figures.
type MemoryResponse struct {
	render.Usage
	Heap *memory.Usage `json:"heap,omitempty"`
}

// GetMemoryUsage reports pooled canvases, live object URLs and heap usage.
func (h *Handlers) GetMemoryUsage(w http.ResponseWriter, _ *http.Request) {
	resp := MemoryResponse{Usage: h.artwork.MemoryUsage()}
	if h.monitor != nil {
		heap := h.monitor.Snapshot()
		resp.Heap = &heap
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, resp)
}

// GetBlob serves the bytes behind a blob: URI issued by the renderer.
func (h *Handlers) GetBlob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	data, mime, ok := h.renderer.URLs.Lookup(id)
	if !ok {
		http.Error(w, "Object URL not found or revoked", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(data); err != nil {
		// Client went away.
		return
	}
}
