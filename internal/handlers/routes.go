package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the API, blob and health endpoints on r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/artwork", h.GetArtwork).Methods(http.MethodGet)
	api.HandleFunc("/video-thumbnail", h.GetVideoThumbnail).Methods(http.MethodGet)
	api.HandleFunc("/cache", h.GetCacheStats).Methods(http.MethodGet)
	api.HandleFunc("/cache", h.ClearCache).Methods(http.MethodDelete)
	api.HandleFunc("/object-urls/cleanup", h.CleanupObjectURLs).Methods(http.MethodPost)
	api.HandleFunc("/canvas-pool/clear", h.ClearCanvasPool).Methods(http.MethodPost)
	api.HandleFunc("/memory", h.GetMemoryUsage).Methods(http.MethodGet)

	r.HandleFunc("/blob/{id}", h.GetBlob).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
}
