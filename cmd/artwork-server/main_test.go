package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"media-artwork/internal/artwork"
	"media-artwork/internal/fetch"
	"media-artwork/internal/handlers"
	"media-artwork/internal/kvstore"
	"media-artwork/internal/render"
	"media-artwork/internal/startup"
	"media-artwork/internal/video"
)

func newTestHandlers(t *testing.T, renderer *render.Renderer) *handlers.Handlers {
	t.Helper()
	art, err := artwork.NewEngine(artwork.Config{Doer: fetch.NewClient(fetch.DefaultClientConfig()), Renderer: renderer})
	if err != nil {
		t.Fatal(err)
	}
	vid, err := video.NewEngine(video.Config{Players: video.NewFFmpegFactory("", "", ""), Renderer: renderer})
	if err != nil {
		t.Fatal(err)
	}
	return handlers.New(art, vid, renderer, nil)
}

func TestStoreStatsAdapter(t *testing.T) {
	ctx := context.Background()
	persistent := kvstore.NewMemory(0)
	session := kvstore.NewMemory(0)
	if err := persistent.Set(ctx, "video-thumbnail.js-a", "data:image/png;base64,AAAA"); err != nil {
		t.Fatal(err)
	}
	if err := session.Set(ctx, "k1", "1"); err != nil {
		t.Fatal(err)
	}
	renderer := render.NewRenderer("http://localhost")
	renderer.URLs.Create([]byte{1, 2, 3}, "image/png")

	stats := (&storeStatsAdapter{persistent: persistent, session: session, renderer: renderer}).GetStats()
	if stats.PersistentEntries != 1 || stats.PersistentBytes <= 0 {
		t.Errorf("persistent stats = %d/%d", stats.PersistentEntries, stats.PersistentBytes)
	}
	if stats.SessionEntries != 1 {
		t.Errorf("SessionEntries = %d", stats.SessionEntries)
	}
	if stats.ObjectURLs != 1 {
		t.Errorf("ObjectURLs = %d", stats.ObjectURLs)
	}
}

func TestOpenThumbnailCacheFallsBackToMemory(t *testing.T) {
	cfg := &startup.Config{ThumbnailCacheQuota: 1024}
	store, closeFn := openThumbnailCache(context.Background(), cfg)
	defer closeFn()
	if _, ok := store.(*kvstore.Memory); !ok {
		t.Fatalf("Expected an in-memory store, got %T", store)
	}
}

func TestOpenThumbnailCacheSQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := &startup.Config{PersistentCache: true, DatabasePath: filepath.Join(dir, "cache.db")}
	store, closeFn := openThumbnailCache(context.Background(), cfg)
	defer closeFn()
	if _, ok := store.(*kvstore.SQLite); !ok {
		t.Fatalf("Expected a SQLite store, got %T", store)
	}
}

func TestPublicOrigin(t *testing.T) {
	if got := publicOrigin(&startup.Config{Port: "8080"}); got != "http://localhost:8080" {
		t.Errorf("publicOrigin() = %q", got)
	}
	if got := publicOrigin(&startup.Config{PublicURL: "https://art.example"}); got != "https://art.example" {
		t.Errorf("publicOrigin() = %q", got)
	}
}

func TestSetupRouter(t *testing.T) {
	h := newTestHandlers(t, render.NewRenderer("http://localhost"))
	h.SetReady(true)
	router := setupRouter(h, &startup.Config{})

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/livez", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/version", http.StatusOK},
		{http.MethodGet, "/api/memory", http.StatusOK},
		{http.MethodGet, "/blob/missing", http.StatusNotFound},
		{http.MethodGet, "/api/artwork", http.StatusBadRequest},
		{http.MethodPut, "/api/cache", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestMetricsServer(t *testing.T) {
	h := newTestHandlers(t, render.NewRenderer("http://localhost"))
	srv := setupMetricsServer(h, "0")
	if srv.ReadTimeout <= 0 || srv.WriteTimeout <= 0 {
		t.Error("metrics server should have timeouts")
	}

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from /metrics, got %d", rec.Code)
	}
}
