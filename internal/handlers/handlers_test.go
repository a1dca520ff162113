package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"media-artwork/internal/artwork"
	"media-artwork/internal/fetch"
	"media-artwork/internal/kvstore"
	"media-artwork/internal/mediafixture"
	"media-artwork/internal/memory"
	"media-artwork/internal/render"
	"media-artwork/internal/video"
)

// fakePlayer serves solid frames of a fixed size.
type fakePlayer struct {
	meta    video.Metadata
	loadErr error
	pos     float64
}

func (p *fakePlayer) Load(context.Context, string) (video.Metadata, error) {
	return p.meta, p.loadErr
}

func (p *fakePlayer) Seek(_ context.Context, t float64) (float64, error) {
	p.pos = t
	return t, nil
}

func (p *fakePlayer) Frame(context.Context) (video.Frame, error) {
	return video.Frame{Image: mediafixture.Image(p.meta.Width, p.meta.Height, false), MediaTime: p.pos}, nil
}

func (p *fakePlayer) Release() {}

type testEnv struct {
	handlers *Handlers
	router   *mux.Router
	media    *httptest.Server
	renderer *render.Renderer
	player   *fakePlayer
}

func newTestEnv(t *testing.T, files map[string][]byte) *testEnv {
	t.Helper()

	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, r.URL.Path, time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(media.Close)

	renderer := render.NewRenderer("http://localhost")
	player := &fakePlayer{meta: video.Metadata{Duration: 10, Width: 640, Height: 360, SeekableEnd: 10}}

	art, err := artwork.NewEngine(artwork.Config{
		Doer:     media.Client(),
		BaseURL:  media.URL + "/",
		Session:  kvstore.NewMemory(0),
		Renderer: renderer,
	})
	if err != nil {
		t.Fatalf("artwork.NewEngine failed: %v", err)
	}
	vid, err := video.NewEngine(video.Config{
		Players:  func() video.Player { p := *player; return &p },
		Cache:    kvstore.NewMemory(0),
		Renderer: renderer,
	})
	if err != nil {
		t.Fatalf("video.NewEngine failed: %v", err)
	}

	h := New(art, vid, renderer, memory.NewMonitor(memory.DefaultConfig()))
	h.SetReady(true)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return &testEnv{handlers: h, router: router, media: media, renderer: renderer, player: player}
}

func (env *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func mp3WithCover() []byte {
	tag := mediafixture.ID3v23(64, mediafixture.APIC{Mime: "image/jpeg", PictureType: 3, Data: mediafixture.JPEG(16, 16)})
	return mediafixture.MP3(tag, len(tag)+2048)
}

func TestGetArtworkEmbedded(t *testing.T) {
	env := newTestEnv(t, map[string][]byte{"/album/01.mp3": mp3WithCover()})

	rec := env.do(t, http.MethodGet, "/api/artwork?url=album/01.mp3&sources=embedded&type=dataURI")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}
	resp := decode[artworkResponse](t, rec)
	if resp.Best == nil || resp.Best.Source != artwork.SourceEmbedded || resp.Best.Container != "mp3" {
		t.Fatalf("Unexpected best result %+v", resp.Best)
	}
	if !strings.HasPrefix(resp.Best.URI, "data:image/") {
		t.Errorf("Expected a data URI, got %.40q", resp.Best.URI)
	}
	if len(resp.Items) != 1 {
		t.Errorf("Expected one item, got %d", len(resp.Items))
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
}

func TestGetArtworkSidecar(t *testing.T) {
	env := newTestEnv(t, map[string][]byte{
		"/album/folder.jpg": mediafixture.JPEG(8, 8),
		"/album/01.mp3":     []byte("no tag here"),
	})

	target := "/api/artwork?validate=head&url=" + url.QueryEscape(env.media.URL+"/album/01.mp3")
	rec := env.do(t, http.MethodGet, target)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}
	resp := decode[artworkResponse](t, rec)
	if resp.Best.URI != env.media.URL+"/album/folder.jpg" {
		t.Errorf("Expected folder.jpg, got %s", resp.Best.URI)
	}
}

func TestGetArtworkErrors(t *testing.T) {
	env := newTestEnv(t, map[string][]byte{"/silent.mp3": make([]byte, 64)})

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantField  string
	}{
		{"missing url", "/api/artwork", http.StatusBadRequest, ""},
		{"unknown source", "/api/artwork?url=a.mp3&sources=radio", http.StatusBadRequest, ""},
		{"malformed size", "/api/artwork?url=a.mp3&size=big", http.StatusBadRequest, "size"},
		{"malformed timeout", "/api/artwork?url=a.mp3&timeout=soon", http.StatusBadRequest, "timeout"},
		{"no artwork", "/api/artwork?url=silent.mp3&sources=embedded", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.target)
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body)
			}
			resp := decode[errorResponse](t, rec)
			if resp.Error == "" {
				t.Error("Expected an error message")
			}
			if tt.wantField != "" {
				if _, ok := resp.Fields[tt.wantField]; !ok {
					t.Errorf("Expected field %q in %v", tt.wantField, resp.Fields)
				}
			}
		})
	}
}

func TestGetVideoThumbnail(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/video-thumbnail?url=https://videos.test/clip.mp4&t=0.5&size=320&mime=image/png")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}
	resp := decode[videoResponse](t, rec)
	if len(resp.Thumbnails) != 1 {
		t.Fatalf("Expected one thumbnail, got %d", len(resp.Thumbnails))
	}
	th := resp.Thumbnails[0]
	if th.SeekTime != 5 || th.Width != 320 || th.Height != 180 {
		t.Errorf("Unexpected thumbnail seek=%v %dx%d", th.SeekTime, th.Width, th.Height)
	}
	if !strings.HasPrefix(th.URI, "data:image/png;base64,") {
		t.Errorf("Expected a PNG data URI, got %.40q", th.URI)
	}
	if len(resp.Timing.SeeksMs) != 1 || len(resp.Timing.EncodeMs) != 1 {
		t.Errorf("Unexpected timing %+v", resp.Timing)
	}
}

func TestGetVideoThumbnailErrors(t *testing.T) {
	tests := []struct {
		name       string
		meta       video.Metadata
		loadErr    error
		query      string
		wantStatus int
	}{
		{"zero dimensions", video.Metadata{Duration: 4}, nil, "", http.StatusUnprocessableEntity},
		{"load failure", video.Metadata{}, errors.New("connection refused"), "", http.StatusBadGateway},
		{"negative timestamp", video.Metadata{Width: 2, Height: 2}, nil, "&t=-1", http.StatusBadRequest},
		{"oversized", video.Metadata{Width: 2, Height: 2}, nil, "&size=40000", http.StatusBadRequest},
		{"bad type", video.Metadata{Width: 2, Height: 2}, nil, "&type=file", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.player.meta = tt.meta
			env.player.loadErr = tt.loadErr

			rec := env.do(t, http.MethodGet, "/api/video-thumbnail?url=https://videos.test/clip.mp4"+tt.query)
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body)
			}
		})
	}
}

func TestBlobLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/video-thumbnail?url=https://videos.test/clip.mp4&type=objectURL&mime=image/png&size=64")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}
	uri := decode[videoResponse](t, rec).Thumbnails[0].URI
	id, ok := env.renderer.URLs.ID(uri)
	if !ok {
		t.Fatalf("Not an object URL: %s", uri)
	}

	rec = env.do(t, http.MethodGet, "/blob/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for blob, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != render.MimePNG {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("Blob body is not a PNG")
	}

	rec = env.do(t, http.MethodHead, "/blob/"+id)
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("HEAD: status %d, %d body bytes", rec.Code, rec.Body.Len())
	}

	rec = env.do(t, http.MethodPost, "/api/object-urls/cleanup")
	if got := decode[map[string]int](t, rec)["revoked"]; got != 1 {
		t.Errorf("Expected 1 revoked URL, got %d", got)
	}

	rec = env.do(t, http.MethodGet, "/blob/"+id)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after cleanup, got %d", rec.Code)
	}
}

func TestCacheEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, ts := range []string{"1", "2"} {
		rec := env.do(t, http.MethodGet, "/api/video-thumbnail?cache=true&size=32&url=https://videos.test/clip.mp4&t="+ts)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/cache")
	stats := decode[CacheStats](t, rec)
	if stats.Prefix != video.DefaultCacheKeyPrefix || stats.VideoBytes <= 0 {
		t.Fatalf("Unexpected cache stats %+v", stats)
	}

	rec = env.do(t, http.MethodGet, "/api/video-thumbnail?cache=true&cacheReadOnly=true&size=32&url=https://videos.test/clip.mp4&t=1")
	resp := decode[videoResponse](t, rec)
	if len(resp.Thumbnails) != 1 || !resp.Thumbnails[0].Cached {
		t.Errorf("Expected a cached thumbnail, got %+v", resp.Thumbnails)
	}

	rec = env.do(t, http.MethodDelete, "/api/cache?sidecar=true")
	cleared := decode[map[string]int](t, rec)
	if cleared["videoRemoved"] != 2 {
		t.Errorf("Expected 2 removed entries, got %v", cleared)
	}
	if _, ok := cleared["sidecarRemoved"]; !ok {
		t.Error("Expected sidecarRemoved to be reported")
	}

	rec = env.do(t, http.MethodGet, "/api/cache")
	if stats := decode[CacheStats](t, rec); stats.VideoBytes != 0 {
		t.Errorf("Expected an empty cache, got %d bytes", stats.VideoBytes)
	}

	rec = env.do(t, http.MethodDelete, "/api/cache?sidecar=maybe")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a malformed flag, got %d", rec.Code)
	}
}

func TestMemoryAndCanvasPool(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/api/video-thumbnail?url=https://videos.test/clip.mp4&size=64&mime=image/png")

	rec := env.do(t, http.MethodGet, "/api/memory")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var usage map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&usage); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"canvasPoolEntries", "activeObjectURLs", "heap"} {
		if _, ok := usage[key]; !ok {
			t.Errorf("Missing %q in %v", key, usage)
		}
	}

	rec = env.do(t, http.MethodPost, "/api/canvas-pool/clear")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	decode[map[string]bool](t, rec)
	if n := env.renderer.Canvases.Len(); n != 0 {
		t.Errorf("Expected an empty pool, got %d entries", n)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	env.handlers.SetReady(false)

	tests := []struct {
		path       string
		ready      bool
		wantStatus int
		wantBody   string
	}{
		{"/health", false, http.StatusServiceUnavailable, statusStarting},
		{"/healthz", true, http.StatusOK, statusHealthy},
		{"/readyz", false, http.StatusServiceUnavailable, "not_ready"},
		{"/readyz", true, http.StatusOK, "ready"},
		{"/livez", false, http.StatusOK, "alive"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s ready=%v", tt.path, tt.ready), func(t *testing.T) {
			env.handlers.SetReady(tt.ready)
			rec := env.do(t, http.MethodGet, tt.path)
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `"`+tt.wantBody+`"`) {
				t.Errorf("Expected %q in body %s", tt.wantBody, rec.Body)
			}
		})
	}
}

func TestGetVersion(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/version")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	info := decode[map[string]string](t, rec)
	if info["version"] == "" || info["goVersion"] == "" {
		t.Errorf("Incomplete build info %v", info)
	}
}

func TestWriteEngineError(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name       string
		ctx        context.Context
		err        error
		wantStatus int
	}{
		{"abort while client waits", context.Background(), &fetch.AbortError{Cause: context.Canceled}, http.StatusServiceUnavailable},
		{"client went away", cancelled, &fetch.AbortError{Cause: context.Canceled}, statusClientClosedRequest},
		{"fetch timeout", context.Background(), fmt.Errorf("probe: %w", fetch.ErrTimeout), http.StatusGatewayTimeout},
		{"not found", context.Background(), &artwork.NotFoundError{}, http.StatusNotFound},
		{"upstream 404", context.Background(), &fetch.HTTPError{StatusCode: 404, Status: "Not Found"}, http.StatusNotFound},
		{"upstream 500", context.Background(), &fetch.HTTPError{StatusCode: 500, Status: "Internal Server Error"}, http.StatusBadGateway},
		{"too large", context.Background(), &fetch.MaxBytesError{Limit: 10}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/artwork", nil).WithContext(tt.ctx)
			rec := httptest.NewRecorder()
			writeEngineError(rec, req, tt.err)
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestQueryParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?t=0.1,2&t=30&names=cover,+folder&timeout=1500&loadTimeout=2s", nil)
	q := newQueryParams(req)

	if got := q.floats("t"); len(got) != 3 || got[0] != 0.1 || got[2] != 30 {
		t.Errorf("floats = %v", got)
	}
	if got := q.list("names"); len(got) != 2 || got[1] != "folder" {
		t.Errorf("list = %q", got)
	}
	if got := q.duration("timeout", 0); got != 1500*time.Millisecond {
		t.Errorf("duration(ms) = %v", got)
	}
	if got := q.duration("loadTimeout", 0); got != 2*time.Second {
		t.Errorf("duration = %v", got)
	}
	if q.mime() != nil {
		t.Error("mime should be nil when absent")
	}
	if q.err != nil {
		t.Errorf("Unexpected error %v", q.err)
	}
}
