package sidecar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"sync"
	"testing"

	"media-artwork/internal/fetch"
	"media-artwork/internal/kvstore"
	"media-artwork/internal/mediafixture"
)

type probeServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

// newProbeServer serves PNG images for the paths in images, HTML for the
// paths in pages, 500 for /broken.jpg, 405 to HEAD on /nohead.jpg and 404
// for everything else.
func newProbeServer(t *testing.T, images ...string) *probeServer {
	t.Helper()
	img := mediafixture.PNG(4, 4)
	ps := &probeServer{hits: make(map[string]int)}
	isImage := make(map[string]bool)
	for _, p := range images {
		isImage[p] = true
	}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		ps.hits[r.Method+" "+r.URL.Path]++
		ps.mu.Unlock()

		switch {
		case r.URL.Path == "/page.jpg":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		case r.URL.Path == "/broken.jpg":
			w.WriteHeader(http.StatusInternalServerError)
		case r.URL.Path == "/nohead.jpg" && r.Method == http.MethodHead:
			w.WriteHeader(http.StatusMethodNotAllowed)
		case r.URL.Path == "/nohead.jpg", r.URL.Path == "/garbage.jpg" && r.Method == http.MethodGet:
			w.Header().Set("Content-Type", "image/jpeg")
			if r.URL.Path == "/garbage.jpg" {
				w.Write([]byte("not an image at all"))
				return
			}
			w.WriteHeader(http.StatusPartialContent)
			w.Write(img[:1])
		case isImage[r.URL.Path]:
			w.Header().Set("Content-Type", "image/png")
			w.Write(img)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *probeServer) total() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	n := 0
	for _, v := range ps.hits {
		n += v
	}
	return n
}

func TestCandidateGroups(t *testing.T) {
	tests := []struct {
		name  string
		audio string
		cfg   Config
		want  [][]string
	}{
		{
			name:  "names by extensions",
			audio: "https://host/music/album/01.mp3",
			cfg:   Config{Names: []string{"cover", "folder"}, Exts: []string{"jpg", "png"}},
			want: [][]string{
				{"https://host/music/album/cover.jpg", "https://host/music/album/cover.png"},
				{"https://host/music/album/folder.jpg", "https://host/music/album/folder.png"},
			},
		},
		{
			name:  "basename deduplicated against names",
			audio: "https://host/a/cover.mp3",
			cfg:   Config{Names: []string{"cover"}, Exts: []string{"jpg"}, IncludeBasename: true},
			want:  [][]string{{"https://host/a/cover.jpg"}},
		},
		{
			name:  "basename with spaces and query",
			audio: "https://host/a/My%20Song.flac?sig=1",
			cfg:   Config{Exts: []string{"jpg", "jpg"}, IncludeBasename: true},
			want:  [][]string{{"https://host/a/My%20Song.jpg"}},
		},
		{
			name:  "no extensions yields no groups",
			audio: "https://host/a/b.mp3",
			cfg:   Config{Names: []string{"cover"}},
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CandidateGroups(tt.audio, tt.cfg)
			if err != nil {
				t.Fatalf("CandidateGroups failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCandidateGroupsCustomResolver(t *testing.T) {
	cfg := Config{Names: []string{"cover"}, Exts: []string{"jpg"}}
	cfg.Resolve = func(_ *url.URL, name string) (string, error) { return "https://cdn/art/" + name, nil }
	got, err := CandidateGroups("https://host/a/b.mp3", cfg)
	if err != nil {
		t.Fatalf("CandidateGroups failed: %v", err)
	}
	if got[0][0] != "https://cdn/art/cover.jpg" {
		t.Errorf("Custom resolver not used: %v", got)
	}
}

func testConfig(mode Mode) Config {
	cfg := DefaultConfig()
	cfg.Validate = mode
	return cfg
}

func TestValidateModes(t *testing.T) {
	ps := newProbeServer(t, "/cover.jpg")

	tests := []struct {
		mode Mode
		path string
		want bool
	}{
		{ModeHead, "/cover.jpg", true},
		{ModeHead, "/page.jpg", false},
		{ModeHead, "/missing.jpg", false},
		{ModeHead, "/broken.jpg", false},
		{ModeGetRange, "/cover.jpg", true},
		{ModeGetRange, "/missing.jpg", false},
		{ModeImg, "/cover.jpg", true},
		{ModeImg, "/garbage.jpg", false},
		{ModeAuto, "/nohead.jpg", true},
		{ModeNone, "/missing.jpg", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode)+tt.path, func(t *testing.T) {
			r := NewResolver(ps.Client(), kvstore.NewMemory(0))
			got, err := r.Validate(context.Background(), ps.URL+tt.path, testConfig(tt.mode))
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Validate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateCachesDefiniteVerdicts(t *testing.T) {
	ps := newProbeServer(t)
	store := kvstore.NewMemory(0)
	r := NewResolver(ps.Client(), store)
	cfg := testConfig(ModeAuto)
	u := ps.URL + "/nohead.jpg"
	ctx := context.Background()

	if ok, err := r.Validate(ctx, u, cfg); err != nil || !ok {
		t.Fatalf("Validate = %v, %v", ok, err)
	}
	first := ps.total()
	if first != 2 {
		t.Errorf("Expected HEAD then ranged GET, got %d requests", first)
	}

	checks := map[string]string{
		CacheKey(DefaultCacheKeyPrefix, "head", u):      "-1",
		CacheKey(DefaultCacheKeyPrefix, "get-range", u): "1",
		CacheKey(DefaultCacheKeyPrefix, "any:auto", u):  "1",
	}
	for key, want := range checks {
		got, ok, _ := store.Get(ctx, key)
		if !ok || got != want {
			t.Errorf("%s = %q (%v), want %q", key, got, ok, want)
		}
	}

	if ok, _ := r.Validate(ctx, u, cfg); !ok {
		t.Error("Expected cached true verdict")
	}
	if ps.total() != first {
		t.Errorf("Cached verdict issued %d extra requests", ps.total()-first)
	}
	if v, ok := r.CachedVerdict(ctx, u, cfg); !ok || v != True {
		t.Errorf("CachedVerdict = %v, %v", v, ok)
	}
}

func TestValidateNeverCachesIndeterminateOverall(t *testing.T) {
	ps := newProbeServer(t)
	store := kvstore.NewMemory(0)
	r := NewResolver(ps.Client(), store)
	ctx := context.Background()
	u := ps.URL + "/broken.jpg"

	if ok, _ := r.Validate(ctx, u, testConfig(ModeHead)); ok {
		t.Fatal("Expected false for a 500 response")
	}
	if _, ok, _ := store.Get(ctx, CacheKey(DefaultCacheKeyPrefix, "any:head", u)); ok {
		t.Error("Indeterminate verdict must not be cached under any:head")
	}
	if v, _, _ := store.Get(ctx, CacheKey(DefaultCacheKeyPrefix, "head", u)); v != "-1" {
		t.Errorf("Expected per-method indeterminate entry, got %q", v)
	}
}

func TestValidateCacheDisabled(t *testing.T) {
	ps := newProbeServer(t, "/cover.jpg")
	store := kvstore.NewMemory(0)
	r := NewResolver(ps.Client(), store)
	cfg := testConfig(ModeHead)
	cfg.Cache = false

	for i := 0; i < 2; i++ {
		if ok, _ := r.Validate(context.Background(), ps.URL+"/cover.jpg", cfg); !ok {
			t.Fatal("Expected true")
		}
	}
	if ps.total() != 2 {
		t.Errorf("Expected 2 requests without caching, got %d", ps.total())
	}
	if st, _ := store.Stats(context.Background()); st.Entries != 0 {
		t.Errorf("Expected empty store, got %d entries", st.Entries)
	}
}

func TestValidateAbort(t *testing.T) {
	ps := newProbeServer(t, "/cover.jpg")
	store := kvstore.NewMemory(0)
	r := NewResolver(ps.Client(), store)
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(errors.New("user navigated away"))

	_, err := r.Validate(ctx, ps.URL+"/cover.jpg", testConfig(ModeAuto))
	if !fetch.IsAbort(err) {
		t.Fatalf("Expected abort, got %v", err)
	}
	if st, _ := store.Stats(context.Background()); st.Entries != 0 {
		t.Errorf("Aborted probe cached %d entries", st.Entries)
	}
	if ps.total() != 0 {
		t.Errorf("Aborted probe issued %d requests", ps.total())
	}
}

func TestFind(t *testing.T) {
	ps := newProbeServer(t, "/folder.png", "/album.jpg")
	groups := [][]string{
		{ps.URL + "/cover.jpg", ps.URL + "/cover.png"},
		{ps.URL + "/folder.jpg", ps.URL + "/folder.png"},
		{ps.URL + "/front.jpg"},
		{ps.URL + "/album.jpg"},
	}

	tests := []struct {
		name       string
		maxResults int
		want       []string
	}{
		{"first hit", 1, nil},
		{"two hits in group order", 2, []string{ps.URL + "/folder.png", ps.URL + "/album.jpg"}},
		{"more wanted than exist", 5, []string{ps.URL + "/folder.png", ps.URL + "/album.jpg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(ps.Client(), kvstore.NewMemory(0))
			cfg := testConfig(ModeHead)
			cfg.Concurrency = 2
			cfg.MaxResults = tt.maxResults

			got, err := r.Find(context.Background(), groups, cfg, nil)
			if err != nil {
				t.Fatalf("Find failed: %v", err)
			}
			if tt.maxResults == 1 {
				// either hit may finish first
				if len(got) != 1 || (got[0] != ps.URL+"/folder.png" && got[0] != ps.URL+"/album.jpg") {
					t.Errorf("Unexpected hit %v", got)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindNoneMode(t *testing.T) {
	ps := newProbeServer(t)
	r := NewResolver(ps.Client(), nil)
	groups := [][]string{{"a.jpg", "a.jpeg"}, {"b.jpg"}}
	cfg := testConfig(ModeNone)
	cfg.MaxResults = 2

	got, err := r.Find(context.Background(), groups, cfg, nil)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a.jpg", "a.jpeg"}) {
		t.Errorf("Unexpected candidates %v", got)
	}
	if ps.total() != 0 {
		t.Errorf("Mode none issued %d requests", ps.total())
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"head":      ModeHead,
		"GET-RANGE": ModeGetRange,
		"img":       ModeImg,
		"none":      ModeNone,
		"":          ModeAuto,
		"bogus":     ModeAuto,
	}
	for in, want := range tests {
		if got := ParseMode(in); got != want {
			t.Errorf("ParseMode(%q) = %q, want %q", in, got, want)
		}
	}
}
