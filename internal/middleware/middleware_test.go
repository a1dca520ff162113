package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a\nb\rc", "a b c"},
		{"x\x00y", "xy"},
		{"\x1b[31mred", "[31mred"},
		{"tab\tkept", "tab\tkept"},
		{"del\x7f", "del"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatW3C(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/artwork?url=a%0Ab", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("User-Agent", "Go test")
	rec := newStatusRecorder(httptest.NewRecorder())
	rec.WriteHeader(http.StatusNotFound)
	_, _ = rec.Write([]byte("nope"))

	now := time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC)
	got := formatW3C(r, rec, 15*time.Millisecond, now)
	want := `2024-06-01 12:30:45 10.0.0.1 GET /api/artwork url=a%0Ab 404 4 15 - "Go test"`
	if got != want {
		t.Errorf("formatW3C =\n%q\nwant\n%q", got, want)
	}
}

func TestShouldSkip(t *testing.T) {
	cfg := DefaultLoggingConfig()
	if !shouldSkip("/blob/123", cfg) {
		t.Error("blob fetches should be skipped")
	}
	if shouldSkip("/healthz", cfg) {
		t.Error("health checks are logged by default")
	}
	cfg.LogHealthChecks = false
	if !shouldSkip("/healthz", cfg) {
		t.Error("health checks should be skipped when disabled")
	}
	if shouldSkip("/api/artwork", cfg) {
		t.Error("API calls should be logged")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "3.3.3.3:1", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "4.4.4.4"}, "3.3.3.3:1", "4.4.4.4"},
		{"remote addr", nil, "5.5.5.5:80", "5.5.5.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoggerPassesThrough(t *testing.T) {
	h := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/memory", nil))
	if rr.Code != http.StatusTeapot || rr.Body.String() != "short and stout" {
		t.Errorf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestCompression(t *testing.T) {
	big := strings.Repeat(`{"uri":"data:image/png;base64,AAAA"}`, 100)
	tests := []struct {
		name         string
		contentType  string
		length       string
		accept       string
		wantCompress bool
	}{
		{"json", "application/json", "", "gzip, deflate", true},
		{"json with charset", "application/json; charset=utf-8", "", "gzip", true},
		{"image", "image/png", "", "gzip", false},
		{"client without gzip", "application/json", "", "", false},
		{"small declared length", "application/json", "10", "gzip", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				if tt.length != "" {
					w.Header().Set("Content-Length", tt.length)
				}
				_, _ = io.WriteString(w, big)
			}))
			r := httptest.NewRequest(http.MethodGet, "/api/artwork", nil)
			if tt.accept != "" {
				r.Header.Set("Accept-Encoding", tt.accept)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, r)

			compressed := rr.Header().Get("Content-Encoding") == "gzip"
			if compressed != tt.wantCompress {
				t.Fatalf("compressed = %v, want %v", compressed, tt.wantCompress)
			}
			if !compressed {
				return
			}
			zr, err := gzip.NewReader(bytes.NewReader(rr.Body.Bytes()))
			if err != nil {
				t.Fatalf("gzip.NewReader: %v", err)
			}
			body, err := io.ReadAll(zr)
			if err != nil {
				t.Fatalf("reading gzip body: %v", err)
			}
			if string(body) != big {
				t.Error("decompressed body does not match")
			}
			if rr.Body.Len() >= len(big) {
				t.Errorf("compressed size %d not smaller than %d", rr.Body.Len(), len(big))
			}
		})
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	var label string
	router.HandleFunc("/blob/{id}", func(w http.ResponseWriter, r *http.Request) {
		label = routeLabel(r)
		w.WriteHeader(http.StatusNoContent)
	})
	router.Use(Metrics(DefaultMetricsConfig()))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/blob/abc-123", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if label != "/blob/{id}" {
		t.Errorf("route label = %q, want /blob/{id}", label)
	}

	if got := routeLabel(httptest.NewRequest(http.MethodGet, "/nowhere", nil)); got != "unmatched" {
		t.Errorf("routeLabel without route = %q", got)
	}
}
