package validation

import (
	"errors"
	"strings"
	"testing"
)

type request struct {
	URL        string    `json:"url" validate:"required,mediaurl"`
	Size       int       `json:"size" validate:"gte=0,lte=32767"`
	Timestamps []float64 `json:"timestamps" validate:"omitempty,dive,gte=0"`
	Mime       string    `json:"mime" validate:"omitempty,oneof=image/webp image/jpeg image/png"`
	Quality    *float64  `json:"quality" validate:"omitempty,gte=0,lte=1"`
}

func TestIsMediaURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/a.mp3", true},
		{"http://example.com/a%20b.mp3?x=1", true},
		{"file:///srv/music/a.flac", true},
		{"music/album/01.mp3", true},
		{"/music/01.mp3", true},
		{"", false},
		{"   ", false},
		{"javascript:alert(1)", false},
		{"https:///nohost.mp3", false},
		{"data:audio/mp3;base64,AAAA", false},
		{"dir\\file.mp3", false},
		{"a\nb.mp3", false},
	}
	for _, tt := range tests {
		if got := IsMediaURL(tt.in); got != tt.want {
			t.Errorf("IsMediaURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	v := New()
	bad := 1.5

	tests := []struct {
		name       string
		req        request
		wantFields []string
	}{
		{"valid", request{URL: "a.mp3", Size: 480, Timestamps: []float64{0.1, 3}}, nil},
		{"missing url", request{}, []string{"url"}},
		{"size too large", request{URL: "a.mp3", Size: 40000}, []string{"size"}},
		{"negative timestamp", request{URL: "a.mp3", Timestamps: []float64{1, -2}}, []string{"timestamps[1]"}},
		{"bad mime and quality", request{URL: "a.mp3", Mime: "image/gif", Quality: &bad}, []string{"mime", "quality"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *Error, got %v", err)
			}
			for _, f := range tt.wantFields {
				if _, ok := verr.Fields[f]; !ok {
					t.Errorf("Expected field %q in %v", f, verr.Fields)
				}
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Errorf("Expected %d fields, got %v", len(tt.wantFields), verr.Fields)
			}
			if !strings.HasPrefix(err.Error(), "validation failed: ") {
				t.Errorf("Unexpected message %q", err.Error())
			}
		})
	}
}
