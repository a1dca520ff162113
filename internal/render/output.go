package render

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// OutputType selects how an encoded image is handed back.
type OutputType string

const (
	OutputDataURI   OutputType = "dataURI"
	OutputObjectURL OutputType = "objectURL"
)

// Supported output MIME types.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWebP = "image/webp"
)

// MaxCanvasDimension is the largest width or height a canvas may have.
const MaxCanvasDimension = 32767

// ParseOutputType maps a query or config value to an OutputType.
func ParseOutputType(s string) (OutputType, error) {
	switch OutputType(s) {
	case OutputDataURI, OutputObjectURL:
		return OutputType(s), nil
	default:
		return "", fmt.Errorf("unknown output type %q", s)
	}
}

// MimeSpec is a MIME type plus an optional encoder quality in [0,1].
type MimeSpec struct {
	Type    string   `json:"type" validate:"omitempty,oneof=image/webp image/jpeg image/png"`
	Quality *float64 `json:"quality,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// Format returns the subtype, e.g. "webp" for "image/webp".
func (m MimeSpec) Format() string {
	_, sub, ok := strings.Cut(m.Type, "/")
	if !ok {
		return m.Type
	}
	return sub
}

// Q returns the quality or def when unset.
func (m MimeSpec) Q(def float64) float64 {
	if m.Quality == nil {
		return def
	}
	return *m.Quality
}

// Quality returns a pointer to q, for building MimeSpec literals.
func Quality(q float64) *float64 { return &q }

// OutputOptions describes the requested output of a materialization.
type OutputOptions struct {
	Type OutputType `json:"type" validate:"omitempty,oneof=dataURI objectURL"`
	Mime *MimeSpec  `json:"mime,omitempty"`
	// Size is the target width in pixels; 0 keeps the source size.
	Size int `json:"size,omitempty" validate:"gte=0,lte=32767"`
}

// DataURI wraps bytes in a base64 data URI.
func DataURI(data []byte, mime string) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
