package embedded

import (
	"bytes"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind classifies a picture by its role.
type Kind string

const (
	KindFront Kind = "front"
	KindOther Kind = "other"
)

// Picture is an image found inside a container.
type Picture struct {
	Data      []byte
	Mime      string
	Kind      Kind
	Container string // mp3, m4a, mka, flac, ogg
	FileName  string // Matroska attachments only
}

const octetStream = "application/octet-stream"

// sniffMagic recognises the three image formats containers actually carry.
func sniffMagic(b []byte) string {
	switch {
	case len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8:
		return "image/jpeg"
	case len(b) >= 4 && bytes.Equal(b[:4], []byte{0x89, 'P', 'N', 'G'}):
		return "image/png"
	case len(b) >= 12 && string(b[:4]) == "RIFF" && string(b[8:12]) == "WEBP":
		return "image/webp"
	}
	return ""
}

// sniffMime falls back to full content detection when the magic bytes are
// not one of the common cover formats.
func sniffMime(b []byte) string {
	if m := sniffMagic(b); m != "" {
		return m
	}
	if len(b) == 0 {
		return octetStream
	}
	m := mimetype.Detect(b)
	if m == nil {
		return octetStream
	}
	return m.String()
}

// normalizeMime cleans up declared MIME types. ID3 writers are inconsistent
// about "image/jpg", bare "jpg" and casing.
func normalizeMime(declared string, data []byte) string {
	m := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	switch m {
	case "":
		return sniffMime(data)
	case "jpg", "jpeg", "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	}
	if !strings.Contains(m, "/") {
		return sniffMime(data)
	}
	return m
}

// PreferFront returns the front covers when any exist, otherwise pics.
func PreferFront(pics []Picture) []Picture {
	var front []Picture
	for _, p := range pics {
		if p.Kind == KindFront {
			front = append(front, p)
		}
	}
	if len(front) > 0 {
		return front
	}
	return pics
}
