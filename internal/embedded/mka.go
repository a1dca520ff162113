package embedded

import (
	"bytes"
	"errors"
	"iter"
	"strings"

	"media-artwork/internal/binread"
)

// Matroska element IDs, marker bits included.
const (
	idSegment      = 0x18538067
	idAttachments  = 0x1941A469
	idAttachedFile = 0x61A7
	idFileName     = 0x466E
	idFileMime     = 0x4660
	idFileData     = 0x465C
)

// minMJPEGFrame keeps tiny embedded thumbnails and stray markers out of the
// Motion-JPEG fallback.
const minMJPEGFrame = 4096

var (
	errMKATooSmall = errors.New("MKV too small")
	errNoMKAArt    = errors.New("no MKV artwork found (no attachments, no detectable cover stream)")
)

type element struct {
	ID        uint64
	DataStart int
	End       int
	Clamped   bool
}

// elements yields the EBML elements laid out in b[start:end]. Unknown or
// oversized lengths are clamped to end.
func elements(b []byte, start, end int) iter.Seq[element] {
	if end > len(b) {
		end = len(b)
	}
	return func(yield func(element) bool) {
		r := binread.NewReader(b[:end], start)
		for r.Offset() < end {
			id, err := r.Vint(false, "element id")
			if err != nil {
				return
			}
			size, err := r.Vint(true, "element size")
			if err != nil {
				return
			}
			dataStart := r.Offset()
			el := element{ID: id.Value, DataStart: dataStart, End: end}
			if size.Unknown || size.Value > uint64(end-dataStart) {
				el.Clamped = !size.Unknown
			} else {
				el.End = dataStart + int(size.Value)
			}
			if !yield(el) {
				return
			}
			r.Seek(el.End)
		}
	}
}

// ParseMKA returns the image attachments of a Matroska file. When there are
// none and the file carries a V_MJPEG track, the first complete JPEG frame
// of at least minMJPEGFrame bytes is returned instead.
func ParseMKA(b []byte) ([]Picture, error) {
	if len(b) < 32 {
		return nil, errMKATooSmall
	}

	var pics []Picture
	for top := range elements(b, 0, len(b)) {
		switch top.ID {
		case idSegment:
			for child := range elements(b, top.DataStart, top.End) {
				if child.ID == idAttachments {
					pics = append(pics, attachments(b, child)...)
				}
			}
		case idAttachments:
			pics = append(pics, attachments(b, top)...)
		}
	}
	if len(pics) > 0 {
		return pics, nil
	}

	if bytes.Contains(b, []byte("V_MJPEG")) {
		if frame := firstJPEG(b, minMJPEGFrame); frame != nil {
			return []Picture{{Data: frame, Mime: "image/jpeg", Kind: KindFront, Container: "mka"}}, nil
		}
	}
	return nil, errNoMKAArt
}

func attachments(b []byte, parent element) []Picture {
	var pics []Picture
	for af := range elements(b, parent.DataStart, parent.End) {
		if af.ID != idAttachedFile {
			continue
		}
		var (
			name, mime string
			data       []byte
		)
		for f := range elements(b, af.DataStart, af.End) {
			switch f.ID {
			case idFileName:
				name = string(b[f.DataStart:f.End])
			case idFileMime:
				mime = string(b[f.DataStart:f.End])
			case idFileData:
				if !f.Clamped {
					data = b[f.DataStart:f.End]
				}
			}
		}
		if len(data) == 0 {
			continue
		}
		mime = normalizeMime(mime, data)
		if !strings.HasPrefix(mime, "image/") {
			mime = sniffMagic(data)
		}
		if mime == "" {
			continue
		}
		pics = append(pics, Picture{
			Data:      data,
			Mime:      mime,
			Kind:      attachmentKind(name),
			Container: "mka",
			FileName:  name,
		})
	}
	return pics
}

func attachmentKind(name string) Kind {
	n := strings.ToLower(name)
	for _, hint := range []string{"cover", "front", "folder", "art"} {
		if strings.Contains(n, hint) {
			return KindFront
		}
	}
	return KindOther
}

// firstJPEG returns the first SOI..EOI span of at least minLen bytes.
func firstJPEG(b []byte, minLen int) []byte {
	for i := 0; i+3 < len(b); i++ {
		if b[i] != 0xFF || b[i+1] != 0xD8 {
			continue
		}
		j := bytes.Index(b[i+2:], []byte{0xFF, 0xD9})
		if j < 0 {
			return nil
		}
		end := i + 2 + j + 2
		if end-i >= minLen {
			return b[i:end]
		}
		i = end - 1
	}
	return nil
}
