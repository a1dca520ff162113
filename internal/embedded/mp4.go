package embedded

import (
	"errors"

	"media-artwork/internal/binread"
)

var (
	errM4ATooSmall = errors.New("M4A too small")
	errNoMoov      = errors.New("no moov box found")
	errNoUdta      = errors.New("no udta box found")
	errNoMeta      = errors.New("no meta box found")
	errNoIlst      = errors.New("no ilst box found")
	errNoCovr      = errors.New("no covr artwork found")
	errCovrClipped = errors.New("covr artwork truncated at maxBytes")
)

// ParseM4A returns the first cover stored in the iTunes metadata list. The
// buffer must start at the beginning of the file.
func ParseM4A(b []byte) (Picture, error) {
	if len(b) < 16 {
		return Picture{}, errM4ATooSmall
	}

	moov, ok := binread.FindChild(b, 0, len(b), "moov")
	if !ok {
		return Picture{}, errNoMoov
	}
	udta, ok := binread.FindChild(b, moov.DataStart, moov.End, "udta")
	if !ok {
		return Picture{}, errNoUdta
	}
	meta, ok := binread.FindChild(b, udta.DataStart, udta.End, "meta")
	if !ok {
		return Picture{}, errNoMeta
	}
	// meta is a full box: version and flags precede its children
	ilst, ok := binread.FindChild(b, meta.DataStart+4, meta.End, "ilst")
	if !ok {
		return Picture{}, errNoIlst
	}

	clipped := false
	for item := range binread.IterBoxes(b, ilst.DataStart, ilst.End) {
		if item.Type != "covr" {
			continue
		}
		for child := range binread.IterBoxes(b, item.DataStart, item.End) {
			if child.Type != "data" {
				continue
			}
			if child.Clamped {
				clipped = true
				continue
			}
			if pic, ok := covrPayload(b, child); ok {
				return pic, nil
			}
		}
	}
	if clipped {
		return Picture{}, errCovrClipped
	}
	return Picture{}, errNoCovr
}

// covrPayload locates the image inside a data box. Writers disagree on the
// header length, so 8, 12 and 16 bytes past the box header are tried and the
// first offset carrying a known image signature wins.
func covrPayload(b []byte, data binread.Box) (Picture, bool) {
	p := data.DataStart
	if p+8 > data.End {
		return Picture{}, false
	}
	var starts []int
	for _, off := range []int{p + 8, p + 12, p + 16} {
		if off < data.End {
			starts = append(starts, off)
		}
	}
	if len(starts) == 0 {
		return Picture{}, false
	}

	for _, off := range starts {
		if off+12 > data.End {
			continue
		}
		if m := sniffMagic(b[off:data.End]); m != "" {
			return m4aPicture(b[off:data.End], m), true
		}
	}
	payload := b[starts[0]:data.End]
	return m4aPicture(payload, sniffMime(payload)), true
}

func m4aPicture(data []byte, mime string) Picture {
	return Picture{Data: data, Mime: mime, Kind: KindFront, Container: "m4a"}
}
