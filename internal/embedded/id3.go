package embedded

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"media-artwork/internal/binread"
	"media-artwork/internal/fetch"
)

const id3HeaderSize = 10

var (
	errMP3TooSmall   = errors.New("MP3 too small")
	errNoID3         = errors.New("no ID3v2 tag found")
	errNoID3Pictures = errors.New("no embedded pictures found in ID3 tag")
)

// ID3TagSize returns the total tag length (header included) announced by a
// 10-byte ID3v2 header.
func ID3TagSize(head []byte) (int, error) {
	if len(head) < id3HeaderSize {
		return 0, errMP3TooSmall
	}
	if string(head[:3]) != "ID3" {
		return 0, errNoID3
	}
	return id3HeaderSize + int(binread.Synchsafe32(head[6:10])), nil
}

// ParseID3 returns every picture frame in a complete ID3v2 tag.
func ParseID3(tag []byte) ([]Picture, error) {
	if _, err := ID3TagSize(tag); err != nil {
		return nil, err
	}
	ver := tag[3]
	flags := tag[5]

	r := binread.NewReader(tag, id3HeaderSize)
	if flags&0x40 != 0 {
		switch ver {
		case 3:
			n, err := r.Uint32("extended header size")
			if err != nil {
				return nil, err
			}
			if err := r.Skip(int(n), "extended header"); err != nil {
				return nil, err
			}
		case 4:
			// v2.4 counts the size field itself
			raw, err := r.ReadN(4, "extended header size")
			if err != nil {
				return nil, err
			}
			r.Seek(id3HeaderSize + int(binread.Synchsafe32(raw)))
		default:
			return nil, fmt.Errorf("unsupported ID3 version: 2.%d", ver)
		}
	}

	var pics []Picture
	for r.Offset()+6 < len(tag) && tag[r.Offset()] != 0 {
		id, frame, ok := nextFrame(r, ver)
		if !ok {
			break
		}
		var (
			p     Picture
			found bool
		)
		switch {
		case ver == 2 && id == "PIC":
			p, found = parsePIC(frame)
		case ver >= 3 && id == "APIC":
			p, found = parseAPIC(frame)
		}
		if found {
			pics = append(pics, p)
		}
	}

	if len(pics) == 0 {
		return nil, errNoID3Pictures
	}
	return pics, nil
}

func nextFrame(r *binread.Reader, ver byte) (string, []byte, bool) {
	var (
		id   []byte
		size uint32
		err  error
	)
	if ver == 2 {
		if id, err = r.ReadN(3, "frame id"); err != nil {
			return "", nil, false
		}
		if size, err = r.Uint24("frame size"); err != nil {
			return "", nil, false
		}
	} else {
		if r.Remaining() < 10 {
			return "", nil, false
		}
		id, _ = r.ReadN(4, "frame id")
		raw, _ := r.ReadN(4, "frame size")
		if ver == 4 {
			size = binread.Synchsafe32(raw)
		} else {
			size = uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
		}
		_ = r.Skip(2, "frame flags")
	}

	name := strings.TrimSpace(string(id))
	if name == "" || size == 0 || int(size) > r.Remaining() {
		return "", nil, false
	}
	frame, _ := r.ReadN(int(size), name)
	return name, frame, true
}

// parseAPIC handles the v2.3/2.4 layout:
// encoding, mime\0, picture type, description\0, data.
func parseAPIC(f []byte) (Picture, bool) {
	if len(f) < 4 {
		return Picture{}, false
	}
	enc := f[0]
	end := bytes.IndexByte(f[1:], 0)
	if end < 0 {
		return Picture{}, false
	}
	mime := string(f[1 : 1+end])
	p := 1 + end + 1
	if p >= len(f) {
		return Picture{}, false
	}
	picType := f[p]
	p++
	data, ok := afterDescription(f, p, enc)
	if !ok || mime == "-->" {
		return Picture{}, false
	}
	return newID3Picture(data, normalizeMime(mime, data), picType), true
}

// parsePIC handles v2.2: encoding, 3-char format, picture type,
// description\0, data.
func parsePIC(f []byte) (Picture, bool) {
	if len(f) < 6 {
		return Picture{}, false
	}
	enc := f[0]
	format := strings.ToUpper(string(f[1:4]))
	picType := f[4]
	data, ok := afterDescription(f, 5, enc)
	if !ok || format == "-->" {
		return Picture{}, false
	}

	var mime string
	switch format {
	case "JPG", "JPE":
		mime = "image/jpeg"
	case "PNG":
		mime = "image/png"
	case "WEB":
		mime = "image/webp"
	default:
		mime = sniffMime(data)
	}
	return newID3Picture(data, mime, picType), true
}

func newID3Picture(data []byte, mime string, picType byte) Picture {
	kind := KindOther
	if picType == 3 {
		kind = KindFront
	}
	return Picture{Data: data, Mime: mime, Kind: kind, Container: "mp3"}
}

// afterDescription skips the encoding-dependent terminated description that
// starts at p and returns the remaining picture data.
func afterDescription(f []byte, p int, enc byte) ([]byte, bool) {
	if p >= len(f) {
		return nil, false
	}
	end := -1
	width := 1
	if enc == 0 || enc == 3 {
		end = bytes.IndexByte(f[p:], 0)
		if end >= 0 {
			end += p
		}
	} else {
		// UTF-16 terminators are code-unit aligned
		width = 2
		for i := p; i+1 < len(f); i += 2 {
			if f[i] == 0 && f[i+1] == 0 {
				end = i
				break
			}
		}
	}
	if end < 0 {
		return nil, false
	}
	start := end + width
	if start >= len(f) {
		return nil, false
	}
	return f[start:], true
}

// ExtractMP3 reads the ID3v2 header, then the whole tag with a second range
// request. Tags announced larger than maxBytes fail without a body fetch.
func ExtractMP3(ctx context.Context, url string, opts Options) ([]Picture, error) {
	maxBytes := opts.maxBytes()

	head, err := opts.fetch(ctx, url, fetch.Options{
		MaxBytes:      64,
		AllowTruncate: true,
		Range:         &fetch.Range{Start: 0, End: id3HeaderSize - 1},
	})
	if err != nil {
		return nil, err
	}
	total, err := ID3TagSize(head)
	if err != nil {
		return nil, err
	}
	if int64(total) > maxBytes {
		return nil, fmt.Errorf("ID3 tag size (%d) exceeds maxBytes (%d)", total, maxBytes)
	}

	tag, err := opts.fetch(ctx, url, fetch.Options{
		MaxBytes:      int64(total),
		AllowTruncate: true,
		Range:         &fetch.Range{Start: 0, End: int64(total) - 1},
	})
	if err != nil {
		return nil, err
	}
	if len(tag) < total {
		return nil, fmt.Errorf("unable to fetch full ID3 tag (%d/%d bytes)", len(tag), total)
	}
	return ParseID3(tag[:total])
}
