// Package mediafixture builds small synthetic media files for tests.
package mediafixture

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"media-artwork/internal/binread"
)

// Image returns a w x h gradient. With noise set every pixel is scrambled so
// that encoders cannot compress it well.
func Image(w, h int, noise bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	seed := uint32(2463534242)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: uint8(x * 255 / max(w, 1)), G: uint8(y * 255 / max(h, 1)), B: 128, A: 255}
			if noise {
				seed ^= seed << 13
				seed ^= seed >> 17
				seed ^= seed << 5
				c.R, c.G, c.B = uint8(seed), uint8(seed>>8), uint8(seed>>16)
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// JPEG encodes a w x h gradient.
func JPEG(w, h int) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, Image(w, h, false), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

// NoisyJPEG encodes a w x h noise image at maximum quality.
func NoisyJPEG(w, h int) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, Image(w, h, true), &jpeg.Options{Quality: 100})
	return buf.Bytes()
}

// PNG encodes a w x h gradient.
func PNG(w, h int) []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, Image(w, h, false))
	return buf.Bytes()
}

// APIC describes one ID3v2.3/2.4 picture frame.
type APIC struct {
	Mime        string
	PictureType byte
	Description string
	Data        []byte
}

func (a APIC) body() []byte {
	var b bytes.Buffer
	b.WriteByte(0) // ISO-8859-1
	b.WriteString(a.Mime)
	b.WriteByte(0)
	b.WriteByte(a.PictureType)
	b.WriteString(a.Description)
	b.WriteByte(0)
	b.Write(a.Data)
	return b.Bytes()
}

// ID3v23 builds an ID3v2.3 tag holding the given pictures followed by
// padding bytes of zero.
func ID3v23(padding int, pics ...APIC) []byte {
	var frames bytes.Buffer
	for _, p := range pics {
		body := p.body()
		frames.WriteString("APIC")
		binary.Write(&frames, binary.BigEndian, uint32(len(body)))
		frames.Write([]byte{0, 0})
		frames.Write(body)
	}
	frames.Write(make([]byte, padding))
	return id3Header(3, 0, frames.Bytes())
}

// ID3v24 builds an ID3v2.4 tag with synch-safe frame sizes.
func ID3v24(pics ...APIC) []byte {
	var frames bytes.Buffer
	for _, p := range pics {
		body := p.body()
		frames.WriteString("APIC")
		frames.Write(binread.EncodeSynchsafe32(uint32(len(body))))
		frames.Write([]byte{0, 0})
		frames.Write(body)
	}
	return id3Header(4, 0, frames.Bytes())
}

// ID3v22 builds an ID3v2.2 tag with a single PIC frame.
func ID3v22(format string, pictureType byte, data []byte) []byte {
	var body bytes.Buffer
	body.WriteByte(0)
	body.WriteString(format)
	body.WriteByte(pictureType)
	body.WriteByte(0)
	body.Write(data)

	var frame bytes.Buffer
	frame.WriteString("PIC")
	n := body.Len()
	frame.Write([]byte{byte(n >> 16), byte(n >> 8), byte(n)})
	frame.Write(body.Bytes())
	return id3Header(2, 0, frame.Bytes())
}

func id3Header(version, flags byte, body []byte) []byte {
	out := []byte{'I', 'D', '3', version, 0, flags}
	out = append(out, binread.EncodeSynchsafe32(uint32(len(body)))...)
	return append(out, body...)
}

// MP3 appends fake audio frames to an ID3 tag until the file is size bytes.
func MP3(tag []byte, size int) []byte {
	out := append([]byte{}, tag...)
	for len(out) < size {
		out = append(out, 0xFF, 0xFB, 0x90, 0x64)
	}
	return out[:max(size, len(tag))]
}

// Box builds an ISO-BMFF box.
func Box(typ string, payload ...[]byte) []byte {
	var body []byte
	for _, p := range payload {
		body = append(body, p...)
	}
	out := make([]byte, 8, 8+len(body))
	binary.BigEndian.PutUint32(out, uint32(8+len(body)))
	copy(out[4:], typ)
	return append(out, body...)
}

// M4A builds a minimal MP4 with an iTunes covr item. pad is the number of
// bytes between the data box header and the image, normally 8 (type
// indicator and locale).
func M4A(img []byte, pad int) []byte {
	data := Box("data", make([]byte, pad), img)
	covr := Box("covr", data)
	ilst := Box("ilst", Box("\xa9nam", Box("data", make([]byte, 8), []byte("Title"))), covr)
	meta := Box("meta", []byte{0, 0, 0, 0}, Box("hdlr", make([]byte, 25)), ilst)
	moov := Box("moov", Box("mvhd", make([]byte, 100)), Box("udta", meta))
	return append(Box("ftyp", []byte("M4A "), make([]byte, 4)), moov...)
}

// EBML builds a Matroska element. id carries its marker bits.
func EBML(id uint32, payload ...[]byte) []byte {
	var idBytes []byte
	switch {
	case id > 0xFFFFFF:
		idBytes = []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
	case id > 0xFFFF:
		idBytes = []byte{byte(id >> 16), byte(id >> 8), byte(id)}
	case id > 0xFF:
		idBytes = []byte{byte(id >> 8), byte(id)}
	default:
		idBytes = []byte{byte(id)}
	}
	var body []byte
	for _, p := range payload {
		body = append(body, p...)
	}
	out := append(idBytes, binread.EncodeVint(uint64(len(body)))...)
	return append(out, body...)
}

// Attachment describes a Matroska attached file.
type Attachment struct {
	Name string
	Mime string
	Data []byte
}

// MKA builds a Matroska file whose segment holds the given attachments.
// Extra bytes are appended to the segment verbatim.
func MKA(atts []Attachment, extra []byte) []byte {
	header := EBML(0x1A45DFA3, EBML(0x4282, []byte("matroska")), EBML(0x4287, []byte{4}))
	var files [][]byte
	for _, a := range atts {
		fields := [][]byte{EBML(0x466E, []byte(a.Name))}
		if a.Mime != "" {
			fields = append(fields, EBML(0x4660, []byte(a.Mime)))
		}
		fields = append(fields, EBML(0x465C, a.Data))
		files = append(files, EBML(0x61A7, fields...))
	}
	segment := [][]byte{EBML(0x1549A966, EBML(0x2AD7B1, []byte{0x0F, 0x42, 0x40}))}
	if len(files) > 0 {
		segment = append(segment, EBML(0x1941A469, files...))
	}
	if len(extra) > 0 {
		segment = append(segment, extra)
	}
	return append(header, EBML(0x18538067, segment...)...)
}
