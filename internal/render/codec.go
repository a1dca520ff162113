package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	// Image format decoders
	_ "image/gif"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support

	"media-artwork/internal/logging"
)

// Default encoder qualities, matching what a browser canvas uses.
const (
	defaultJPEGQuality = 0.92
	defaultWebPQuality = 0.80
)

func qualityPercent(q float64) int {
	p := int(math.Round(q * 100))
	return max(1, min(100, p))
}

// Decode decodes image bytes applying EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	logging.Debug("imaging.Decode failed: %v, trying libvips", err)
	if vimg, verr := decodeWithVips(data); verr == nil {
		return vimg, nil
	}
	return nil, fmt.Errorf("failed to decode image: %w", err)
}

// Encode encodes img to the requested type. The returned MimeSpec names the
// type actually produced, which is PNG when the requested encoder is
// unavailable.
func Encode(img image.Image, spec MimeSpec) ([]byte, MimeSpec, error) {
	var buf bytes.Buffer
	switch spec.Type {
	case MimeJPEG:
		q := spec.Q(defaultJPEGQuality)
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: qualityPercent(q)}); err != nil {
			return nil, spec, fmt.Errorf("jpeg encode: %w", err)
		}
		return buf.Bytes(), spec, nil
	case MimeWebP:
		if IsVipsAvailable() {
			out, err := encodeWebPWithVips(img, spec.Q(defaultWebPQuality))
			if err == nil {
				return out, spec, nil
			}
			logging.Warn("WebP encode failed, falling back to PNG: %v", err)
		}
	case MimePNG:
	default:
		logging.Debug("Unsupported output type %q, encoding PNG", spec.Type)
	}

	if err := png.Encode(&buf, img); err != nil {
		return nil, spec, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), MimeSpec{Type: MimePNG}, nil
}
