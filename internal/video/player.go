package video

import (
	"context"
	"errors"
	"image"
)

// ErrZeroDimensions is returned when a video loads without usable frame
// dimensions.
var ErrZeroDimensions = errors.New("video has no decodable dimensions (0x0)")

// Metadata describes a loaded video.
type Metadata struct {
	Duration float64 // seconds
	Width    int
	Height   int
	// SeekableEnd is the end of the seekable range in seconds; 0 means the
	// source cannot be seeked and frames come from its start.
	SeekableEnd float64
}

// Frame is a decoded picture and the media time it was presented at.
type Frame struct {
	Image     image.Image
	MediaTime float64
}

// Player plays one video at a time. Implementations need not be safe for
// concurrent use; the engine creates one per call.
type Player interface {
	Load(ctx context.Context, url string) (Metadata, error)
	// Seek moves to t seconds and returns the position actually reached.
	Seek(ctx context.Context, t float64) (float64, error)
	// Frame returns the frame presented at the current position.
	Frame(ctx context.Context) (Frame, error)
	// Release drops the loaded source.
	Release()
}

// PlayerFactory creates a fresh Player.
type PlayerFactory func() Player
