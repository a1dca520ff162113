package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"net/url"
	"os/exec"
	"path/filepath"
	"strconv"

	"media-artwork/internal/logging"
)

// FFmpegPlayer plays videos by shelling out to ffprobe and ffmpeg. Frames
// are extracted with an input seek, so Seek itself does no work.
type FFmpegPlayer struct {
	FFmpegPath  string
	FFprobePath string
	// FileRoot maps file:// URLs onto the local filesystem.
	FileRoot string

	input    string
	meta     Metadata
	position float64
}

// NewFFmpegFactory returns a PlayerFactory for FFmpegPlayers sharing the
// given binaries. Empty paths fall back to looking them up in PATH.
func NewFFmpegFactory(ffmpegPath, ffprobePath, fileRoot string) PlayerFactory {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return func() Player {
		return &FFmpegPlayer{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, FileRoot: fileRoot}
	}
}

// inputFor turns a media URL into an ffmpeg input argument.
func (p *FFmpegPlayer) inputFor(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "https":
		return u.String(), nil
	case "file":
		if p.FileRoot == "" {
			return "", errors.New("file URLs are not enabled")
		}
		return filepath.Join(p.FileRoot, filepath.FromSlash(filepath.Clean("/"+u.Path))), nil
	default:
		return "", fmt.Errorf("unsupported video URL scheme %q", u.Scheme)
	}
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// parseProbe extracts Metadata from ffprobe's JSON output.
func parseProbe(data []byte) (Metadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var meta Metadata
	durStr := out.Format.Duration
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		meta.Width, meta.Height = s.Width, s.Height
		if durStr == "" {
			durStr = s.Duration
		}
		break
	}
	if durStr != "" {
		meta.Duration, _ = strconv.ParseFloat(durStr, 64)
	}
	meta.SeekableEnd = meta.Duration
	return meta, nil
}

func (p *FFmpegPlayer) Load(ctx context.Context, rawURL string) (Metadata, error) {
	input, err := p.inputFor(rawURL)
	if err != nil {
		return Metadata{}, err
	}

	cmd := exec.CommandContext(ctx, p.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		input,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Metadata{}, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	meta, err := parseProbe(stdout.Bytes())
	if err != nil {
		return Metadata{}, err
	}
	p.input, p.meta, p.position = input, meta, 0
	return meta, nil
}

func (p *FFmpegPlayer) Seek(_ context.Context, t float64) (float64, error) {
	if p.input == "" {
		return 0, errors.New("no video loaded")
	}
	p.position = t
	return t, nil
}

func (p *FFmpegPlayer) Frame(ctx context.Context) (Frame, error) {
	if p.input == "" {
		return Frame{}, errors.New("no video loaded")
	}

	args := []string{"-v", "error"}
	if p.position > 0 {
		args = append(args, "-ss", strconv.FormatFloat(p.position, 'f', 3, 64))
	}
	args = append(args,
		"-i", p.input,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.FFmpegPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Frame{}, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return Frame{}, fmt.Errorf("ffmpeg produced no output for %s at %.3fs", p.input, p.position)
	}
	logging.Debug("FFmpeg output size: %d bytes", stdout.Len())

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return Frame{Image: img, MediaTime: p.position}, nil
}

func (p *FFmpegPlayer) Release() {
	p.input = ""
	p.meta = Metadata{}
	p.position = 0
}
