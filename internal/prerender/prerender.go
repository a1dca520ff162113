package prerender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/disintegration/imaging"

	"media-artwork/internal/artwork"
	"media-artwork/internal/logging"
	"media-artwork/internal/mediatypes"
	"media-artwork/internal/memory"
	"media-artwork/internal/render"
	"media-artwork/internal/video"
	"media-artwork/internal/workers"
)

// FolderImage is the sidecar written for audio folders.
const FolderImage = "folder.jpg"

// Config controls a prerender pass.
type Config struct {
	// Root is the directory walked. Engines must resolve file:// URLs
	// relative to it.
	Root string
	// Ext is the extension of written video thumbnails: jpg, jpeg, png or gif.
	Ext string
	// Seek is the capture time of video thumbnails, in seconds or as a
	// fraction of the duration when below 1.
	Seek float64
	// MaxDim bounds the larger side of written images.
	MaxDim  int
	Quality int
	Workers int
	// SkipHidden skips files and directories starting with ".".
	SkipHidden bool
	Debug      bool
}

// DefaultConfig returns the settings of the prerender command.
func DefaultConfig(root string) Config {
	return Config{
		Root:       root,
		Ext:        "jpg",
		Seek:       5,
		MaxDim:     512,
		Quality:    90,
		Workers:    workers.ForIO(8),
		SkipHidden: true,
	}
}

// Stats counts the outcome of a pass.
type Stats struct {
	Scanned int64
	Created int64
	Skipped int64
	Failed  int64
}

type counters struct {
	scanned, created, skipped, failed atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Scanned: c.scanned.Load(),
		Created: c.created.Load(),
		Skipped: c.skipped.Load(),
		Failed:  c.failed.Load(),
	}
}

// Runner writes missing thumbnails next to media files.
type Runner struct {
	config   Config
	artwork  *artwork.Engine
	video    *video.Engine
	renderer *render.Renderer
	monitor  *memory.Monitor
	log      *logging.Logger
}

// NewRunner returns a Runner. Either engine may be nil when its mode is not
// used; monitor may be nil to disable backpressure.
func NewRunner(config Config, art *artwork.Engine, vid *video.Engine, renderer *render.Renderer, monitor *memory.Monitor) (*Runner, error) {
	switch strings.ToLower(config.Ext) {
	case "jpg", "jpeg", "png", "gif":
	default:
		return nil, fmt.Errorf("unsupported thumbnail extension %q", config.Ext)
	}
	if config.MaxDim <= 0 || config.MaxDim > render.MaxCanvasDimension {
		return nil, fmt.Errorf("max dimension must be in (0, %d], got %d", render.MaxCanvasDimension, config.MaxDim)
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Runner{
		config:   config,
		artwork:  art,
		video:    vid,
		renderer: renderer,
		monitor:  monitor,
		log:      logging.Named("prerender", config.Debug),
	}, nil
}

// fileURL addresses path through the file:// transport rooted at Root.
func (r *Runner) fileURL(path string) (string, error) {
	rel, err := filepath.Rel(r.config.Root, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", path, r.config.Root)
	}
	u := url.URL{Scheme: "file", Path: "/" + filepath.ToSlash(rel)}
	return u.String(), nil
}

func (r *Runner) hidden(name string) bool {
	return r.config.SkipHidden && strings.HasPrefix(name, ".") && name != "."
}

// walk visits every directory under Root with its regular files sorted by
// name.
func (r *Runner) walk(ctx context.Context, visit func(dir string, files []string)) error {
	return filepath.WalkDir(r.config.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.log.Warnf("cannot read %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() {
			return nil
		}
		if path != r.config.Root && r.hidden(d.Name()) {
			return fs.SkipDir
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			r.log.Warnf("cannot list %s: %v", path, err)
			return nil
		}
		files := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Type().IsRegular() && !r.hidden(e.Name()) {
				files = append(files, e.Name())
			}
		}
		slices.Sort(files)
		visit(path, files)
		return nil
	})
}

// objectBytes fetches and revokes the blob behind uri.
func (r *Runner) objectBytes(uri string) ([]byte, error) {
	id, ok := r.renderer.URLs.ID(uri)
	if !ok {
		return nil, fmt.Errorf("unexpected output URI %.40q", uri)
	}
	data, _, ok := r.renderer.URLs.Lookup(id)
	r.renderer.URLs.Revoke(uri)
	if !ok {
		return nil, errors.New("object URL revoked before it was read")
	}
	return data, nil
}

// save decodes data, fits it within MaxDim and writes it to target in the
// format its extension names. The file appears atomically.
func (r *Runner) save(data []byte, target string) error {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		img, err = render.Decode(data)
		if err != nil {
			return err
		}
	}
	img = r.fit(img)

	tmp := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".tmp"+filepath.Ext(target))
	if err := imaging.Save(img, tmp, imaging.JPEGQuality(r.config.Quality)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (r *Runner) fit(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= r.config.MaxDim && b.Dy() <= r.config.MaxDim {
		return img
	}
	return imaging.Fit(img, r.config.MaxDim, r.config.MaxDim, imaging.Lanczos)
}

func (r *Runner) throttle(ctx context.Context) error {
	if r.monitor == nil {
		return nil
	}
	return r.monitor.Wait(ctx)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
