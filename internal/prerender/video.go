package prerender

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"media-artwork/internal/fetch"
	"media-artwork/internal/mediatypes"
	"media-artwork/internal/render"
	"media-artwork/internal/video"
	"media-artwork/internal/workers"
)

// hasThumbnail reports whether files hold an image sharing the stem of name.
func hasThumbnail(name string, files []string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	for _, f := range files {
		if f != name && strings.TrimSuffix(f, filepath.Ext(f)) == stem && mediatypes.TypeOf(f) == mediatypes.FileTypeImage {
			return true
		}
	}
	return false
}

// Video writes <stem>.<ext> next to every video without a same-stem image.
func (r *Runner) Video(ctx context.Context) (Stats, error) {
	if r.video == nil {
		return Stats{}, errors.New("video prerender needs a video engine")
	}

	var c counters
	var videos []string
	err := r.walk(ctx, func(dir string, files []string) {
		for _, name := range files {
			if mediatypes.TypeOf(name) != mediatypes.FileTypeVideo {
				continue
			}
			c.scanned.Add(1)
			if hasThumbnail(name, files) {
				c.skipped.Add(1)
				continue
			}
			videos = append(videos, filepath.Join(dir, name))
		}
	})
	if err != nil {
		return c.snapshot(), err
	}

	opts := video.DefaultOptions()
	opts.Timestamps = []float64{r.config.Seek}
	opts.Size = r.config.MaxDim
	opts.Mime = &render.MimeSpec{Type: render.MimePNG}
	opts.Type = render.OutputObjectURL
	opts.Debug = r.config.Debug

	err = workers.Run(ctx, r.config.Workers, videos, func(ctx context.Context, path string) error {
		if err := r.throttle(ctx); err != nil {
			return err
		}
		target := strings.TrimSuffix(path, filepath.Ext(path)) + "." + r.config.Ext
		err := r.videoThumbnail(ctx, path, target, opts)
		switch {
		case fetch.IsAbort(err):
			return err
		case err != nil:
			c.failed.Add(1)
			r.log.Warnf("%s: %v", path, err)
		default:
			c.created.Add(1)
			r.log.Debugf("created %s", target)
		}
		return nil
	})
	return c.snapshot(), err
}

func (r *Runner) videoThumbnail(ctx context.Context, path, target string, opts video.Options) error {
	u, err := r.fileURL(path)
	if err != nil {
		return err
	}
	res, err := r.video.Thumbnails(ctx, u, opts)
	if err != nil {
		return err
	}
	if len(res.Thumbnails) == 0 {
		return errors.New("no frame captured")
	}
	data, err := r.objectBytes(res.Thumbnails[0].URI)
	if err != nil {
		return err
	}
	return r.save(data, target)
}
