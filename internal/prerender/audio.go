package prerender

import (
	"context"
	"errors"
	"path/filepath"

	"media-artwork/internal/artwork"
	"media-artwork/internal/fetch"
	"media-artwork/internal/mediatypes"
	"media-artwork/internal/render"
	"media-artwork/internal/workers"
)

type audioFolder struct {
	dir    string
	tracks []string
}

// Audio writes folder.jpg into every folder that lacks one, using the first
// embedded picture found among the folder's audio files in name order.
func (r *Runner) Audio(ctx context.Context) (Stats, error) {
	if r.artwork == nil {
		return Stats{}, errors.New("audio prerender needs an artwork engine")
	}

	var c counters
	var folders []audioFolder
	err := r.walk(ctx, func(dir string, files []string) {
		c.scanned.Add(1)
		if exists(filepath.Join(dir, FolderImage)) {
			c.skipped.Add(1)
			return
		}
		var tracks []string
		for _, name := range files {
			if mediatypes.TypeOf(name) == mediatypes.FileTypeAudio {
				tracks = append(tracks, filepath.Join(dir, name))
			}
		}
		if len(tracks) > 0 {
			folders = append(folders, audioFolder{dir: dir, tracks: tracks})
		}
	})
	if err != nil {
		return c.snapshot(), err
	}
	r.log.Debugf("%d folder(s) need %s", len(folders), FolderImage)

	opts := artwork.DefaultOptions()
	opts.Sources = []artwork.Source{artwork.SourceEmbedded}
	opts.Output = render.OutputOptions{Type: render.OutputObjectURL}
	opts.Debug = r.config.Debug

	err = workers.Run(ctx, r.config.Workers, folders, func(ctx context.Context, f audioFolder) error {
		if err := r.throttle(ctx); err != nil {
			return err
		}
		created, err := r.audioFolder(ctx, f, opts)
		switch {
		case fetch.IsAbort(err):
			return err
		case err != nil:
			c.failed.Add(1)
			r.log.Warnf("%s: %v", f.dir, err)
		case created:
			c.created.Add(1)
			r.log.Debugf("created %s", filepath.Join(f.dir, FolderImage))
		}
		return nil
	})
	return c.snapshot(), err
}

func (r *Runner) audioFolder(ctx context.Context, f audioFolder, opts artwork.Options) (bool, error) {
	for _, track := range f.tracks {
		u, err := r.fileURL(track)
		if err != nil {
			return false, err
		}
		res, err := r.artwork.Thumbnail(ctx, u, opts)
		if fetch.IsAbort(err) {
			return false, err
		}
		if err != nil {
			r.log.Debugf("%s: %v", track, err)
			continue
		}
		data, err := r.objectBytes(res.Best.URI)
		for _, item := range res.Items {
			r.renderer.URLs.Revoke(item.URI)
		}
		if err != nil {
			return false, err
		}
		if err := r.save(data, filepath.Join(f.dir, FolderImage)); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
