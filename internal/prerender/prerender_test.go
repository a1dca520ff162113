package prerender

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"media-artwork/internal/artwork"
	"media-artwork/internal/fetch"
	"media-artwork/internal/mediafixture"
	"media-artwork/internal/render"
	"media-artwork/internal/video"
)

type framePlayer struct{ w, h int }

func (p framePlayer) Load(context.Context, string) (video.Metadata, error) {
	return video.Metadata{Duration: 20, Width: p.w, Height: p.h, SeekableEnd: 20}, nil
}

func (framePlayer) Seek(_ context.Context, t float64) (float64, error) { return t, nil }

func (p framePlayer) Frame(context.Context) (video.Frame, error) {
	return video.Frame{Image: mediafixture.Image(p.w, p.h, false), MediaTime: 5}, nil
}

func (framePlayer) Release() {}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func mp3WithCover(w, h int) []byte {
	tag := mediafixture.ID3v23(32, mediafixture.APIC{Mime: "image/jpeg", PictureType: 3, Data: mediafixture.JPEG(w, h)})
	return mediafixture.MP3(tag, len(tag)+1024)
}

func newRunner(t *testing.T, config Config, player video.Player) *Runner {
	t.Helper()
	renderer := render.NewRenderer("http://prerender.local")
	client := fetch.NewClient(fetch.ClientConfig{FileRoot: config.Root})

	art, err := artwork.NewEngine(artwork.Config{Doer: client, Renderer: renderer})
	if err != nil {
		t.Fatal(err)
	}
	var vid *video.Engine
	if player != nil {
		vid, err = video.NewEngine(video.Config{Players: func() video.Player { return player }, Renderer: renderer})
		if err != nil {
			t.Fatal(err)
		}
	}
	r, err := NewRunner(config, art, vid, renderer, nil)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return r
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	return img
}

func TestAudioWritesFolderImage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "01.mp3"), []byte("no tag"))
	writeFile(t, filepath.Join(root, "a", "02.mp3"), mp3WithCover(1024, 768))
	writeFile(t, filepath.Join(root, "b", "track.mp3"), mp3WithCover(16, 16))
	writeFile(t, filepath.Join(root, "b", FolderImage), mediafixture.JPEG(4, 4))
	writeFile(t, filepath.Join(root, "c", "readme.txt"), []byte("nothing"))
	writeFile(t, filepath.Join(root, ".hidden", "x.mp3"), mp3WithCover(8, 8))

	r := newRunner(t, DefaultConfig(root), nil)
	stats, err := r.Audio(context.Background())
	if err != nil {
		t.Fatalf("Audio failed: %v", err)
	}
	if stats.Created != 1 || stats.Skipped != 1 || stats.Failed != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	img := decodeFile(t, filepath.Join(root, "a", FolderImage))
	if b := img.Bounds(); b.Dx() != 512 || b.Dy() != 384 {
		t.Errorf("Expected a 512x384 folder image, got %dx%d", b.Dx(), b.Dy())
	}
	if exists(filepath.Join(root, ".hidden", FolderImage)) {
		t.Error("Hidden folders should be skipped")
	}
	if exists(filepath.Join(root, "c", FolderImage)) {
		t.Error("Folders without audio should be left alone")
	}
	if n := r.renderer.URLs.Len(); n != 0 {
		t.Errorf("Expected every object URL to be revoked, %d left", n)
	}

	// A second pass finds nothing to do.
	stats, err = r.Audio(context.Background())
	if err != nil || stats.Created != 0 {
		t.Errorf("Second pass: stats %+v, err %v", stats, err)
	}
}

func TestVideoWritesSameStemThumbnail(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clips", "wide.mp4"), []byte("video"))
	writeFile(t, filepath.Join(root, "clips", "done.mkv"), []byte("video"))
	writeFile(t, filepath.Join(root, "clips", "done.webp"), []byte("thumb"))

	cfg := DefaultConfig(root)
	cfg.MaxDim = 320
	r := newRunner(t, cfg, framePlayer{w: 640, h: 360})

	stats, err := r.Video(context.Background())
	if err != nil {
		t.Fatalf("Video failed: %v", err)
	}
	if stats.Scanned != 2 || stats.Created != 1 || stats.Skipped != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	img := decodeFile(t, filepath.Join(root, "clips", "wide.jpg"))
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 180 {
		t.Errorf("Expected 320x180, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestVideoPortraitFitsMaxDim(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tall.mov"), []byte("video"))

	cfg := DefaultConfig(root)
	cfg.MaxDim = 200
	cfg.Ext = "png"
	r := newRunner(t, cfg, framePlayer{w: 360, h: 640})

	if _, err := r.Video(context.Background()); err != nil {
		t.Fatalf("Video failed: %v", err)
	}
	img := decodeFile(t, filepath.Join(root, "tall.png"))
	if b := img.Bounds(); b.Dy() != 200 || b.Dx() > 200 {
		t.Errorf("Expected the height capped at 200, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestCancelledPass(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "01.mp3"), mp3WithCover(8, 8))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRunner(t, DefaultConfig(root), nil)
	if _, err := r.Audio(ctx); err == nil {
		t.Fatal("Expected an error for a cancelled context")
	}
	if exists(filepath.Join(root, "a", FolderImage)) {
		t.Error("Nothing should be written after cancellation")
	}
}

func TestHasThumbnail(t *testing.T) {
	files := []string{"a.mp4", "a.JPG", "b.mkv", "b.txt", "c.avi", "c.backup.png"}
	tests := map[string]bool{
		"a.mp4": true,
		"b.mkv": false,
		"c.avi": false,
	}
	for name, want := range tests {
		if got := hasThumbnail(name, files); got != want {
			t.Errorf("hasThumbnail(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFileURL(t *testing.T) {
	root := t.TempDir()
	r := newRunner(t, DefaultConfig(root), nil)

	got, err := r.fileURL(filepath.Join(root, "My Album", "01 #1.mp3"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "file:///My%20Album/01%20%231.mp3"; got != want {
		t.Errorf("fileURL = %q, want %q", got, want)
	}
	if _, err := r.fileURL(filepath.Dir(root)); err == nil {
		t.Error("Expected an error for a path outside the root")
	}
}

func TestNewRunnerRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.Ext = "webp"
	if _, err := NewRunner(cfg, nil, nil, render.NewRenderer(""), nil); err == nil {
		t.Error("Expected an error for webp output")
	}
	cfg = DefaultConfig(t.TempDir())
	cfg.MaxDim = 0
	if _, err := NewRunner(cfg, nil, nil, render.NewRenderer(""), nil); err == nil {
		t.Error("Expected an error for a zero max dimension")
	}
}
