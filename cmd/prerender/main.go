package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"media-artwork/internal/artwork"
	"media-artwork/internal/fetch"
	"media-artwork/internal/logging"
	"media-artwork/internal/memory"
	"media-artwork/internal/prerender"
	"media-artwork/internal/render"
	"media-artwork/internal/startup"
	"media-artwork/internal/video"
	"media-artwork/internal/workers"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		printUsage()
		return 2
	}

	mode := args[0]
	switch mode {
	case "audio", "video":
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", mode)
		printUsage()
		return 2
	}

	cfg, ffmpeg, ffprobe, err := parseFlags(mode, args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	memory.ConfigureFromEnv()
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	if err := render.InitVips(); err != nil {
		logging.Debug("libvips unavailable: %v", err)
	} else {
		defer render.ShutdownVips()
	}

	renderer := render.NewRenderer("http://prerender.local")
	client := fetch.NewClient(fetch.ClientConfig{
		Timeout:  startup.DefaultFetchTimeout,
		RetryMax: fetch.DefaultClientConfig().RetryMax,
		FileRoot: cfg.Root,
	})

	var (
		art *artwork.Engine
		vid *video.Engine
	)
	if mode == "audio" {
		art, err = artwork.NewEngine(artwork.Config{Doer: client, Renderer: renderer})
	} else {
		vid, err = video.NewEngine(video.Config{
			Players:  video.NewFFmpegFactory(ffmpeg, ffprobe, cfg.Root),
			Renderer: renderer,
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	runner, err := prerender.NewRunner(cfg, art, vid, renderer, monitor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	start := time.Now()
	var stats prerender.Stats
	if mode == "audio" {
		stats, err = runner.Audio(ctx)
	} else {
		stats, err = runner.Video(ctx)
	}

	if mode == "audio" {
		fmt.Printf("Scanned folders: %d\n", stats.Scanned)
		fmt.Printf("Created %s: %d\n", prerender.FolderImage, stats.Created)
		fmt.Printf("Skipped (already had %s): %d\n", prerender.FolderImage, stats.Skipped)
	} else {
		fmt.Printf("Videos scanned: %d\n", stats.Scanned)
		fmt.Printf("Thumbnails created: %d\n", stats.Created)
		fmt.Printf("Skipped (already had thumbnail): %d\n", stats.Skipped)
	}
	fmt.Printf("Failed: %d\n", stats.Failed)
	fmt.Printf("Elapsed: %s\n", time.Since(start).Round(time.Millisecond))

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags(mode string, args []string) (prerender.Config, string, string, error) {
	fs := flag.NewFlagSet(mode, flag.ContinueOnError)
	def := prerender.DefaultConfig(".")

	maxDim := fs.Int("max-dim", def.MaxDim, "Maximum output dimension (largest side) in pixels")
	quality := fs.Int("quality", def.Quality, "JPEG quality (1-100)")
	defWorkers := workers.ForIO(8)
	if mode == "video" {
		defWorkers = workers.ForCPU(4)
	}
	workerCount := fs.Int("workers", defWorkers, "Number of files processed in parallel (ARTWORK_WORKERS overrides the default)")
	debug := fs.Bool("debug", false, "Log every file")
	hidden := fs.Bool("hidden", false, "Include hidden files and folders")
	ext := def.Ext
	seek := def.Seek
	ffmpeg, ffprobe := "ffmpeg", "ffprobe"
	if mode == "video" {
		fs.StringVar(&ext, "ext", def.Ext, "Thumbnail extension: jpg, jpeg, png or gif")
		fs.Float64Var(&seek, "seek", def.Seek, "Capture time in seconds; values below 1 are a fraction of the duration")
		fs.StringVar(&ffmpeg, "ffmpeg", ffmpeg, "ffmpeg binary")
		fs.StringVar(&ffprobe, "ffprobe", ffprobe, "ffprobe binary")
	}
	if err := fs.Parse(args); err != nil {
		return prerender.Config{}, "", "", err
	}

	root := "."
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return prerender.Config{}, "", "", err
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return prerender.Config{}, "", "", fmt.Errorf("root path not found: %s", abs)
	}

	cfg := prerender.DefaultConfig(abs)
	cfg.MaxDim = *maxDim
	cfg.Quality = *quality
	cfg.Workers = *workerCount
	cfg.Debug = *debug
	cfg.SkipHidden = !*hidden
	cfg.Ext = ext
	cfg.Seek = seek
	return cfg, ffmpeg, ffprobe, nil
}

func printUsage() {
	fmt.Println("Thumbnail prerender")
	fmt.Println("")
	fmt.Println("Usage: prerender <command> [flags] [ROOT]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  audio   - Write folder.jpg from embedded artwork where missing")
	fmt.Println("  video   - Write <name>.jpg next to videos without a thumbnail")
	fmt.Println("")
	fmt.Println("Run 'prerender <command> -h' for the flags of a command.")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Println("  ARTWORK_WORKERS - Default worker count")
	fmt.Println("  GOMEMLIMIT, MEMORY_LIMIT, MEMORY_RATIO - Memory limit used for backpressure")
}
