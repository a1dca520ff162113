// Package main is the entry point of the artwork server, an HTTP service
// that finds cover art for audio files and captures thumbnails from videos.
//
// # Application Lifecycle
//
//  1. Memory Configuration: sets GOMEMLIMIT from MEMORY_LIMIT or GOMEMLIMIT
//  2. Configuration Loading: reads environment variables, prepares directories
//  3. Renderer: initializes libvips for WebP output when VIPS_ENABLED is set
//  4. Thumbnail Cache: opens the SQLite cache in DATABASE_DIR, or an in-memory
//     cache of the same quota when the directory is unusable
//  5. Engines: the artwork engine (sidecar images and embedded pictures) and
//     the video engine (ffprobe/ffmpeg frame capture) share one HTTP client,
//     renderer and validator
//  6. HTTP Server Setup: routes, logging, metrics and compression middleware
//  7. Graceful Shutdown: SIGINT/SIGTERM drains both servers within 30s
//
// # HTTP Servers
//
//  1. Main Server (default port 8080): the /api endpoints, /blob/{id} and
//     the health probes
//  2. Metrics Server (default port 9090, optional): /metrics and /health
//
// See package startup for the environment variables.
//
// # Build Requirements
//
// CGO is required for SQLite and libvips. FFmpeg must be on PATH (or named by
// FFMPEG_PATH and FFPROBE_PATH) for video thumbnails.
//
//	go build -o artwork-server ./cmd/artwork-server
package main
