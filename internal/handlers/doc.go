// Package handlers provides the HTTP API over the artwork and video
// thumbnail engines.
//
// It includes handlers for:
//   - Audio artwork lookup (GET /api/artwork)
//   - Video frame thumbnails (GET /api/video-thumbnail)
//   - Cache, object URL and canvas pool maintenance
//   - Serving blob: URIs issued by the renderer (GET /blob/{id})
//   - Health, readiness, version and metrics endpoints
//
// Engine errors map onto status codes: validation failures are 400, missing
// artwork is 404, load and seek timeouts are 504, cancellations are 499 (or
// 503 when the server gave up first) and upstream failures are 502.
package handlers
