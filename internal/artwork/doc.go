// Package artwork finds cover art for an audio URL.
//
// Two sources are combined: sidecar images next to the file (see package
// sidecar) and pictures embedded in the file itself (see package embedded).
// How they are combined depends on the strategy:
//
//   - race: a cache-only sidecar sweep first, then both sources concurrently;
//     the first success wins and the other is cancelled
//   - all: both sources run to completion and every result is returned
//   - ordered: sources in configured order, embedded only when the sidecar
//     search came back empty
//
// Embedded pictures are materialized through package render, either passed
// through unchanged or transcoded when a size, MIME type or quality is
// requested.
package artwork
