// Package render turns image bytes or decoded frames into thumbnail URIs.
//
// A Renderer owns the two pieces of shared state involved: a CanvasPool of
// reusable RGBA buffers keyed by "<w>x<h>" and an ObjectURLs registry that
// hands out blob: URIs for encoded images and serves them until revoked.
//
// Materialize passes the input bytes through untouched unless a resize, a MIME
// change or an explicit quality was requested. Otherwise it decodes with
// imaging (falling back to libvips for formats the Go decoders do not cover),
// scales into a pooled canvas with golang.org/x/image/draw and encodes to
// JPEG, PNG or WebP. WebP encoding requires libvips; without it the output
// falls back to PNG and the returned MimeSpec says so.
package render
