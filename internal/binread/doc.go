// Package binread provides bounds-checked primitives for parsing media
// container bytes held in memory: a sequential reader, EBML variable-length
// integers, MP4 box iteration and ID3 synch-safe integers.
//
// All functions operate on byte slices that were fetched up front and never
// perform I/O. Reads past the end of a buffer return a *BoundsError rather
// than panicking.
package binread
