// Package mediatypes classifies media files by extension.
//
// It is dependency-free so any package can import it without creating import
// cycles.
//
//	switch mediatypes.TypeOf(name) {
//	case mediatypes.FileTypeAudio:
//	    // scan for embedded artwork
//	case mediatypes.FileTypeVideo:
//	    // capture a frame
//	}
//
// The extension maps (AudioExtensions, VideoExtensions, ImageExtensions) can be
// used directly for format checks.
package mediatypes
