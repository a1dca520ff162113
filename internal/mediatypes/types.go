package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType represents the type of a media file.
type FileType string

const (
	// FileTypeAudio represents an audio file that may carry embedded artwork.
	FileTypeAudio FileType = "audio"
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeImage represents an image usable as a thumbnail.
	FileTypeImage FileType = "image"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// AudioExtensions lists audio formats scanned for embedded artwork.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".m4b":  true,
	".aac":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
	".oga":  true,
	".opus": true,
	".aiff": true,
	".aif":  true,
	".wma":  true,
	".alac": true,
	".mka":  true,
}

// VideoExtensions lists video formats frames can be captured from.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".3gp":  true,
	".webm": true,
	".mkv":  true,
	".ts":   true,
	".mp2":  true,
	".avi":  true,
	".wmv":  true,
	".flv":  true,
	".ogv":  true,
}

// ImageExtensions lists formats that count as an existing thumbnail.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".mp3").
// Returns FileTypeOther if the extension is not recognized.
func GetFileType(ext string) FileType {
	switch {
	case AudioExtensions[ext]:
		return FileTypeAudio
	case VideoExtensions[ext]:
		return FileTypeVideo
	case ImageExtensions[ext]:
		return FileTypeImage
	}
	return FileTypeOther
}

// TypeOf classifies a file name by its extension, ignoring case.
func TypeOf(name string) FileType {
	return GetFileType(strings.ToLower(filepath.Ext(name)))
}
