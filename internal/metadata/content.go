package metadata

import (
	"path/filepath"
	"strings"
)

// ContentType returns the MIME type for a media file by extension
func ContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// SniffImageType guesses an image MIME type from its magic bytes
func SniffImageType(data []byte) string {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	case len(data) >= 4 && data[0] == 0x89 && string(data[1:4]) == "PNG":
		return "image/png"
	case len(data) >= 3 && string(data[:3]) == "GIF":
		return "image/gif"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	}
	return "application/octet-stream"
}

func imageExt(ext, mime string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch {
	case ext == "jpg" || ext == "jpeg" || mime == "image/jpeg":
		return ".jpg"
	case ext == "png" || mime == "image/png":
		return ".png"
	case ext == "gif" || mime == "image/gif":
		return ".gif"
	case ext == "webp" || mime == "image/webp":
		return ".webp"
	}
	return ".img"
}
