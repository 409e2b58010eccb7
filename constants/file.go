package constants

import (
	"mime"
	"path/filepath"
	"strings"
)

// Coarse document classes the pipeline routes on.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// ImageExtensions holds the image formats accepted for upload.
var ImageExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"tiff": {},
	"tif":  {},
	"bmp":  {},
	"webp": {},
}

// AllowedExtensions holds every extension accepted for upload.
var AllowedExtensions = func() map[string]struct{} {
	m := map[string]struct{}{"pdf": {}}
	for k := range ImageExtensions {
		m[k] = struct{}{}
	}
	return m
}()

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to a format class, or "" when unsupported.
func MapExtToFormat(ext string) string {
	ext = NormalizeExt(ext)
	if ext == "pdf" {
		return PDF
	}
	if _, ok := ImageExtensions[ext]; ok {
		return IMAGE
	}
	return ""
}

// IsImage reports whether the upload is an image, judged by content type first
// and file extension as fallback.
func IsImage(filename, contentType string) bool {
	if strings.HasPrefix(contentType, "image/") {
		return true
	}
	return MapExtToFormat(filepath.Ext(filename)) == IMAGE
}

// IsPDF reports whether the upload is a PDF.
func IsPDF(filename, contentType string) bool {
	if contentType == "application/pdf" {
		return true
	}
	return MapExtToFormat(filepath.Ext(filename)) == PDF
}

// MimeTypeFor returns a content type for a filename, defaulting to octet-stream.
func MimeTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	switch NormalizeExt(ext) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
