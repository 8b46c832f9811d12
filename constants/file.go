package constants

import "strings"

// Source kinds understood by the input normalizer.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

const (
	MimePDF  = "application/pdf"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeTIFF = "image/tiff"
	MimeBMP  = "image/bmp"
	MimeWEBP = "image/webp"

	// MimeGeneric is what browsers and scanners send when they do not know better.
	MimeGeneric = "application/octet-stream"
)

// AllowedExtensions holds the file extensions picked up by hot-folder ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
	"webp": {},
}

var mimeToFormat = map[string]string{
	MimePDF:  PDF,
	MimePNG:  IMAGE,
	MimeJPEG: IMAGE,
	MimeTIFF: IMAGE,
	MimeBMP:  IMAGE,
	MimeWEBP: IMAGE,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMime lowercases a MIME type and drops any parameters.
func NormalizeMime(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// MapMimeToFormat returns PDF, IMAGE or "" for unsupported types.
func MapMimeToFormat(mimeType string) string {
	return mimeToFormat[NormalizeMime(mimeType)]
}

// IsGenericMime reports whether a declared type carries no real information.
func IsGenericMime(mimeType string) bool {
	mt := NormalizeMime(mimeType)
	return mt == "" || mt == MimeGeneric || mt == "binary/octet-stream"
}
