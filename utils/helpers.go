package utils

import (
	"bytes"
	"net/http"
)

// Raw format names, matching what backends report from Format.
const (
	FormatJPEG    = "JPEG"
	FormatPNG     = "PNG"
	FormatGIF     = "GIF"
	FormatWebP    = "WEBP"
	FormatBMP     = "BMP"
	FormatTIFF    = "TIFF"
	FormatUnknown = "UNKNOWN"
)

// DetectFormat sniffs the leading bytes of data and returns the image format.
func DetectFormat(data []byte) string {
	if len(data) < 4 {
		return FormatUnknown
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return FormatJPEG
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return FormatPNG
	}
	// GIF: GIF87a / GIF89a
	if bytes.HasPrefix(data, []byte("GIF8")) {
		return FormatGIF
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return FormatWebP
	}
	// TIFF: II*\0 / MM\0*
	if bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")) {
		return FormatTIFF
	}
	if data[0] == 'B' && data[1] == 'M' {
		return FormatBMP
	}
	// Fallback to net/http sniffing.
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/gif":
		return FormatGIF
	case "image/webp":
		return FormatWebP
	case "image/bmp":
		return FormatBMP
	}
	return FormatUnknown
}

// ContentType returns the MIME type for a raw format name.
func ContentType(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatWebP:
		return "image/webp"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	}
	return "application/octet-stream"
}

// CloneBytes returns a copy of b (safe for use after the source buffer is released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
