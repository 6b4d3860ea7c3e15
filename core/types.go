package core

import (
	"context"
	"strings"
	"time"
)

// Format is the closed set of image formats the optimizer dispatches on.
// Anything a backend reports outside this set is FormatOther.
type Format int

const (
	FormatOther Format = iota
	FormatGIF
	FormatJPEG
	FormatPNG
)

func (f Format) String() string {
	switch f {
	case FormatGIF:
		return "GIF"
	case FormatJPEG:
		return "JPEG"
	case FormatPNG:
		return "PNG"
	}
	return "OTHER"
}

// ParseFormat maps a raw backend format name onto Format.
func ParseFormat(raw string) Format {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "GIF":
		return FormatGIF
	case "JPEG", "JPG":
		return FormatJPEG
	case "PNG":
		return FormatPNG
	}
	return FormatOther
}

// CompressionAlgorithm selects the codec-level compression applied on write.
type CompressionAlgorithm int

const (
	CompressionUndefined CompressionAlgorithm = iota
	CompressionNone
	CompressionJPEG
	CompressionZip
	CompressionWebP
)

func (a CompressionAlgorithm) String() string {
	switch a {
	case CompressionNone:
		return "none"
	case CompressionJPEG:
		return "jpeg"
	case CompressionZip:
		return "zip"
	case CompressionWebP:
		return "webp"
	}
	return "undefined"
}

// CompressionSpec is the algorithm/quality pair recorded on a handle.
type CompressionSpec struct {
	Algorithm CompressionAlgorithm
	Quality   int // 0-100, not validated here
}

// Handle is an opaque reference to a decoded image. It is created and owned
// by a Backend; the optimizer only borrows it for the duration of a call.
type Handle interface {
	// Source returns the path the image was loaded from, or "" for images
	// decoded from memory.
	Source() string
}

// StorageKey uniquely identifies a stored image.
type StorageKey struct {
	Bucket string
	Path   string
}

// Step is the fundamental pipeline building block. A step mutates the handle
// through its backend and returns the handle to pass on.
type Step interface {
	Name() string
	Execute(ctx context.Context, h Handle) (Handle, error)
}

// Hook is an optional observer invoked around pipeline steps.
type Hook interface {
	BeforeStep(ctx context.Context, stepName string, h Handle)
	AfterStep(ctx context.Context, stepName string, h Handle, d time.Duration, err error)
}
