package core

import (
	"context"
	"io"
)

// Backend is the image library the optimizer coordinates. Every pixel-level
// operation lives behind it. Implementations live in adapters/.
type Backend interface {
	// Name identifies the backend ("native", "vips").
	Name() string

	// Decode reads an image from memory. Open reads it from path and
	// remembers path as the handle's source.
	Decode(data []byte) (Handle, error)
	Open(path string) (Handle, error)

	// Format returns the backend's raw format name, e.g. "JPEG".
	Format(h Handle) (string, error)
	FrameCount(h Handle) (int, error)

	// Orientation returns the raw EXIF code (1-8, 0 when absent).
	Orientation(h Handle) (int, error)
	SetOrientation(h Handle, code int) error

	FlipHorizontal(h Handle) error
	// Rotate turns the image clockwise by degrees, filling exposed areas
	// with background (a "#rrggbb" string).
	Rotate(h Handle, degrees float64, background string) error

	// StripMetadata removes EXIF, ICC and comment blocks.
	StripMetadata(h Handle) error
	SetCompression(h Handle, algorithm CompressionAlgorithm, quality int) error

	// WriteSingleFrame and WriteAllFrames persist the image. An empty
	// destination overwrites the handle's source.
	WriteSingleFrame(h Handle, destination string) error
	WriteAllFrames(h Handle, destination string) error

	// Release frees resources held by h. h must not be used afterwards.
	Release(h Handle)
}

// Exporter is implemented by backends that can encode a handle to memory.
type Exporter interface {
	ExportSingleFrame(h Handle) ([]byte, error)
	ExportAllFrames(h Handle) ([]byte, error)
}

// StorageAdapter persists processed images and retrieves them later.
// Implementations live in adapters/storage/.
type StorageAdapter interface {
	Put(ctx context.Context, key StorageKey, r io.Reader, meta map[string]string) error
	Get(ctx context.Context, key StorageKey) (io.ReadCloser, error)
	Delete(ctx context.Context, key StorageKey) error
	Exists(ctx context.Context, key StorageKey) (bool, error)
}

// MetricsCollector receives performance observations from the pipeline.
type MetricsCollector interface {
	RecordProcessingTime(stepName string, d interface{ Seconds() float64 })
	RecordThroughput(bytes int64)
	RecordError(stepName string, category string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
