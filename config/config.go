package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skryldev/image-optimizer/core"
)

// BackendKind selects the image backend.
type BackendKind string

const (
	BackendNative BackendKind = "native"
	BackendVips   BackendKind = "vips"
)

// StorageBackend selects the storage adapter.
type StorageBackend string

const (
	StorageNone  StorageBackend = ""
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
)

// Config is the top-level configuration struct.  All fields have safe defaults
// so callers can start with Default() and override only what they need.
type Config struct {
	Backend BackendKind

	// Optimize defaults.
	DefaultQuality   int    // 0-100; default 90
	Compression      string // "jpeg", "zip", "webp", "none"; default "jpeg"
	RotateBackground string // fill color for rotations; default "#000"

	// Batch controls.
	WorkerCount int // default: runtime.NumCPU()
	JobTimeout  time.Duration

	// Input limits for the native backend.
	MaxImageBytes int64 // 0 = no limit
	ChunkSize     int   // read chunk size in bytes; default 32 KiB

	// Storage.
	Storage StorageBackend
	Local   LocalConfig
	S3      S3Config

	Vips VipsConfig

	// Logging.
	LogLevel   string // "debug", "info", "warn", "error"
	LogBackend string // "slog" or "zap"
}

// LocalConfig configures the local filesystem storage adapter.
type LocalConfig struct {
	RootDir     string
	Permissions uint32 // default 0644
}

// S3Config configures the AWS S3 storage adapter.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional custom endpoint (MinIO, etc.)
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// VipsConfig tunes libvips when Backend is BackendVips.
type VipsConfig struct {
	MaxCacheSize     int
	ConcurrencyLevel int
	ReportLeaks      bool
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		Backend:          BackendNative,
		DefaultQuality:   90,
		Compression:      "jpeg",
		RotateBackground: "#000",
		WorkerCount:      0, // resolved at runtime to NumCPU
		JobTimeout:       30 * time.Second,
		ChunkSize:        32 * 1024,
		Storage:          StorageNone,
		LogLevel:         "info",
		LogBackend:       "slog",
	}
}

// ParseCompression maps a compression name onto core.CompressionAlgorithm.
func ParseCompression(name string) (core.CompressionAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "jpeg", "jpg":
		return core.CompressionJPEG, nil
	case "zip", "deflate":
		return core.CompressionZip, nil
	case "webp":
		return core.CompressionWebP, nil
	case "none":
		return core.CompressionNone, nil
	}
	return core.CompressionUndefined, fmt.Errorf("config: unknown compression %q", name)
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	switch c.Backend {
	case BackendNative, BackendVips:
	default:
		return fmt.Errorf("config: unknown Backend %q", c.Backend)
	}
	if c.DefaultQuality < 0 || c.DefaultQuality > 100 {
		return errors.New("config: DefaultQuality must be between 0 and 100")
	}
	if _, err := ParseCompression(c.Compression); err != nil {
		return err
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	if c.WorkerCount < 0 {
		return errors.New("config: WorkerCount must not be negative")
	}
	switch c.Storage {
	case StorageNone:
	case StorageLocal:
		if c.Local.RootDir == "" {
			return errors.New("config: Local.RootDir is required for local storage")
		}
	case StorageS3:
		if c.S3.Bucket == "" {
			return errors.New("config: S3.Bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("config: unknown Storage %q", c.Storage)
	}
	switch c.LogBackend {
	case "", "slog", "zap":
	default:
		return fmt.Errorf("config: unknown LogBackend %q", c.LogBackend)
	}
	return nil
}
