// Package vips is a core.Backend backed by libvips through govips. It is
// faster than the native backend and keeps ICC profiles and animation
// frames intact, but needs libvips at build and run time.
package vips

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/image-optimizer/core"
	apperrors "github.com/Skryldev/image-optimizer/errors"
	"github.com/Skryldev/image-optimizer/utils"
)

// Name is the backend identifier reported by Backend.Name.
const Name = "vips"

// Config configures the libvips backend.
type Config struct {
	DefaultQuality   int
	MaxCacheSize     int
	ConcurrencyLevel int
	ReportLeaks      bool
	FileMode         os.FileMode
	Logger           core.Logger // receives libvips warnings; nil discards
}

var (
	startOnce sync.Once
	startErr  error
)

// startup initialises libvips once per process.
func startup(cfg Config) error {
	startOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				startErr = fmt.Errorf("libvips startup: %v", r)
			}
		}()
		if cfg.ConcurrencyLevel <= 0 {
			cfg.ConcurrencyLevel = runtime.NumCPU()
		}
		if cfg.Logger != nil {
			govips.LoggingSettings(logBridge(cfg.Logger), govips.LogLevelWarning)
		} else {
			govips.LoggingSettings(func(string, govips.LogLevel, string) {}, govips.LogLevelError)
		}
		govips.Startup(&govips.Config{
			ConcurrencyLevel: cfg.ConcurrencyLevel,
			MaxCacheSize:     cfg.MaxCacheSize,
			ReportLeaks:      cfg.ReportLeaks,
		})
	})
	return startErr
}

// Available reports whether libvips could be initialised in this process.
func Available() bool { return startup(Config{}) == nil }

// Shutdown releases all libvips resources. Call once at process exit.
func Shutdown() { govips.Shutdown() }

func logBridge(l core.Logger) govips.LoggingHandlerFunction {
	return func(domain string, level govips.LogLevel, msg string) {
		switch level {
		case govips.LogLevelError, govips.LogLevelCritical:
			l.Error("libvips", "domain", domain, "message", msg)
		case govips.LogLevelWarning:
			l.Warn("libvips", "domain", domain, "message", msg)
		default:
			l.Debug("libvips", "domain", domain, "message", msg)
		}
	}
}

// ── Image handle ──────────────────────────────────────────────────────────────

// Image wraps a *govips.ImageRef holding every page of the input.
type Image struct {
	source         string
	ref            *govips.ImageRef
	raw            []byte // kept for multi-page inputs to re-read the first page
	stripped       bool
	compression    core.CompressionSpec
	compressionSet bool
}

// Source implements core.Handle.
func (i *Image) Source() string { return i.source }

// Ref exposes the underlying libvips image.
func (i *Image) Ref() *govips.ImageRef { return i.ref }

// ── Backend ───────────────────────────────────────────────────────────────────

// Backend implements core.Backend and core.Exporter on libvips.
// Safe for concurrent use across goroutines; handles are not.
type Backend struct {
	cfg Config
}

// New initialises libvips (once per process) and returns a Backend.
func New(cfg Config) (*Backend, error) {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = 90
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}
	if err := startup(cfg); err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "vips.startup", err)
	}
	return &Backend{cfg: cfg}, nil
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Decode(data []byte) (core.Handle, error) {
	img, err := b.load(data)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (b *Backend) Open(path string) (core.Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Backend("vips.open", err)
	}
	img, err := b.load(data)
	if err != nil {
		return nil, err
	}
	img.source = path
	return img, nil
}

func (b *Backend) load(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryInput, "vips.decode", apperrors.ErrEmptyInput)
	}
	params := govips.NewImportParams()
	params.NumPages.Set(-1)
	ref, err := govips.LoadImageFromBuffer(data, params)
	if err != nil {
		return nil, apperrors.Backend("vips.decode", err)
	}
	img := &Image{ref: ref}
	if ref.Pages() > 1 {
		img.raw = data
	}
	return img, nil
}

func (b *Backend) Format(h core.Handle) (string, error) {
	img, err := imageOf(h, "vips.format")
	if err != nil {
		return "", err
	}
	return formatName(img.ref.Format()), nil
}

func (b *Backend) FrameCount(h core.Handle) (int, error) {
	img, err := imageOf(h, "vips.frame_count")
	if err != nil {
		return 0, err
	}
	if n := img.ref.Pages(); n > 0 {
		return n, nil
	}
	return 1, nil
}

func (b *Backend) Orientation(h core.Handle) (int, error) {
	img, err := imageOf(h, "vips.orientation")
	if err != nil {
		return 0, err
	}
	return img.ref.Orientation(), nil
}

func (b *Backend) SetOrientation(h core.Handle, code int) error {
	img, err := imageOf(h, "vips.set_orientation")
	if err != nil {
		return err
	}
	if err := img.ref.SetOrientation(code); err != nil {
		return apperrors.Backend("vips.set_orientation", err)
	}
	return nil
}

func (b *Backend) FlipHorizontal(h core.Handle) error {
	img, err := singlePage(h, "vips.flip")
	if err != nil {
		return err
	}
	if err := img.ref.Flip(govips.DirectionHorizontal); err != nil {
		return apperrors.Backend("vips.flip", err)
	}
	return nil
}

// Rotate turns the image clockwise by a multiple of 90 degrees. libvips
// right-angle rotation exposes no area, so background is unused.
func (b *Backend) Rotate(h core.Handle, degrees float64, _ string) error {
	img, err := singlePage(h, "vips.rotate")
	if err != nil {
		return err
	}
	angle, ok := rightAngle(degrees)
	if !ok {
		return apperrors.New(apperrors.CategoryBackend, "vips.rotate",
			fmt.Errorf("%w: %g", apperrors.ErrUnsupportedRotation, degrees))
	}
	if angle == govips.Angle0 {
		return nil
	}
	if err := img.ref.Rotate(angle); err != nil {
		return apperrors.Backend("vips.rotate", err)
	}
	return nil
}

func (b *Backend) StripMetadata(h core.Handle) error {
	img, err := imageOf(h, "vips.strip_metadata")
	if err != nil {
		return err
	}
	if err := img.ref.RemoveMetadata(); err != nil {
		return apperrors.Backend("vips.strip_metadata", err)
	}
	img.stripped = true
	return nil
}

func (b *Backend) SetCompression(h core.Handle, algorithm core.CompressionAlgorithm, quality int) error {
	img, err := imageOf(h, "vips.set_compression")
	if err != nil {
		return err
	}
	if quality < 0 || quality > 100 {
		return apperrors.New(apperrors.CategoryInput, "vips.set_compression",
			fmt.Errorf("%w: %d", apperrors.ErrInvalidQuality, quality))
	}
	img.compression = core.CompressionSpec{Algorithm: algorithm, Quality: quality}
	img.compressionSet = true
	return nil
}

func (b *Backend) WriteSingleFrame(h core.Handle, destination string) error {
	return b.write(h, destination, false)
}

func (b *Backend) WriteAllFrames(h core.Handle, destination string) error {
	return b.write(h, destination, true)
}

func (b *Backend) write(h core.Handle, destination string, allFrames bool) error {
	img, err := imageOf(h, "vips.write")
	if err != nil {
		return err
	}
	path := destination
	if path == "" {
		path = img.source
	}
	if path == "" {
		return apperrors.New(apperrors.CategoryInput, "vips.write", apperrors.ErrNoDestination)
	}
	data, err := b.export(img, allFrames)
	if err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(path, data, b.cfg.FileMode); err != nil {
		return apperrors.Backend("vips.write", err)
	}
	return nil
}

func (b *Backend) ExportSingleFrame(h core.Handle) ([]byte, error) {
	img, err := imageOf(h, "vips.export")
	if err != nil {
		return nil, err
	}
	return b.export(img, false)
}

func (b *Backend) ExportAllFrames(h core.Handle) ([]byte, error) {
	img, err := imageOf(h, "vips.export")
	if err != nil {
		return nil, err
	}
	return b.export(img, true)
}

func (b *Backend) export(img *Image, allFrames bool) ([]byte, error) {
	ref := img.ref
	if !allFrames && img.raw != nil {
		first, err := govips.LoadImageFromBuffer(img.raw, govips.NewImportParams())
		if err != nil {
			return nil, apperrors.Backend("vips.export.first_page", err)
		}
		defer first.Close()
		if img.stripped {
			if err := first.RemoveMetadata(); err != nil {
				return nil, apperrors.Backend("vips.export.first_page", err)
			}
		}
		ref = first
	}

	settings := exportSettings{
		quality:   b.cfg.DefaultQuality,
		algorithm: core.CompressionUndefined,
		strip:     img.stripped,
	}
	if img.compressionSet {
		settings.algorithm = img.compression.Algorithm
		if img.compression.Quality > 0 {
			settings.quality = img.compression.Quality
		}
	}

	buf, err := encode(ref, settings)
	if err != nil {
		return nil, apperrors.Backend("vips.encode."+formatName(ref.Format()), err)
	}
	return buf, nil
}

// Release closes the libvips image. Further use of h fails with
// ErrInvalidHandle.
func (b *Backend) Release(h core.Handle) {
	if img, ok := h.(*Image); ok && img != nil && img.ref != nil {
		img.ref.Close()
		img.ref = nil
		img.raw = nil
	}
}

func imageOf(h core.Handle, op string) (*Image, error) {
	img, ok := h.(*Image)
	if !ok || img == nil || img.ref == nil {
		return nil, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrInvalidHandle)
	}
	return img, nil
}

func singlePage(h core.Handle, op string) (*Image, error) {
	img, err := imageOf(h, op)
	if err != nil {
		return nil, err
	}
	if img.ref.Pages() > 1 {
		return nil, apperrors.New(apperrors.CategoryBackend, op, apperrors.ErrAnimatedTransform)
	}
	return img, nil
}

var (
	_ core.Backend  = (*Backend)(nil)
	_ core.Exporter = (*Backend)(nil)
)
