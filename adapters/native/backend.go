// Package native is a pure-Go core.Backend built on image/*, golang.org/x/image,
// disintegration/imaging, rwcarlsen/goexif and chai2010/webp. It needs no
// cgo and no system libraries.
package native

import (
	"context"
	"fmt"
	"image"
	"image/gif"
	"os"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/Skryldev/image-optimizer/core"
	apperrors "github.com/Skryldev/image-optimizer/errors"
	"github.com/Skryldev/image-optimizer/utils"
)

// Name is the backend identifier reported by Backend.Name.
const Name = "native"

// Config tunes the native backend.
type Config struct {
	DefaultQuality int         // used when no compression quality was recorded
	MaxImageBytes  int64       // Open rejects larger files; 0 = unlimited
	ChunkSize      int         // read chunk size for Open
	FileMode       os.FileMode // permissions of written files
}

// ── Image handle ──────────────────────────────────────────────────────────────

// Image is the native handle. It is not safe for concurrent use.
type Image struct {
	source      string
	format      string
	frames      []image.Image
	anim        *gif.GIF // GIF timing and disposal, nil for other formats
	orientation int
	exif        []byte // JPEG Exif APP1 payload
	stripped    bool
	compression EncodeOptions
}

// Source implements core.Handle.
func (i *Image) Source() string { return i.source }

// Bounds returns the dimensions of the first frame.
func (i *Image) Bounds() image.Rectangle {
	if len(i.frames) == 0 {
		return image.Rectangle{}
	}
	return i.frames[0].Bounds()
}

// Frame returns the first frame.
func (i *Image) Frame() image.Image {
	if len(i.frames) == 0 {
		return nil
	}
	return i.frames[0]
}

// Compression returns the recorded compression settings.
func (i *Image) Compression() (core.CompressionSpec, bool) {
	return core.CompressionSpec{Algorithm: i.compression.Algorithm, Quality: i.compression.Quality}, i.compression.Set
}

// ── Backend ───────────────────────────────────────────────────────────────────

// Backend implements core.Backend and core.Exporter.
type Backend struct {
	cfg      Config
	registry *Registry
}

// New creates a native backend with the built-in codecs.
func New(cfg Config) *Backend {
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}
	return &Backend{cfg: cfg, registry: DefaultRegistry(cfg.DefaultQuality)}
}

// Registry exposes the codec table so callers can add formats.
func (b *Backend) Registry() *Registry { return b.registry }

func (b *Backend) Name() string { return Name }

func (b *Backend) Decode(data []byte) (core.Handle, error) {
	img, err := b.decode(data)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (b *Backend) Open(path string) (core.Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Backend("native.open", err)
	}
	defer f.Close()

	data, err := utils.ReadAll(context.Background(), f, b.cfg.MaxImageBytes, b.cfg.ChunkSize)
	if err != nil {
		return nil, apperrors.Backend("native.open", fmt.Errorf("%s: %w", path, err))
	}
	img, err := b.decode(data)
	if err != nil {
		return nil, err
	}
	img.source = path
	return img, nil
}

func (b *Backend) decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryInput, "native.decode", apperrors.ErrEmptyInput)
	}
	format := utils.DetectFormat(data)
	codec, ok := b.registry.CodecFor(format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryInput, "native.decode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}
	img, err := codec.Decode(data)
	if err != nil {
		return nil, apperrors.Backend("native.decode."+strings.ToLower(format), err)
	}
	img.format = format

	switch format {
	case utils.FormatJPEG:
		img.exif = extractEXIF(data)
		if len(img.exif) > len(exifHeader) {
			img.orientation = readOrientation(img.exif[len(exifHeader):])
		}
	case utils.FormatTIFF:
		img.orientation = readOrientation(data)
	}
	return img, nil
}

func (b *Backend) Format(h core.Handle) (string, error) {
	img, err := imageOf(h, "native.format")
	if err != nil {
		return "", err
	}
	return img.format, nil
}

func (b *Backend) FrameCount(h core.Handle) (int, error) {
	img, err := imageOf(h, "native.frame_count")
	if err != nil {
		return 0, err
	}
	return len(img.frames), nil
}

func (b *Backend) Orientation(h core.Handle) (int, error) {
	img, err := imageOf(h, "native.orientation")
	if err != nil {
		return 0, err
	}
	return img.orientation, nil
}

func (b *Backend) SetOrientation(h core.Handle, code int) error {
	img, err := imageOf(h, "native.set_orientation")
	if err != nil {
		return err
	}
	img.orientation = code
	return nil
}

func (b *Backend) FlipHorizontal(h core.Handle) error {
	img, err := singleFrame(h, "native.flip")
	if err != nil {
		return err
	}
	img.frames[0] = imaging.FlipH(img.frames[0])
	return nil
}

// Rotate turns the image clockwise. imaging rotates counter-clockwise, so
// the angle is negated.
func (b *Backend) Rotate(h core.Handle, degrees float64, background string) error {
	img, err := singleFrame(h, "native.rotate")
	if err != nil {
		return err
	}
	bg, err := parseColor(background)
	if err != nil {
		return apperrors.New(apperrors.CategoryInput, "native.rotate", err)
	}
	img.frames[0] = imaging.Rotate(img.frames[0], -degrees, bg)
	return nil
}

func (b *Backend) StripMetadata(h core.Handle) error {
	img, err := imageOf(h, "native.strip_metadata")
	if err != nil {
		return err
	}
	img.exif = nil
	img.stripped = true
	return nil
}

func (b *Backend) SetCompression(h core.Handle, algorithm core.CompressionAlgorithm, quality int) error {
	img, err := imageOf(h, "native.set_compression")
	if err != nil {
		return err
	}
	if quality < 0 || quality > 100 {
		return apperrors.New(apperrors.CategoryInput, "native.set_compression",
			fmt.Errorf("%w: %d", apperrors.ErrInvalidQuality, quality))
	}
	img.compression = EncodeOptions{Algorithm: algorithm, Quality: quality, Set: true}
	return nil
}

func (b *Backend) WriteSingleFrame(h core.Handle, destination string) error {
	return b.write(h, destination, false)
}

func (b *Backend) WriteAllFrames(h core.Handle, destination string) error {
	return b.write(h, destination, true)
}

func (b *Backend) write(h core.Handle, destination string, allFrames bool) error {
	img, err := imageOf(h, "native.write")
	if err != nil {
		return err
	}
	path := destination
	if path == "" {
		path = img.source
	}
	if path == "" {
		return apperrors.New(apperrors.CategoryInput, "native.write", apperrors.ErrNoDestination)
	}
	data, err := b.export(img, allFrames)
	if err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(path, data, b.cfg.FileMode); err != nil {
		return apperrors.Backend("native.write", err)
	}
	return nil
}

func (b *Backend) ExportSingleFrame(h core.Handle) ([]byte, error) {
	img, err := imageOf(h, "native.export")
	if err != nil {
		return nil, err
	}
	return b.export(img, false)
}

func (b *Backend) ExportAllFrames(h core.Handle) ([]byte, error) {
	img, err := imageOf(h, "native.export")
	if err != nil {
		return nil, err
	}
	return b.export(img, true)
}

func (b *Backend) export(img *Image, allFrames bool) ([]byte, error) {
	codec, ok := b.registry.CodecFor(img.format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryInput, "native.encode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, img.format))
	}
	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)

	if err := codec.Encode(buf, img, allFrames, img.compression); err != nil {
		return nil, apperrors.Backend("native.encode."+strings.ToLower(img.format), err)
	}
	out := utils.CloneBytes(buf.Bytes())
	if img.format == utils.FormatJPEG && !img.stripped && len(img.exif) > 0 {
		out = insertEXIF(out, patchOrientation(img.exif, img.orientation))
	}
	return out, nil
}

// Release drops the decoded frames. Further use of h fails with
// ErrInvalidHandle.
func (b *Backend) Release(h core.Handle) {
	if img, ok := h.(*Image); ok && img != nil {
		img.frames = nil
		img.anim = nil
		img.exif = nil
	}
}

func imageOf(h core.Handle, op string) (*Image, error) {
	img, ok := h.(*Image)
	if !ok || img == nil || img.frames == nil {
		return nil, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrInvalidHandle)
	}
	return img, nil
}

func singleFrame(h core.Handle, op string) (*Image, error) {
	img, err := imageOf(h, op)
	if err != nil {
		return nil, err
	}
	if len(img.frames) > 1 {
		return nil, apperrors.New(apperrors.CategoryBackend, op, apperrors.ErrAnimatedTransform)
	}
	return img, nil
}

var (
	_ core.Backend  = (*Backend)(nil)
	_ core.Exporter = (*Backend)(nil)
)
