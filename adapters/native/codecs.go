package native

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	xwebp "golang.org/x/image/webp"

	"github.com/Skryldev/image-optimizer/core"
)

// fallbackQuality matches the optimizer's default quality.
const fallbackQuality = 90

func single(m image.Image) *Image { return &Image{frames: []image.Image{m}} }

// quality picks the recorded quality, falling back to def when none was set
// or when 0 (the "backend default" value) was recorded.
func (o EncodeOptions) quality(def int) int {
	if o.Set && o.Quality > 0 {
		return o.Quality
	}
	if def <= 0 {
		def = fallbackQuality
	}
	return def
}

// ── JPEG ──────────────────────────────────────────────────────────────────────

type jpegCodec struct {
	defaultQuality int
}

func (c *jpegCodec) Decode(data []byte) (*Image, error) {
	m, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return single(m), nil
}

func (c *jpegCodec) Encode(w io.Writer, img *Image, _ bool, opts EncodeOptions) error {
	return jpeg.Encode(w, img.frames[0], &jpeg.Options{Quality: opts.quality(c.defaultQuality)})
}

// ── PNG ───────────────────────────────────────────────────────────────────────

type pngCodec struct{}

func (pngCodec) Decode(data []byte) (*Image, error) {
	m, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return single(m), nil
}

// PNG is always lossless; the algorithm only picks the zlib level.
func (pngCodec) Encode(w io.Writer, img *Image, _ bool, opts EncodeOptions) error {
	enc := &png.Encoder{CompressionLevel: png.DefaultCompression}
	if opts.Set {
		switch opts.Algorithm {
		case core.CompressionNone:
			enc.CompressionLevel = png.NoCompression
		case core.CompressionZip:
			enc.CompressionLevel = png.BestCompression
		}
	}
	return enc.Encode(w, img.frames[0])
}

// ── GIF ───────────────────────────────────────────────────────────────────────

type gifCodec struct{}

func (gifCodec) Decode(data []byte) (*Image, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	frames := make([]image.Image, len(g.Image))
	for i, p := range g.Image {
		frames[i] = p
	}
	return &Image{frames: frames, anim: g}, nil
}

func (gifCodec) Encode(w io.Writer, img *Image, allFrames bool, _ EncodeOptions) error {
	if allFrames && img.anim != nil && len(img.frames) > 1 {
		return gif.EncodeAll(w, img.anim)
	}
	return gif.Encode(w, img.frames[0], nil)
}

// ── WebP ──────────────────────────────────────────────────────────────────────

type webpCodec struct {
	defaultQuality int
}

func (c *webpCodec) Decode(data []byte) (*Image, error) {
	m, err := xwebp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return single(m), nil
}

func (c *webpCodec) Encode(w io.Writer, img *Image, _ bool, opts EncodeOptions) error {
	return webp.Encode(w, img.frames[0], &webp.Options{
		Lossless: opts.Set && opts.Algorithm == core.CompressionNone,
		Quality:  float32(opts.quality(c.defaultQuality)),
	})
}

// ── BMP ───────────────────────────────────────────────────────────────────────

type bmpCodec struct{}

func (bmpCodec) Decode(data []byte) (*Image, error) {
	m, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return single(m), nil
}

func (bmpCodec) Encode(w io.Writer, img *Image, _ bool, _ EncodeOptions) error {
	return bmp.Encode(w, img.frames[0])
}

// ── TIFF ──────────────────────────────────────────────────────────────────────

type tiffCodec struct{}

func (tiffCodec) Decode(data []byte) (*Image, error) {
	m, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return single(m), nil
}

func (tiffCodec) Encode(w io.Writer, img *Image, _ bool, opts EncodeOptions) error {
	o := &tiff.Options{Compression: tiff.Deflate, Predictor: true}
	if opts.Set && opts.Algorithm == core.CompressionNone {
		o = &tiff.Options{Compression: tiff.Uncompressed}
	}
	return tiff.Encode(w, img.frames[0], o)
}

var (
	_ Codec = (*jpegCodec)(nil)
	_ Codec = pngCodec{}
	_ Codec = gifCodec{}
	_ Codec = (*webpCodec)(nil)
	_ Codec = bmpCodec{}
	_ Codec = tiffCodec{}
)
