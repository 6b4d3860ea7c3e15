package native_test

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/image-optimizer/adapters/native"
	"github.com/Skryldev/image-optimizer/core"
	apperrors "github.com/Skryldev/image-optimizer/errors"
	"github.com/Skryldev/image-optimizer/utils"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

var red = color.NRGBA{R: 255, A: 255}

// markedImage is white with a red top-left pixel so transforms can be traced.
func markedImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	img.Set(0, 0, red)
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func animatedGIF(t *testing.T, frames int) []byte {
	t.Helper()
	pal := color.Palette{color.Black, color.White}
	g := &gif.GIF{}
	for i := 0; i < frames; i++ {
		p := image.NewPaletted(image.Rect(0, 0, 6, 4), pal)
		p.SetColorIndex(i%6, 0, 1)
		g.Image = append(g.Image, p)
		g.Delay = append(g.Delay, 10)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

func newBackend() *native.Backend {
	return native.New(native.Config{DefaultQuality: 90})
}

func decode(t *testing.T, b *native.Backend, data []byte) *native.Image {
	t.Helper()
	h, err := b.Decode(data)
	require.NoError(t, err)
	t.Cleanup(func() { b.Release(h) })
	return h.(*native.Image)
}

func isRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r > 0xF000 && g < 0x1000 && b < 0x1000
}

// ── Queries ───────────────────────────────────────────────────────────────────

func TestDecode_Queries(t *testing.T) {
	b := newBackend()
	assert.Equal(t, "native", b.Name())

	img := decode(t, b, encodePNG(t, markedImage(4, 3)))
	format, err := b.Format(img)
	require.NoError(t, err)
	assert.Equal(t, "PNG", format)

	n, err := b.FrameCount(img)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	o, err := b.Orientation(img)
	require.NoError(t, err)
	assert.Equal(t, 0, o, "no EXIF means undefined orientation")
	assert.Empty(t, img.Source())
}

func TestDecode_AnimatedGIF(t *testing.T) {
	b := newBackend()
	img := decode(t, b, animatedGIF(t, 3))

	n, err := b.FrameCount(img)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	err = b.FlipHorizontal(img)
	assert.ErrorIs(t, err, apperrors.ErrAnimatedTransform)
	err = b.Rotate(img, 90, "#000")
	assert.ErrorIs(t, err, apperrors.ErrAnimatedTransform)

	all, err := b.ExportAllFrames(img)
	require.NoError(t, err)
	g, err := gif.DecodeAll(bytes.NewReader(all))
	require.NoError(t, err)
	assert.Len(t, g.Image, 3)
	assert.Equal(t, []int{10, 10, 10}, g.Delay)

	first, err := b.ExportSingleFrame(img)
	require.NoError(t, err)
	g, err = gif.DecodeAll(bytes.NewReader(first))
	require.NoError(t, err)
	assert.Len(t, g.Image, 1)
}

func TestDecode_Errors(t *testing.T) {
	b := newBackend()

	_, err := b.Decode(nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)

	_, err = b.Decode([]byte("definitely not an image"))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)

	truncated := encodePNG(t, markedImage(4, 4))[:20]
	_, err = b.Decode(truncated)
	require.Error(t, err)
	assert.True(t, apperrors.IsBackend(err))

	_, err = b.Open(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.True(t, apperrors.IsBackend(err))
}

func TestOpen_SizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, markedImage(64, 64)), 0o644))

	b := native.New(native.Config{MaxImageBytes: 16})
	_, err := b.Open(path)
	assert.ErrorIs(t, err, utils.ErrTooLarge)
}

// ── Transforms ────────────────────────────────────────────────────────────────

func TestFlipHorizontal(t *testing.T) {
	b := newBackend()
	img := decode(t, b, encodePNG(t, markedImage(5, 3)))

	require.NoError(t, b.FlipHorizontal(img))
	assert.Equal(t, image.Rect(0, 0, 5, 3), img.Bounds())
	assert.True(t, isRed(img.Frame().At(4, 0)), "marker moves to top-right")
}

func TestRotate_Clockwise(t *testing.T) {
	cases := []struct {
		degrees float64
		w, h    int
		x, y    int // where the top-left marker ends up
	}{
		{90, 3, 5, 2, 0},
		{180, 5, 3, 4, 2},
		{-90, 3, 5, 0, 4},
	}
	for _, tc := range cases {
		b := newBackend()
		img := decode(t, b, encodePNG(t, markedImage(5, 3)))

		require.NoError(t, b.Rotate(img, tc.degrees, "#000"))
		assert.Equal(t, image.Rect(0, 0, tc.w, tc.h), img.Bounds(), "%g", tc.degrees)
		assert.True(t, isRed(img.Frame().At(tc.x, tc.y)), "%g", tc.degrees)
	}
}

func TestRotate_BadBackground(t *testing.T) {
	b := newBackend()
	img := decode(t, b, encodePNG(t, markedImage(2, 2)))
	err := b.Rotate(img, 90, "#zz")
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInput))
}

// ── Metadata & compression ────────────────────────────────────────────────────

func TestSetCompression(t *testing.T) {
	b := newBackend()
	img := decode(t, b, encodePNG(t, markedImage(2, 2)))

	_, set := img.Compression()
	assert.False(t, set)

	require.NoError(t, b.SetCompression(img, core.CompressionZip, 0))
	spec, set := img.Compression()
	assert.True(t, set)
	assert.Equal(t, core.CompressionSpec{Algorithm: core.CompressionZip}, spec)

	for _, q := range []int{-1, 101} {
		err := b.SetCompression(img, core.CompressionJPEG, q)
		assert.ErrorIs(t, err, apperrors.ErrInvalidQuality)
	}
}

func TestJPEGQuality_AffectsSize(t *testing.T) {
	b := newBackend()
	src := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			src.Set(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8(x ^ y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, &jpeg.Options{Quality: 100}))

	img := decode(t, b, buf.Bytes())
	require.NoError(t, b.SetCompression(img, core.CompressionJPEG, 95))
	high, err := b.ExportSingleFrame(img)
	require.NoError(t, err)

	require.NoError(t, b.SetCompression(img, core.CompressionJPEG, 10))
	low, err := b.ExportSingleFrame(img)
	require.NoError(t, err)

	assert.Less(t, len(low), len(high))
	assert.Equal(t, utils.FormatJPEG, utils.DetectFormat(low))
}

func TestWebP_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, markedImage(8, 8), &webp.Options{Lossless: true}))

	b := newBackend()
	img := decode(t, b, buf.Bytes())
	format, err := b.Format(img)
	require.NoError(t, err)
	assert.Equal(t, "WEBP", format)

	require.NoError(t, b.SetCompression(img, core.CompressionWebP, 80))
	out, err := b.ExportSingleFrame(img)
	require.NoError(t, err)
	assert.Equal(t, utils.FormatWebP, utils.DetectFormat(out))
}

// ── Write ─────────────────────────────────────────────────────────────────────

func TestWrite_Destinations(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	require.NoError(t, os.WriteFile(src, encodePNG(t, markedImage(5, 3)), 0o644))

	b := newBackend()
	h, err := b.Open(src)
	require.NoError(t, err)
	defer b.Release(h)
	assert.Equal(t, src, h.Source())

	require.NoError(t, b.FlipHorizontal(h))

	dest := filepath.Join(dir, "out.png")
	require.NoError(t, b.WriteSingleFrame(h, dest))
	out, err := os.ReadFile(dest)
	require.NoError(t, err)
	m, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.True(t, isRed(m.At(4, 0)))

	// Empty destination overwrites the source.
	require.NoError(t, b.WriteAllFrames(h, ""))
	out, err = os.ReadFile(src)
	require.NoError(t, err)
	m, err = png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.True(t, isRed(m.At(4, 0)))
}

func TestWrite_NoDestination(t *testing.T) {
	b := newBackend()
	img := decode(t, b, encodePNG(t, markedImage(2, 2)))
	err := b.WriteSingleFrame(img, "")
	assert.ErrorIs(t, err, apperrors.ErrNoDestination)
}

func TestRelease_InvalidatesHandle(t *testing.T) {
	b := newBackend()
	h, err := b.Decode(encodePNG(t, markedImage(2, 2)))
	require.NoError(t, err)
	b.Release(h)
	b.Release(h) // idempotent

	_, err = b.Format(h)
	assert.ErrorIs(t, err, apperrors.ErrInvalidHandle)
	_, err = b.FrameCount(nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidHandle)
}
