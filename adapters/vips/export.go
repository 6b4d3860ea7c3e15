package vips

import (
	"math"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/image-optimizer/core"
	"github.com/Skryldev/image-optimizer/utils"
)

// exportSettings is the resolved compression for one export.
type exportSettings struct {
	quality   int
	algorithm core.CompressionAlgorithm
	strip     bool
}

// pngLevel maps the recorded algorithm onto a zlib level.
func (s exportSettings) pngLevel() int {
	switch s.algorithm {
	case core.CompressionNone:
		return 0
	case core.CompressionZip:
		return 9
	}
	return 6
}

func (s exportSettings) tiffCompression() govips.TiffCompression {
	switch s.algorithm {
	case core.CompressionNone:
		return govips.TiffCompressionNone
	case core.CompressionJPEG:
		return govips.TiffCompressionJpeg
	}
	return govips.TiffCompressionDeflate
}

// encode writes ref in its own format.
func encode(ref *govips.ImageRef, s exportSettings) ([]byte, error) {
	var (
		buf []byte
		err error
	)
	switch ref.Format() {
	case govips.ImageTypeJPEG:
		ep := govips.NewJpegExportParams()
		ep.Quality = s.quality
		ep.StripMetadata = s.strip
		buf, _, err = ref.ExportJpeg(ep)

	case govips.ImageTypePNG:
		ep := govips.NewPngExportParams()
		ep.Compression = s.pngLevel()
		ep.StripMetadata = s.strip
		buf, _, err = ref.ExportPng(ep)

	case govips.ImageTypeGIF:
		ep := govips.NewGifExportParams()
		ep.StripMetadata = s.strip
		buf, _, err = ref.ExportGIF(ep)

	case govips.ImageTypeWEBP:
		ep := govips.NewWebpExportParams()
		ep.Quality = s.quality
		ep.Lossless = s.algorithm == core.CompressionNone
		ep.StripMetadata = s.strip
		buf, _, err = ref.ExportWebp(ep)

	case govips.ImageTypeTIFF:
		ep := govips.NewTiffExportParams()
		ep.Quality = s.quality
		ep.Compression = s.tiffCompression()
		ep.StripMetadata = s.strip
		buf, _, err = ref.ExportTiff(ep)

	default:
		buf, _, err = ref.ExportNative()
	}
	return buf, err
}

// formatName maps a libvips loader type onto the raw names the optimizer
// dispatches on.
func formatName(t govips.ImageType) string {
	switch t {
	case govips.ImageTypeJPEG:
		return utils.FormatJPEG
	case govips.ImageTypePNG:
		return utils.FormatPNG
	case govips.ImageTypeGIF:
		return utils.FormatGIF
	case govips.ImageTypeWEBP:
		return utils.FormatWebP
	case govips.ImageTypeTIFF:
		return utils.FormatTIFF
	case govips.ImageTypeBMP:
		return utils.FormatBMP
	case govips.ImageTypeHEIF:
		return "HEIF"
	case govips.ImageTypeAVIF:
		return "AVIF"
	case govips.ImageTypeSVG:
		return "SVG"
	case govips.ImageTypePDF:
		return "PDF"
	}
	return utils.FormatUnknown
}

// rightAngle converts a clockwise angle to a libvips right-angle rotation.
func rightAngle(degrees float64) (govips.Angle, bool) {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	switch d {
	case 0:
		return govips.Angle0, true
	case 90:
		return govips.Angle90, true
	case 180:
		return govips.Angle180, true
	case 270:
		return govips.Angle270, true
	}
	return govips.Angle0, false
}
