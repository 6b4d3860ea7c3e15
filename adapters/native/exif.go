package native

import (
	"bytes"
	"encoding/binary"

	"github.com/rwcarlsen/goexif/exif"
)

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP1 = 0xE1

	tagOrientation = 0x0112
	typeShort      = 3
)

var exifHeader = []byte("Exif\x00\x00")

// extractEXIF returns a copy of the first Exif APP1 payload in a JPEG
// stream, including the "Exif\0\0" header, or nil.
func extractEXIF(data []byte) []byte {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil
	}
	for i := 2; i+4 <= len(data); {
		if data[i] != 0xFF {
			return nil
		}
		marker := data[i+1]
		switch {
		case marker == 0xFF:
			i++ // fill byte
			continue
		case marker == markerSOS || marker == markerEOI:
			return nil
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			i += 2
			continue
		}
		length := int(binary.BigEndian.Uint16(data[i+2:]))
		end := i + 2 + length
		if length < 2 || end > len(data) {
			return nil
		}
		payload := data[i+4 : end]
		if marker == markerAPP1 && bytes.HasPrefix(payload, exifHeader) {
			out := make([]byte, len(payload))
			copy(out, payload)
			return out
		}
		i = end
	}
	return nil
}

// insertEXIF places payload as an APP1 segment right after SOI. Payloads
// too large for one segment are dropped.
func insertEXIF(jpegData, payload []byte) []byte {
	if len(payload) == 0 || len(payload)+2 > 0xFFFF || len(jpegData) < 2 {
		return jpegData
	}
	out := make([]byte, 0, len(jpegData)+len(payload)+4)
	out = append(out, jpegData[:2]...)
	out = append(out, 0xFF, markerAPP1)
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)+2))
	out = append(out, payload...)
	return append(out, jpegData[2:]...)
}

// patchOrientation returns a copy of an Exif payload with the IFD0
// orientation tag set to code. Payloads without the tag are returned as is.
func patchOrientation(payload []byte, code int) []byte {
	out := make([]byte, len(payload))
	copy(out, payload)
	if !bytes.HasPrefix(out, exifHeader) {
		return out
	}
	tiff := out[len(exifHeader):]
	if len(tiff) < 8 {
		return out
	}
	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return out
	}
	ifd := int(order.Uint32(tiff[4:8]))
	if ifd < 8 || ifd+2 > len(tiff) {
		return out
	}
	n := int(order.Uint16(tiff[ifd:]))
	for e := 0; e < n; e++ {
		off := ifd + 2 + 12*e
		if off+12 > len(tiff) {
			break
		}
		if order.Uint16(tiff[off:]) != tagOrientation {
			continue
		}
		if order.Uint16(tiff[off+2:]) == typeShort {
			order.PutUint16(tiff[off+8:], uint16(code))
		}
		break
	}
	return out
}

// readOrientation decodes a TIFF structure (a TIFF file or the body of an
// Exif payload) and returns its orientation, or 0 when absent.
func readOrientation(tiffData []byte) int {
	if len(tiffData) < 8 {
		return 0
	}
	// A partial decode still carries IFD0.
	x, _ := exif.Decode(bytes.NewReader(tiffData))
	if x == nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil || v < 0 || v > 8 {
		return 0
	}
	return v
}
