package native

import (
	"io"
	"sync"

	"github.com/Skryldev/image-optimizer/core"
	"github.com/Skryldev/image-optimizer/utils"
)

// Codec converts between encoded bytes and an Image for one raw format.
type Codec interface {
	Decode(data []byte) (*Image, error)
	// Encode writes img to w. allFrames asks for every frame; codecs that
	// only hold one frame ignore it.
	Encode(w io.Writer, img *Image, allFrames bool, opts EncodeOptions) error
}

// EncodeOptions carries the compression recorded on a handle.
type EncodeOptions struct {
	Algorithm core.CompressionAlgorithm
	Quality   int
	// Set is false when SetCompression was never called; codecs then use
	// their own defaults.
	Set bool
}

// ── Registry ──────────────────────────────────────────────────────────────────

// Registry maps raw format names ("JPEG", "PNG", ...) to codecs. Safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// DefaultRegistry returns a Registry with every built-in codec registered.
func DefaultRegistry(defaultQuality int) *Registry {
	r := NewRegistry()
	r.Register(utils.FormatJPEG, &jpegCodec{defaultQuality: defaultQuality})
	r.Register(utils.FormatPNG, pngCodec{})
	r.Register(utils.FormatGIF, gifCodec{})
	r.Register(utils.FormatWebP, &webpCodec{defaultQuality: defaultQuality})
	r.Register(utils.FormatBMP, bmpCodec{})
	r.Register(utils.FormatTIFF, tiffCodec{})
	return r
}

// Register installs c for format, replacing any previous codec.
func (r *Registry) Register(format string, c Codec) {
	r.mu.Lock()
	r.codecs[format] = c
	r.mu.Unlock()
}

// CodecFor returns the codec registered for format.
func (r *Registry) CodecFor(format string) (Codec, bool) {
	r.mu.RLock()
	c, ok := r.codecs[format]
	r.mu.RUnlock()
	return c, ok
}
