package pipeline

import (
	"context"
	"fmt"

	"github.com/Skryldev/image-optimizer/core"
	apperrors "github.com/Skryldev/image-optimizer/errors"
)

// DefaultBackground fills areas exposed by rotations.
const DefaultBackground = "#000"

// ── Autorotate ────────────────────────────────────────────────────────────────

// AutorotateStep undoes the EXIF orientation of an image and then resets the
// tag to TopLeft. The reset happens even for unknown tag values, so running
// the step twice is the same as running it once.
type AutorotateStep struct {
	Backend    core.Backend
	Background string
}

func (s *AutorotateStep) Name() string { return "autorotate" }

func (s *AutorotateStep) Execute(_ context.Context, h core.Handle) (core.Handle, error) {
	code, err := s.Backend.Orientation(h)
	if err != nil {
		return nil, apperrors.Backend("autorotate.orientation", err)
	}

	bg := s.Background
	if bg == "" {
		bg = DefaultBackground
	}

	for _, t := range core.Orientation(code).Corrections() {
		switch t.Op {
		case core.OpFlipHorizontal:
			if err := s.Backend.FlipHorizontal(h); err != nil {
				return nil, apperrors.Backend("autorotate.flip", err)
			}
		case core.OpRotate:
			if err := s.Backend.Rotate(h, t.Degrees, bg); err != nil {
				return nil, apperrors.Backend(fmt.Sprintf("autorotate.rotate(%g)", t.Degrees), err)
			}
		}
	}

	if err := s.Backend.SetOrientation(h, int(core.OrientationTopLeft)); err != nil {
		return nil, apperrors.Backend("autorotate.set_orientation", err)
	}
	return h, nil
}

// ── Metadata strip ────────────────────────────────────────────────────────────

// StripMetadataStep removes EXIF, ICC and comment blocks.
type StripMetadataStep struct {
	Backend core.Backend
}

func (s *StripMetadataStep) Name() string { return "strip_metadata" }

func (s *StripMetadataStep) Execute(_ context.Context, h core.Handle) (core.Handle, error) {
	if err := s.Backend.StripMetadata(h); err != nil {
		return nil, apperrors.Backend("strip_metadata", err)
	}
	return h, nil
}

// ── Compress ──────────────────────────────────────────────────────────────────

// CompressStep records the compression the backend applies on write. Quality
// is handed over as-is; range checks are the backend's business.
type CompressStep struct {
	Backend   core.Backend
	Algorithm core.CompressionAlgorithm
	Quality   int
}

func (s *CompressStep) Name() string { return "compress" }

func (s *CompressStep) Execute(_ context.Context, h core.Handle) (core.Handle, error) {
	algo := s.Algorithm
	if algo == core.CompressionUndefined {
		algo = core.CompressionJPEG
	}
	if err := s.Backend.SetCompression(h, algo, s.Quality); err != nil {
		return nil, apperrors.Backend("compress", err)
	}
	return h, nil
}

// compile-time interface checks
var (
	_ core.Step = (*AutorotateStep)(nil)
	_ core.Step = (*StripMetadataStep)(nil)
	_ core.Step = (*CompressStep)(nil)
)
