// Package optimizer normalizes decoded images before they are written:
// orientation is undone, metadata stripped and JPEG quality applied. Animated
// images and formats outside GIF/JPEG/PNG pass through untouched.
//
// The Orchestrator holds no per-image state and may be shared between
// goroutines; a single Handle must not be used from two of them at once.
package optimizer

import (
	"bytes"
	"context"

	"github.com/Skryldev/image-optimizer/core"
	apperrors "github.com/Skryldev/image-optimizer/errors"
	"github.com/Skryldev/image-optimizer/pipeline"
	"github.com/Skryldev/image-optimizer/utils"
)

// DefaultQuality is the JPEG quality used when callers have no preference.
const DefaultQuality = 90

// Orchestrator coordinates backend calls for a single handle at a time.
type Orchestrator struct {
	backend    core.Backend
	hooks      []core.Hook
	background string
	logger     core.Logger
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithHooks registers observers for every step Optimize runs.
func WithHooks(h ...core.Hook) Option {
	return func(o *Orchestrator) { o.hooks = append(o.hooks, h...) }
}

// WithBackground sets the fill color used by rotations.
func WithBackground(color string) Option {
	return func(o *Orchestrator) {
		if color != "" {
			o.background = color
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l core.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns an Orchestrator driving backend.
func New(backend core.Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:    backend,
		background: pipeline.DefaultBackground,
		logger:     core.NopLogger{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Backend returns the backend the orchestrator drives.
func (o *Orchestrator) Backend() core.Backend { return o.backend }

// IsAnimated reports whether h holds more than one frame.
func (o *Orchestrator) IsAnimated(h core.Handle) (bool, error) {
	if err := checkHandle("is_animated", h); err != nil {
		return false, err
	}
	n, err := o.backend.FrameCount(h)
	if err != nil {
		return false, apperrors.Backend("frame_count", err)
	}
	return n > 1, nil
}

// GetFormat returns the format of h.
func (o *Orchestrator) GetFormat(h core.Handle) (core.Format, error) {
	if err := checkHandle("format", h); err != nil {
		return core.FormatOther, err
	}
	raw, err := o.backend.Format(h)
	if err != nil {
		return core.FormatOther, apperrors.Backend("format", err)
	}
	return core.ParseFormat(raw), nil
}

// IsGIF reports whether h is a GIF.
func (o *Orchestrator) IsGIF(h core.Handle) (bool, error) { return o.isFormat(h, core.FormatGIF) }

// IsJPEG reports whether h is a JPEG.
func (o *Orchestrator) IsJPEG(h core.Handle) (bool, error) { return o.isFormat(h, core.FormatJPEG) }

// IsPNG reports whether h is a PNG.
func (o *Orchestrator) IsPNG(h core.Handle) (bool, error) { return o.isFormat(h, core.FormatPNG) }

func (o *Orchestrator) isFormat(h core.Handle, want core.Format) (bool, error) {
	f, err := o.GetFormat(h)
	if err != nil {
		return false, err
	}
	return f == want, nil
}

// Autorotate undoes the EXIF orientation of h and resets the tag to TopLeft.
func (o *Orchestrator) Autorotate(h core.Handle) (core.Handle, error) {
	if err := checkHandle("autorotate", h); err != nil {
		return nil, err
	}
	return o.autorotateStep().Execute(context.Background(), h)
}

// StripMetadata removes EXIF, ICC and comment blocks from h.
func (o *Orchestrator) StripMetadata(h core.Handle) (core.Handle, error) {
	if err := checkHandle("strip_metadata", h); err != nil {
		return nil, err
	}
	return o.stripStep().Execute(context.Background(), h)
}

// Compress sets the compression applied when h is written.
// CompressionUndefined selects JPEG. Quality is not range checked.
func (o *Orchestrator) Compress(h core.Handle, quality int, algorithm core.CompressionAlgorithm) (core.Handle, error) {
	if err := checkHandle("compress", h); err != nil {
		return nil, err
	}
	return o.compressStep(quality, algorithm).Execute(context.Background(), h)
}

// Plan returns the steps Optimize runs for a still image of format f.
func (o *Orchestrator) Plan(f core.Format, quality int) []core.Step {
	switch f {
	case core.FormatGIF, core.FormatPNG:
		return []core.Step{o.autorotateStep(), o.stripStep()}
	case core.FormatJPEG:
		return []core.Step{o.autorotateStep(), o.stripStep(), o.compressStep(quality, core.CompressionJPEG)}
	}
	return nil
}

// Optimize normalizes h in place and returns it. Animated images are left
// alone, as are formats other than GIF, JPEG and PNG. A failing step stops
// the run; h may then carry the changes of the steps before it.
func (o *Orchestrator) Optimize(ctx context.Context, h core.Handle, quality int) (core.Handle, error) {
	animated, err := o.IsAnimated(h)
	if err != nil {
		return nil, err
	}
	if animated {
		o.logger.Debug("optimize.skip", "source", h.Source(), "reason", "animated")
		return h, nil
	}

	format, err := o.GetFormat(h)
	if err != nil {
		return nil, err
	}
	steps := o.Plan(format, quality)
	if len(steps) == 0 {
		o.logger.Debug("optimize.skip", "source", h.Source(), "reason", "format", "format", format.String())
		return h, nil
	}

	o.logger.Debug("optimize.start", "source", h.Source(), "format", format.String(), "steps", len(steps), "quality", quality)
	out, _, err := pipeline.New().Use(steps...).AddHook(o.hooks...).Run(ctx, h)
	if err != nil {
		o.logger.Warn("optimize.failed", "source", h.Source(), "format", format.String(), "error", err.Error())
		return nil, err
	}
	return out, nil
}

// Write persists h. Animated images are written with all their frames. An
// empty destination overwrites the file h was opened from.
func (o *Orchestrator) Write(ctx context.Context, h core.Handle, destination string) (core.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "write", err)
	}
	animated, err := o.IsAnimated(h)
	if err != nil {
		return nil, err
	}
	if animated {
		if err := o.backend.WriteAllFrames(h, destination); err != nil {
			return nil, apperrors.Backend("write_all_frames", err)
		}
	} else {
		if err := o.backend.WriteSingleFrame(h, destination); err != nil {
			return nil, apperrors.Backend("write_single_frame", err)
		}
	}
	o.logger.Info("image.written", "source", h.Source(), "destination", destination, "animated", animated)
	return h, nil
}

// Store encodes h and puts it into storage under key.
func (o *Orchestrator) Store(ctx context.Context, h core.Handle, storage core.StorageAdapter, key core.StorageKey) error {
	exp, ok := o.backend.(core.Exporter)
	if !ok {
		return apperrors.New(apperrors.CategoryBackend, "store", apperrors.ErrExportUnsupported)
	}
	animated, err := o.IsAnimated(h)
	if err != nil {
		return err
	}
	raw, err := o.backend.Format(h)
	if err != nil {
		return apperrors.Backend("store.format", err)
	}

	var data []byte
	if animated {
		data, err = exp.ExportAllFrames(h)
	} else {
		data, err = exp.ExportSingleFrame(h)
	}
	if err != nil {
		return apperrors.Backend("store.export", err)
	}

	meta := map[string]string{
		"content-type": utils.ContentType(raw),
		"format":       raw,
	}
	if err := storage.Put(ctx, key, bytes.NewReader(data), meta); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "store.put", err)
	}
	o.logger.Info("image.stored", "source", h.Source(), "bucket", key.Bucket, "path", key.Path, "bytes", len(data))
	return nil
}

func (o *Orchestrator) autorotateStep() core.Step {
	return &pipeline.AutorotateStep{Backend: o.backend, Background: o.background}
}

func (o *Orchestrator) stripStep() core.Step {
	return &pipeline.StripMetadataStep{Backend: o.backend}
}

func (o *Orchestrator) compressStep(quality int, algo core.CompressionAlgorithm) core.Step {
	return &pipeline.CompressStep{Backend: o.backend, Algorithm: algo, Quality: quality}
}

func checkHandle(op string, h core.Handle) error {
	if h == nil {
		return apperrors.New(apperrors.CategoryInput, op, apperrors.ErrInvalidHandle)
	}
	return nil
}
