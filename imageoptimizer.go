// Package imageoptimizer normalizes images before they are stored or
// served. It undoes EXIF orientation, strips metadata and recompresses
// JPEGs. Animated images and formats other than GIF, JPEG and PNG pass
// through unchanged.
//
//	opt, err := imageoptimizer.New(imageoptimizer.DefaultConfig())
//	if err != nil { ... }
//	defer opt.Close()
//	err = opt.OptimizeFile(ctx, "in.jpg", "out.jpg")
package imageoptimizer

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/Skryldev/image-optimizer/adapters/native"
	"github.com/Skryldev/image-optimizer/adapters/storage"
	"github.com/Skryldev/image-optimizer/adapters/vips"
	"github.com/Skryldev/image-optimizer/config"
	"github.com/Skryldev/image-optimizer/core"
	apperrors "github.com/Skryldev/image-optimizer/errors"
	"github.com/Skryldev/image-optimizer/hooks"
	"github.com/Skryldev/image-optimizer/optimizer"
)

// Re-export Format constants for convenience.
const (
	GIF   = core.FormatGIF
	JPEG  = core.FormatJPEG
	PNG   = core.FormatPNG
	Other = core.FormatOther
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// IsSupportedBackend reports whether name selects a backend this build can
// run. "vips" additionally needs libvips to initialise.
func IsSupportedBackend(name string) bool {
	switch config.BackendKind(strings.ToLower(strings.TrimSpace(name))) {
	case config.BackendNative:
		return true
	case config.BackendVips:
		return vips.Available()
	}
	return false
}

// Optimizer is the primary entry point. It is safe for concurrent use;
// individual handles are not.
type Optimizer struct {
	cfg         config.Config
	compression core.CompressionAlgorithm
	backend     core.Backend
	orch        *optimizer.Orchestrator
	logger      core.Logger
	metrics     *hooks.InMemoryMetrics
	storage     core.StorageAdapter
}

// Option customises New.
type Option func(*options)

type options struct {
	backend core.Backend
	logger  core.Logger
	storage core.StorageAdapter
	output  io.Writer
	hooks   []core.Hook
}

// WithBackend uses b instead of the backend named by Config.Backend.
func WithBackend(b core.Backend) Option { return func(o *options) { o.backend = b } }

// WithLogger uses l instead of building one from Config.LogBackend.
func WithLogger(l core.Logger) Option { return func(o *options) { o.logger = l } }

// WithLogOutput sends the built-in logger's JSON lines to w (default stderr).
func WithLogOutput(w io.Writer) Option { return func(o *options) { o.output = w } }

// WithStorage uses s instead of the adapter named by Config.Storage.
func WithStorage(s core.StorageAdapter) Option { return func(o *options) { o.storage = s } }

// WithHooks adds step observers next to the built-in logging and metrics hooks.
func WithHooks(h ...core.Hook) Option { return func(o *options) { o.hooks = append(o.hooks, h...) } }

// New validates cfg and wires backend, logger, metrics and storage.
func New(cfg config.Config, opts ...Option) (*Optimizer, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "new", err)
	}
	algo, _ := config.ParseCompression(cfg.Compression)

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.output == nil {
		o.output = os.Stderr
	}
	if o.logger == nil {
		o.logger = hooks.NewLogger(cfg, o.output)
	}

	backend := o.backend
	if backend == nil {
		var err error
		if backend, err = newBackend(cfg, o.logger); err != nil {
			return nil, err
		}
	}

	store := o.storage
	if store == nil {
		var err error
		if store, err = newStorage(cfg); err != nil {
			return nil, err
		}
	}

	metrics := hooks.NewInMemoryMetrics()
	stepHooks := append([]core.Hook{hooks.NewLoggingHook(o.logger), hooks.NewMetricsHook(metrics)}, o.hooks...)

	orch := optimizer.New(backend,
		optimizer.WithHooks(stepHooks...),
		optimizer.WithBackground(cfg.RotateBackground),
		optimizer.WithLogger(o.logger),
	)
	o.logger.Debug("optimizer.ready", "backend", backend.Name(), "storage", string(cfg.Storage))

	return &Optimizer{
		cfg:         cfg,
		compression: algo,
		backend:     backend,
		orch:        orch,
		logger:      o.logger,
		metrics:     metrics,
		storage:     store,
	}, nil
}

func newBackend(cfg config.Config, logger core.Logger) (core.Backend, error) {
	switch cfg.Backend {
	case config.BackendVips:
		return vips.New(vips.Config{
			DefaultQuality:   cfg.DefaultQuality,
			MaxCacheSize:     cfg.Vips.MaxCacheSize,
			ConcurrencyLevel: cfg.Vips.ConcurrencyLevel,
			ReportLeaks:      cfg.Vips.ReportLeaks,
			Logger:           logger,
		})
	default:
		return native.New(native.Config{
			DefaultQuality: cfg.DefaultQuality,
			MaxImageBytes:  cfg.MaxImageBytes,
			ChunkSize:      cfg.ChunkSize,
		}), nil
	}
}

func newStorage(cfg config.Config) (core.StorageAdapter, error) {
	switch cfg.Storage {
	case config.StorageLocal:
		return storage.NewLocal(cfg.Local.RootDir, os.FileMode(cfg.Local.Permissions))
	case config.StorageS3:
		sess, err := storage.NewAWSSession(cfg.S3)
		if err != nil {
			return nil, err
		}
		return storage.NewS3(storage.NewAWSClient(sess), cfg.S3.Bucket)
	}
	return nil, nil
}

// ── Handles ───────────────────────────────────────────────────────────────────

// Open loads the image at path.
func (o *Optimizer) Open(path string) (core.Handle, error) { return o.backend.Open(path) }

// Decode loads an image from memory.
func (o *Optimizer) Decode(data []byte) (core.Handle, error) { return o.backend.Decode(data) }

// Release frees h.
func (o *Optimizer) Release(h core.Handle) {
	if h != nil {
		o.backend.Release(h)
	}
}

// ── Operations ────────────────────────────────────────────────────────────────

// IsAnimated reports whether h holds more than one frame.
func (o *Optimizer) IsAnimated(h core.Handle) (bool, error) { return o.orch.IsAnimated(h) }

// GetFormat returns the format of h.
func (o *Optimizer) GetFormat(h core.Handle) (core.Format, error) { return o.orch.GetFormat(h) }

// Autorotate undoes the EXIF orientation of h.
func (o *Optimizer) Autorotate(h core.Handle) (core.Handle, error) { return o.orch.Autorotate(h) }

// StripMetadata removes EXIF, ICC and comment blocks from h.
func (o *Optimizer) StripMetadata(h core.Handle) (core.Handle, error) {
	return o.orch.StripMetadata(h)
}

// Compress records quality with the configured compression algorithm.
func (o *Optimizer) Compress(h core.Handle, quality int) (core.Handle, error) {
	return o.orch.Compress(h, quality, o.compression)
}

// Optimize normalizes h using the configured default quality.
func (o *Optimizer) Optimize(ctx context.Context, h core.Handle) (core.Handle, error) {
	return o.orch.Optimize(ctx, h, o.cfg.DefaultQuality)
}

// OptimizeWithQuality normalizes h with an explicit JPEG quality.
func (o *Optimizer) OptimizeWithQuality(ctx context.Context, h core.Handle, quality int) (core.Handle, error) {
	return o.orch.Optimize(ctx, h, quality)
}

// Write persists h; an empty destination overwrites its source file.
func (o *Optimizer) Write(ctx context.Context, h core.Handle, destination string) (core.Handle, error) {
	return o.orch.Write(ctx, h, destination)
}

// Store encodes h into the configured storage under key.
func (o *Optimizer) Store(ctx context.Context, h core.Handle, key core.StorageKey) error {
	if o.storage == nil {
		return apperrors.New(apperrors.CategoryStorage, "store", apperrors.ErrStorageUnavailable)
	}
	return o.orch.Store(ctx, h, o.storage, key)
}

// OptimizeFile opens src, optimizes it and writes it to dst ("" = src).
func (o *Optimizer) OptimizeFile(ctx context.Context, src, dst string) error {
	h, err := o.backend.Open(src)
	if err != nil {
		return err
	}
	defer o.backend.Release(h)

	if _, err := o.Optimize(ctx, h); err != nil {
		return err
	}
	if _, err := o.Write(ctx, h, dst); err != nil {
		return err
	}
	if dst == "" {
		dst = src
	}
	if fi, err := os.Stat(dst); err == nil {
		o.metrics.RecordThroughput(fi.Size())
	}
	return nil
}

// Batch optimizes jobs on a worker pool sized by Config.WorkerCount. Jobs
// without a quality use Config.DefaultQuality.
func (o *Optimizer) Batch(ctx context.Context, jobs []optimizer.Job) []optimizer.JobResult {
	filled := make([]optimizer.Job, len(jobs))
	for i, j := range jobs {
		if j.Quality == 0 {
			j.Quality = o.cfg.DefaultQuality
		}
		filled[i] = j
	}
	b := optimizer.NewBatch(o.orch, o.cfg.WorkerCount, optimizer.WithJobTimeout(o.cfg.JobTimeout))
	defer b.Stop()

	results := b.Run(ctx, filled)
	o.logger.Info("batch.done", "jobs", len(jobs), "processed", b.Processed(), "failed", b.Failed())
	return results
}

// ── Introspection ─────────────────────────────────────────────────────────────

// Backend returns the active backend.
func (o *Optimizer) Backend() core.Backend { return o.backend }

// Orchestrator exposes the underlying orchestrator for advanced use.
func (o *Optimizer) Orchestrator() *optimizer.Orchestrator { return o.orch }

// Storage returns the configured storage adapter, or nil.
func (o *Optimizer) Storage() core.StorageAdapter { return o.storage }

// Metrics returns a snapshot of per-step timings and errors.
func (o *Optimizer) Metrics() hooks.MetricsSnapshot { return o.metrics.Snapshot() }

// Close flushes the logger. libvips stays initialised for the process.
func (o *Optimizer) Close() error {
	if z, ok := o.logger.(*hooks.ZapLogger); ok {
		return z.Sync()
	}
	return nil
}
