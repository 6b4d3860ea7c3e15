package hooks

import (
	"io"
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Skryldev/image-optimizer/config"
	"github.com/Skryldev/image-optimizer/core"
)

// ── slog ──────────────────────────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) { s.log.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...interface{})  { s.log.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...interface{})  { s.log.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...interface{}) { s.log.Error(msg, fields...) }

// ── zap ───────────────────────────────────────────────────────────────────────

// ZapLogger adapts a zap.Logger; fields are alternating keys and values.
type ZapLogger struct {
	log *zap.SugaredLogger
}

// NewZapLogger creates a logger backed by zap.
func NewZapLogger(l *zap.Logger) *ZapLogger { return &ZapLogger{log: l.Sugar()} }

func (z *ZapLogger) Debug(msg string, fields ...interface{}) { z.log.Debugw(msg, fields...) }
func (z *ZapLogger) Info(msg string, fields ...interface{})  { z.log.Infow(msg, fields...) }
func (z *ZapLogger) Warn(msg string, fields ...interface{})  { z.log.Warnw(msg, fields...) }
func (z *ZapLogger) Error(msg string, fields ...interface{}) { z.log.Errorw(msg, fields...) }

// Sync flushes buffered zap entries.
func (z *ZapLogger) Sync() error { return z.log.Sync() }

// NewLogger builds the logger selected by cfg.LogBackend, writing JSON to w.
func NewLogger(cfg config.Config, w io.Writer) core.Logger {
	if cfg.LogBackend == "zap" {
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		zc := zapcore.NewCore(enc, zapcore.AddSync(w), zapLevel(cfg.LogLevel))
		return NewZapLogger(zap.New(zc))
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(cfg.LogLevel)})
	return NewSlogLogger(slog.New(h))
}

func slogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func zapLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

var (
	_ core.Logger = (*SlogLogger)(nil)
	_ core.Logger = (*ZapLogger)(nil)
)
