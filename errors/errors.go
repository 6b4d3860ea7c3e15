package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryBackend   Category = "backend"
	CategoryPipeline  Category = "pipeline"
	CategoryStorage   Category = "storage"
	CategoryConfig    Category = "config"
	CategoryTransient Category = "transient"
	CategoryInput     Category = "input"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category  Category
	Op        string // operation name
	Err       error
	Retryable bool
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a non-retryable ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Transient creates a retryable ProcessingError.
func Transient(op string, err error) *ProcessingError {
	return &ProcessingError{Category: CategoryTransient, Op: op, Err: err, Retryable: true}
}

// Wrap wraps an existing error with context. Errors that already carry a
// ProcessingError are returned unchanged so the innermost category wins.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return err
	}
	return New(category, op, err)
}

// Backend wraps a failure reported by an image backend.
func Backend(op string, err error) error {
	return Wrap(CategoryBackend, op, err)
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// IsBackend reports whether err was raised by an image backend.
func IsBackend(err error) bool { return IsCategory(err, CategoryBackend) }

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat   = errors.New("unsupported image format")
	ErrEmptyInput          = errors.New("empty input")
	ErrInvalidHandle       = errors.New("invalid image handle")
	ErrNoDestination       = errors.New("no destination and handle has no source path")
	ErrExportUnsupported   = errors.New("backend cannot export to memory")
	ErrAnimatedTransform   = errors.New("transform not supported on multi-frame image")
	ErrUnsupportedRotation = errors.New("rotation angle not supported")
	ErrInvalidQuality      = errors.New("compression quality out of range")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrNotFound            = errors.New("object not found")
)
