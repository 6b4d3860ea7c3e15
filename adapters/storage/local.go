// Package storage provides StorageAdapter implementations for optimized
// images: the local filesystem and S3.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Skryldev/image-optimizer/core"
	apperrors "github.com/Skryldev/image-optimizer/errors"
	"github.com/Skryldev/image-optimizer/utils"
)

const metaSuffix = ".meta.json"

// Local stores images on the local filesystem. Bucket maps to a
// subdirectory of the root and Path to a file below it.
type Local struct {
	rootDir     string
	permissions os.FileMode
}

// NewLocal creates a Local storage adapter rooted at dir.
func NewLocal(dir string, perm os.FileMode) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "local.init", fmt.Errorf("mkdir %s: %w", dir, err))
	}
	return &Local{rootDir: dir, permissions: perm}, nil
}

// absPath resolves key below the root, refusing keys that escape it.
func (l *Local) absPath(op string, key core.StorageKey) (string, error) {
	if key.Path == "" {
		return "", apperrors.New(apperrors.CategoryInput, op, errors.New("empty storage path"))
	}
	rel := filepath.Join(filepath.FromSlash(key.Bucket), filepath.FromSlash(key.Path))
	if rel == "." || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperrors.New(apperrors.CategoryInput, op, fmt.Errorf("key %s/%s escapes storage root", key.Bucket, key.Path))
	}
	return filepath.Join(l.rootDir, rel), nil
}

func (l *Local) Put(ctx context.Context, key core.StorageKey, r io.Reader, meta map[string]string) error {
	path, err := l.absPath("local.put", key)
	if err != nil {
		return err
	}
	data, err := utils.ReadAll(ctx, r, 0, 0)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put.read", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put.mkdir", err)
	}
	if err := utils.WriteFileAtomic(path, data, l.permissions); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put.write", err)
	}

	// Metadata lives in a side-car JSON file.
	if len(meta) == 0 {
		_ = os.Remove(path + metaSuffix)
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put.meta", err)
	}
	if err := utils.WriteFileAtomic(path+metaSuffix, raw, l.permissions); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put.meta", err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, key core.StorageKey) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.get", err)
	}
	path, err := l.absPath("local.get", key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.New(apperrors.CategoryStorage, "local.get",
				fmt.Errorf("%s/%s: %w", key.Bucket, key.Path, apperrors.ErrNotFound))
		}
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.get.open", err)
	}
	return f, nil
}

// Meta returns the metadata stored alongside key, or nil when none was.
func (l *Local) Meta(ctx context.Context, key core.StorageKey) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.meta", err)
	}
	path, err := l.absPath("local.meta", key)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path + metaSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.meta", err)
	}
	var meta map[string]string
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.meta", err)
	}
	return meta, nil
}

func (l *Local) Delete(ctx context.Context, key core.StorageKey) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.delete", err)
	}
	path, err := l.absPath("local.delete", key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.delete", err)
	}
	_ = os.Remove(path + metaSuffix)
	return nil
}

func (l *Local) Exists(ctx context.Context, key core.StorageKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.Wrap(apperrors.CategoryStorage, "local.exists", err)
	}
	path, err := l.absPath("local.exists", key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, apperrors.Wrap(apperrors.CategoryStorage, "local.exists.stat", err)
}

var _ core.StorageAdapter = (*Local)(nil)
