package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Skryldev/image-optimizer/core"
	apperrors "github.com/Skryldev/image-optimizer/errors"
)

// S3Client defines the minimal S3 surface used by the adapter, so tests can
// inject a double. NewAWSClient adapts the AWS SDK.
type S3Client interface {
	PutObject(ctx context.Context, bucket, key string, body io.Reader, meta map[string]string) error
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	HeadObject(ctx context.Context, bucket, key string) (bool, error)
}

// S3 is the StorageAdapter backed by AWS S3 (or S3-compatible stores).
// Keys with an empty Bucket use the default bucket.
type S3 struct {
	client S3Client
	bucket string
}

// NewS3 creates an S3 adapter. client must not be nil.
func NewS3(client S3Client, defaultBucket string) (*S3, error) {
	if client == nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "s3.init", errors.New("client must not be nil"))
	}
	return &S3{client: client, bucket: defaultBucket}, nil
}

func (s *S3) target(op string, key core.StorageKey) (string, error) {
	bucket := key.Bucket
	if bucket == "" {
		bucket = s.bucket
	}
	if bucket == "" || key.Path == "" {
		return "", apperrors.New(apperrors.CategoryInput, op,
			fmt.Errorf("incomplete key %q/%q", bucket, key.Path))
	}
	return bucket, nil
}

func (s *S3) Put(ctx context.Context, key core.StorageKey, r io.Reader, meta map[string]string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "s3.put", err)
	}
	bucket, err := s.target("s3.put", key)
	if err != nil {
		return err
	}
	if err := s.client.PutObject(ctx, bucket, key.Path, r, meta); err != nil {
		return apperrors.Transient("s3.put", err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, key core.StorageKey) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "s3.get", err)
	}
	bucket, err := s.target("s3.get", key)
	if err != nil {
		return nil, err
	}
	rc, err := s.client.GetObject(ctx, bucket, key.Path)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.New(apperrors.CategoryStorage, "s3.get", err)
	}
	if err != nil {
		return nil, apperrors.Transient("s3.get", err)
	}
	return rc, nil
}

func (s *S3) Delete(ctx context.Context, key core.StorageKey) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "s3.delete", err)
	}
	bucket, err := s.target("s3.delete", key)
	if err != nil {
		return err
	}
	if err := s.client.DeleteObject(ctx, bucket, key.Path); err != nil {
		return apperrors.Transient("s3.delete", err)
	}
	return nil
}

func (s *S3) Exists(ctx context.Context, key core.StorageKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.Wrap(apperrors.CategoryStorage, "s3.exists", err)
	}
	bucket, err := s.target("s3.exists", key)
	if err != nil {
		return false, err
	}
	ok, err := s.client.HeadObject(ctx, bucket, key.Path)
	if err != nil {
		return false, apperrors.Transient("s3.exists", err)
	}
	return ok, nil
}

var _ core.StorageAdapter = (*S3)(nil)
