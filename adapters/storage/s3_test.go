package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/image-optimizer/config"
	"github.com/Skryldev/image-optimizer/core"
	apperrors "github.com/Skryldev/image-optimizer/errors"
)

type fakeS3 struct {
	objects map[string][]byte
	meta    map[string]map[string]string
	failPut error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, bucket, key string, body io.Reader, meta map[string]string) error {
	if f.failPut != nil {
		return f.failPut
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[bucket+"/"+key] = data
	f.meta[bucket+"/"+key] = meta
	return nil
}

func (f *fakeS3) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, apperrors.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeS3) DeleteObject(_ context.Context, bucket, key string) error {
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeS3) HeadObject(_ context.Context, bucket, key string) (bool, error) {
	_, ok := f.objects[bucket+"/"+key]
	return ok, nil
}

func TestS3_DefaultBucket(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	s, err := NewS3(client, "images")
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, core.StorageKey{Path: "a.png"}, bytes.NewReader([]byte("png")), map[string]string{"format": "PNG"}))
	require.NoError(t, s.Put(ctx, core.StorageKey{Bucket: "other", Path: "b.png"}, bytes.NewReader([]byte("png2")), nil))

	assert.Equal(t, []byte("png"), client.objects["images/a.png"])
	assert.Equal(t, "PNG", client.meta["images/a.png"]["format"])
	assert.Contains(t, client.objects, "other/b.png")

	ok, err := s.Exists(ctx, core.StorageKey{Path: "a.png"})
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, core.StorageKey{Path: "a.png"}))
	ok, err = s.Exists(ctx, core.StorageKey{Path: "a.png"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestS3_Errors(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	s, err := NewS3(client, "")
	require.NoError(t, err)

	err = s.Put(ctx, core.StorageKey{Path: "a.png"}, bytes.NewReader(nil), nil)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInput), "no bucket anywhere")

	_, err = s.Get(ctx, core.StorageKey{Bucket: "b", Path: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.False(t, apperrors.IsRetryable(err))

	client.failPut = errors.New("connection reset")
	err = s.Put(ctx, core.StorageKey{Bucket: "b", Path: "a.png"}, bytes.NewReader(nil), nil)
	assert.True(t, apperrors.IsRetryable(err))

	_, err = NewS3(nil, "b")
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfig))
}

func TestIsNotFound(t *testing.T) {
	notFound := awserr.NewRequestFailure(awserr.New("NotFound", "Not Found", nil), http.StatusNotFound, "req-1")
	assert.True(t, isNotFound(notFound))
	assert.True(t, isNotFound(awserr.New("NoSuchKey", "gone", nil)))

	denied := awserr.NewRequestFailure(awserr.New("AccessDenied", "nope", nil), http.StatusForbidden, "req-2")
	assert.False(t, isNotFound(denied))
	assert.False(t, isNotFound(errors.New("plain")))
}

func TestNewAWSSession(t *testing.T) {
	sess, err := NewAWSSession(config.S3Config{
		Region:          "eu-west-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", *sess.Config.Region)
	assert.Equal(t, "http://localhost:9000", *sess.Config.Endpoint)
	assert.True(t, *sess.Config.S3ForcePathStyle)

	creds, err := sess.Config.Credentials.Get()
	require.NoError(t, err)
	assert.Equal(t, "key", creds.AccessKeyID)

	assert.NotNil(t, NewAWSClient(sess))
}
