package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/Skryldev/image-optimizer/config"
	apperrors "github.com/Skryldev/image-optimizer/errors"
)

// NewAWSSession builds an AWS session from cfg. Static credentials are used
// when both keys are set; otherwise the SDK's default chain applies.
func NewAWSSession(cfg config.S3Config) (*session.Session, error) {
	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	if cfg.UsePathStyle {
		awsCfg = awsCfg.WithS3ForcePathStyle(true)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "s3.session", err)
	}
	return sess, nil
}

// awsClient implements S3Client with aws-sdk-go.
type awsClient struct {
	svc      *s3.S3
	uploader *s3manager.Uploader
}

// NewAWSClient wraps an AWS session as an S3Client. Uploads go through the
// multipart-aware s3manager.
func NewAWSClient(sess *session.Session) S3Client {
	svc := s3.New(sess)
	return &awsClient{svc: svc, uploader: s3manager.NewUploaderWithClient(svc)}
}

func (c *awsClient) PutObject(ctx context.Context, bucket, key string, body io.Reader, meta map[string]string) error {
	in := &s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	user := make(map[string]string, len(meta))
	for k, v := range meta {
		if k == "content-type" {
			in.ContentType = aws.String(v)
			continue
		}
		user[k] = v
	}
	if len(user) > 0 {
		in.Metadata = aws.StringMap(user)
	}
	_, err := c.uploader.UploadWithContext(ctx, in)
	return err
}

func (c *awsClient) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := c.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, key, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return out.Body, nil
}

func (c *awsClient) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := c.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return err
}

func (c *awsClient) HeadObject(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func isNotFound(err error) bool {
	if reqErr, ok := err.(awserr.RequestFailure); ok && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
