package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/image-optimizer/config"
	"github.com/Skryldev/image-optimizer/core"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, config.Validate(cfg))
	assert.Equal(t, 90, cfg.DefaultQuality)
	assert.Equal(t, config.BackendNative, cfg.Backend)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*config.Config){
		"backend":     func(c *config.Config) { c.Backend = "imagick" },
		"quality":     func(c *config.Config) { c.DefaultQuality = 101 },
		"compression": func(c *config.Config) { c.Compression = "lzw" },
		"chunk":       func(c *config.Config) { c.ChunkSize = 0 },
		"workers":     func(c *config.Config) { c.WorkerCount = -1 },
		"local":       func(c *config.Config) { c.Storage = config.StorageLocal },
		"s3":          func(c *config.Config) { c.Storage = config.StorageS3 },
		"storage":     func(c *config.Config) { c.Storage = "ftp" },
		"log":         func(c *config.Config) { c.LogBackend = "logrus" },
	}
	for name, mutate := range cases {
		cfg := config.Default()
		mutate(&cfg)
		assert.Error(t, config.Validate(cfg), name)
	}

	cfg := config.Default()
	cfg.Storage = config.StorageS3
	cfg.S3.Bucket = "images"
	cfg.LogBackend = "zap"
	assert.NoError(t, config.Validate(cfg))
}

func TestParseCompression(t *testing.T) {
	cases := map[string]core.CompressionAlgorithm{
		"":        core.CompressionJPEG,
		"JPEG":    core.CompressionJPEG,
		"zip":     core.CompressionZip,
		"deflate": core.CompressionZip,
		"webp":    core.CompressionWebP,
		"none":    core.CompressionNone,
	}
	for in, want := range cases {
		got, err := config.ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := config.ParseCompression("lzw")
	assert.Error(t, err)
}
