package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound is returned when no object exists under the requested key
var ErrNotFound = errors.New("object not found")

// uploadPartSize bounds the memory held per streamed multipart upload.
const uploadPartSize = 16 << 20

// Config holds object storage connection configuration
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicURL     string // download link base; derived from the endpoint when empty
	RetryAttempts int
	RetryInterval time.Duration
}

// Client wraps a MinIO S3 client scoped to a single bucket
type Client struct {
	mc     *minio.Client
	config *Config
	logger *slog.Logger
}

// NewClient creates a new object storage client
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	logger.Info("Object storage client initialized",
		slog.String("endpoint", config.Endpoint),
		slog.String("bucket", config.Bucket),
	)

	return &Client{
		mc:     mc,
		config: config,
		logger: logger,
	}, nil
}

// EnsureBucket verifies the configured bucket exists, creating it when
// missing. Connection errors are retried so the service can start while
// the store is still coming up.
func (c *Client) EnsureBucket(ctx context.Context) error {
	attempts := c.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	interval := c.config.RetryInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		exists, err := c.mc.BucketExists(ctx, c.config.Bucket)
		if err == nil {
			if exists {
				return nil
			}

			if err := c.mc.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("failed to create bucket %q: %w", c.config.Bucket, err)
			}

			c.logger.Info("Created object storage bucket",
				slog.String("bucket", c.config.Bucket),
			)
			return nil
		}

		lastErr = err
		c.logger.Warn("Object storage not reachable, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Any("error", err),
		)

		if attempt < attempts {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed to reach object storage after %d attempts: %w", attempts, lastErr)
}

// Upload streams the reader into the bucket as a multipart upload. The
// object size does not need to be known up front; memory use is bounded
// by the part size regardless of how large the stream grows.
func (c *Client) Upload(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	info, err := c.mc.PutObject(ctx, c.config.Bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    uploadPartSize,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload object %q: %w", key, err)
	}

	c.logger.Debug("Object uploaded",
		slog.String("key", key),
		slog.Int64("size", info.Size),
	)

	return info.Size, nil
}

// PutJSON marshals v and writes it under the key, replacing any previous
// object.
func (c *Client) PutJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode object %q: %w", key, err)
	}

	_, err = c.mc.PutObject(ctx, c.config.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to put object %q: %w", key, err)
	}

	return nil
}

// GetJSON reads the object under the key and unmarshals it into v.
// Returns ErrNotFound when no object exists.
func (c *Client) GetJSON(ctx context.Context, key string, v interface{}) error {
	obj, err := c.mc.GetObject(ctx, c.config.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to get object %q: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("object %q: %w", key, ErrNotFound)
		}
		return fmt.Errorf("failed to read object %q: %w", key, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode object %q: %w", key, err)
	}

	return nil
}

// ObjectURL derives the public download address of an object
func (c *Client) ObjectURL(key string) string {
	base := c.config.PublicURL
	if base == "" {
		scheme := "http"
		if c.config.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s", scheme, c.config.Endpoint)
	}

	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), c.config.Bucket, key)
}
