// Package minio stores and fetches the biomarker specification document in
// an S3-compatible object store.
package minio

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/biomarker-engine/internal/config"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/pkg/errors"
)

// MaxObjectSize bounds a specification download.
const MaxObjectSize = 16 << 20

// ObjectInfo is the subset of object metadata the engine uses.
type ObjectInfo struct {
	Key          string
	ETag         string
	Size         int64
	LastModified time.Time
}

// ObjectAPI is the slice of the MinIO SDK used here.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string) error
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error)
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error)
}

// Client reads and writes objects in one bucket.
type Client struct {
	api    ObjectAPI
	bucket string
	logger logging.Logger
}

// NewClient connects to cfg.Endpoint and checks that cfg.Bucket is reachable.
func NewClient(ctx context.Context, cfg config.MinIOConfig, log logging.Logger) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "minio endpoint and bucket are required")
	}
	sdk, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "create minio client")
	}
	c := NewClientWithAPI(sdkAdapter{sdk}, cfg.Bucket, log)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := c.api.BucketExists(ctx, cfg.Bucket); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "connect to minio")
	}
	c.logger.Info("minio client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewClientWithAPI wraps an ObjectAPI, e.g. an in-memory fake.
func NewClientWithAPI(api ObjectAPI, bucket string, log logging.Logger) *Client {
	return &Client{api: api, bucket: bucket, logger: logging.OrNop(log).Named("minio")}
}

// Bucket is the bucket every call addresses.
func (c *Client) Bucket() string { return c.bucket }

// EnsureBucket creates the bucket when it does not exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	ok, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "check bucket")
	}
	if ok {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.bucket); err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "create bucket %s", c.bucket)
	}
	c.logger.Info("bucket created", logging.String("bucket", c.bucket))
	return nil
}

// Get downloads key.  Objects above MaxObjectSize are refused.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	rc, err := c.api.GetObject(ctx, c.bucket, key)
	if err != nil {
		return nil, c.mapError(err, "get", key)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxObjectSize+1))
	if err != nil {
		return nil, c.mapError(err, "read", key)
	}
	if len(data) > MaxObjectSize {
		return nil, errors.New(errors.ErrCodeStorageError, "object too large").WithDetail(key)
	}
	return data, nil
}

// Stat returns the metadata of key.
func (c *Client) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := c.api.StatObject(ctx, c.bucket, key)
	if err != nil {
		return ObjectInfo{}, c.mapError(err, "stat", key)
	}
	return info, nil
}

// Put uploads data under key.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) (ObjectInfo, error) {
	info, err := c.api.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return ObjectInfo{}, c.mapError(err, "put", key)
	}
	c.logger.Info("object uploaded",
		logging.String("key", key), logging.Int64("size", info.Size), logging.String("etag", info.ETag))
	return info, nil
}

func (c *Client) mapError(err error, op, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return errors.NotFound("object not found").WithDetailf("%s/%s", c.bucket, key).WithCause(err)
	}
	return errors.Wrapf(err, errors.ErrCodeStorageError, "%s %s/%s", op, c.bucket, key)
}

// sdkAdapter narrows *minio.Client to ObjectAPI.
type sdkAdapter struct{ c *minio.Client }

func (a sdkAdapter) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return a.c.BucketExists(ctx, bucket)
}

func (a sdkAdapter) MakeBucket(ctx context.Context, bucket string) error {
	return a.c.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

func (a sdkAdapter) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := a.c.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces NoSuchKey before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

func (a sdkAdapter) StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	info, err := a.c.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: info.Key, ETag: info.ETag, Size: info.Size, LastModified: info.LastModified}, nil
}

func (a sdkAdapter) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error) {
	info, err := a.c.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: info.Key, ETag: info.ETag, Size: info.Size, LastModified: info.LastModified}, nil
}
