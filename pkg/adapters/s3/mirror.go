// Package s3 mirrors captured photos to an S3-compatible bucket (AWS S3 or MinIO).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/aretw0/casebook/pkg/asset"
	"github.com/aretw0/casebook/pkg/core"
)

// Config holds explicit construction parameters. The CLI builds it from the
// vault config file and the environment.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional; custom endpoint such as MinIO
	Prefix    string // optional key prefix, e.g. "photos/"
	PathStyle bool
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient aws.HTTPClient
	Logger     *slog.Logger
}

// Environment variables:
//   CASEBOOK_S3_BUCKET=<bucket> (required)
//   CASEBOOK_S3_REGION=<region> (default us-east-1)
//   CASEBOOK_S3_ENDPOINT=<url> (optional, for MinIO)
//   CASEBOOK_S3_PATH_STYLE=true|false (default false)
//   CASEBOOK_S3_PREFIX=<prefix> (optional)
//   AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)

// Mirror implements asset.Mirror on a single bucket.
type Mirror struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// New creates a Mirror from cfg, loading credentials from the default chain.
func New(ctx context.Context, cfg Config) (*Mirror, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
		// S3-compatible stores do not all accept streamed trailing checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Mirror{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}, nil
}

// ConfigFromEnv reads the CASEBOOK_S3_* variables. ok is false when no
// bucket is configured.
func ConfigFromEnv() (cfg Config, ok bool) {
	cfg = Config{
		Bucket:    os.Getenv("CASEBOOK_S3_BUCKET"),
		Region:    os.Getenv("CASEBOOK_S3_REGION"),
		Endpoint:  os.Getenv("CASEBOOK_S3_ENDPOINT"),
		Prefix:    os.Getenv("CASEBOOK_S3_PREFIX"),
		PathStyle: strings.EqualFold(os.Getenv("CASEBOOK_S3_PATH_STYLE"), "true"),
	}
	return cfg, cfg.Bucket != ""
}

// OpenFromEnv constructs a Mirror from process environment.
func OpenFromEnv(ctx context.Context) (*Mirror, error) {
	cfg, ok := ConfigFromEnv()
	if !ok {
		return nil, fmt.Errorf("CASEBOOK_S3_BUCKET required for s3 mirror")
	}
	return New(ctx, cfg)
}

// Key returns the object key of the photo of id.
func (m *Mirror) Key(id core.ID) string {
	return m.prefix + asset.FileName(id)
}

// Push uploads the photo of id, replacing any previous copy.
func (m *Mirror) Push(ctx context.Context, id core.ID, r io.Reader, size int64) error {
	key := m.Key(id)
	input := &s3.PutObjectInput{
		Bucket:      &m.bucket,
		Key:         &key,
		Body:        r,
		ContentType: aws.String("image/jpeg"),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := m.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	m.logger.Debug("photo mirrored", "id", id, "bucket", m.bucket, "key", key)
	return nil
}

// Fetch downloads the mirrored photo of id. The caller closes the reader.
func (m *Mirror) Fetch(ctx context.Context, id core.ID) (io.ReadCloser, error) {
	key := m.Key(id)
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &m.bucket, Key: &key})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("get %s: %w", key, core.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return out.Body, nil
}

// Remove deletes the mirrored photo of id. Missing objects are not an error.
func (m *Mirror) Remove(ctx context.Context, id core.ID) error {
	key := m.Key(id)
	if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &m.bucket, Key: &key}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	m.logger.Debug("mirrored photo removed", "id", id, "key", key)
	return nil
}

var _ asset.Mirror = (*Mirror)(nil)
