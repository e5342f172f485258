// Package objstore provides a client for S3-compatible object storage
// (Cloudflare R2, MinIO, or AWS S3 itself). It is used to fetch the FAQ
// knowledge workbook sheets, with transparent zstd decompression for
// objects stored under a ".zst" key.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/klauspost/compress/zstd"

	apperrors "github.com/peejay10/line-llama-chatbot/internal/errors"
)

// Config holds object storage client configuration.
type Config struct {
	Endpoint    string // e.g. https://account-id.r2.cloudflarestorage.com
	AccessKeyID string
	SecretKey   string
	BucketName  string
}

// Client provides object storage operations against a single bucket.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New creates a new object storage client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Endpoint == "" || cfg.AccessKeyID == "" || cfg.SecretKey == "" || cfg.BucketName == "" {
		return nil, errors.New("objstore: all config fields are required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("objstore: load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true // Required for R2 and MinIO
	})

	return &Client{
		s3:     s3Client,
		bucket: cfg.BucketName,
	}, nil
}

// Download fetches an object and returns its full body. Keys ending in
// ".zst" are decompressed before being returned. Returns
// errors.ErrNotFound when the object does not exist.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	result, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("objstore: download %q: %w", key, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("objstore: download %q: %w", key, err)
	}
	defer result.Body.Close()

	var reader io.Reader = result.Body
	if strings.HasSuffix(key, ".zst") {
		decoder, err := zstd.NewReader(result.Body)
		if err != nil {
			return nil, fmt.Errorf("objstore: zstd reader for %q: %w", key, err)
		}
		defer decoder.Close()
		reader = decoder
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("objstore: read %q: %w", key, err)
	}
	return data, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}
	return false
}
