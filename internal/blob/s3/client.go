// Package s3blob archives league tables to S3-compatible object storage
// (AWS S3, MinIO, Cloudflare R2, iDrive e2).
package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// minPartSize is the smallest part S3 accepts in a multipart upload (5 MiB).
const minPartSize int64 = 5 * 1024 * 1024

// DefaultPrefix is the key prefix of archive runs when none is configured.
const DefaultPrefix = "archive"

// ClientConfig holds the bucket connection and the archive key layout.
type ClientConfig struct {
	// Endpoint is the provider URL, e.g. "https://e2.idy.idrivee2.com".
	// Leave empty for AWS S3.
	Endpoint string
	Region   string
	Bucket   string

	AccessKey string
	SecretKey string

	// UseSSL picks the scheme when Endpoint has none.
	UseSSL bool
	// ForcePathStyle puts the bucket in the path. MinIO and e2 need it.
	ForcePathStyle bool

	// Prefix namespaces every archive key. Defaults to DefaultPrefix.
	Prefix string
	// MultipartThreshold is the payload size above which an archive file
	// goes through the multipart uploader. Values below 5 MiB are raised.
	MultipartThreshold int64
}

// Client writes archive files into one bucket. It implements
// domain.BlobWriter.
type Client struct {
	api       *s3.Client
	uploader  *manager.Uploader
	bucket    string
	prefix    string
	threshold int64
}

// New builds a client with static credentials. The bucket is not contacted
// until Health or Upload is called.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	threshold := cfg.MultipartThreshold
	if threshold < minPartSize {
		threshold = minPartSize
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Client{
		api: api,
		uploader: manager.NewUploader(api, func(u *manager.Uploader) {
			u.PartSize = minPartSize
		}),
		bucket:    cfg.Bucket,
		prefix:    prefix,
		threshold: threshold,
	}, nil
}

// Health checks that the bucket exists and the credentials can reach it.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3blob: health check failed for bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Close is a no-op; the SDK's HTTP client needs no teardown.
func (c *Client) Close() error {
	return nil
}

// Upload stores body under the prefixed key and returns that full key.
// Bodies larger than the multipart threshold are split into parts.
func (c *Client) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	full := c.objectKey(key)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(full),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	}

	if c.multipart(len(body)) {
		if _, err := c.uploader.Upload(ctx, input); err != nil {
			return "", fmt.Errorf("s3blob: multipart upload %s: %w", full, err)
		}
		return full, nil
	}
	if _, err := c.api.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("s3blob: put object %s: %w", full, err)
	}
	return full, nil
}

func (c *Client) objectKey(key string) string {
	return path.Join(c.prefix, key)
}

func (c *Client) multipart(size int) bool {
	return int64(size) > c.threshold
}

// normaliseEndpoint prepends a scheme when the endpoint has none.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}

var _ domain.BlobWriter = (*Client)(nil)
