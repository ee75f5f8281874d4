package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const (
	s3ExpiresMetaKey = "expires-at"
	maxBlobSize      = 1 << 20
)

// S3Client is the subset of the S3 API used by S3Backend.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config configures the S3 session backend.
type S3Config struct {
	Bucket          string `env:"S3_BUCKET"`
	Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	// Endpoint is set for S3-compatible services such as MinIO.
	Endpoint       string `env:"S3_ENDPOINT"`
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
	Prefix         string `env:"S3_SESSION_PREFIX" envDefault:"sessions/"`
}

// S3Option configures NewS3Backend.
type S3Option func(*s3Options)

type s3Options struct {
	client     S3Client
	httpClient *http.Client
	now        func() time.Time
}

// WithS3Client uses a pre-configured client, typically a mock in tests.
func WithS3Client(client S3Client) S3Option {
	return func(o *s3Options) { o.client = client }
}

// WithS3HTTPClient sets the HTTP client of the built S3 client.
func WithS3HTTPClient(c *http.Client) S3Option {
	return func(o *s3Options) { o.httpClient = c }
}

// S3Backend stores one object per session. Expiry is recorded in object
// metadata and enforced on read; pair it with a bucket lifecycle rule to
// reclaim space.
type S3Backend struct {
	client S3Client
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Backend builds an S3 client from cfg unless WithS3Client is given.
func NewS3Backend(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Backend, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidS3Config
	}
	o := &s3Options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		awsOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			awsOpts = append(awsOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			))
		}
		if o.httpClient != nil {
			awsOpts = append(awsOpts, config.WithHTTPClient(o.httpClient))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, awsOpts...)
		if err != nil {
			return nil, errors.Join(ErrInvalidS3Config, err)
		}
		client = s3.NewFromConfig(awsCfg, func(so *s3.Options) {
			if cfg.Endpoint != "" {
				so.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			so.UsePathStyle = cfg.ForcePathStyle
		})
	}

	return &S3Backend{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, now: o.now}, nil
}

// Get downloads the object for key. NoSuchKey and expired objects map
// to ErrNotFound.
func (b *S3Backend) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.prefix + key),
	})
	if err != nil {
		return nil, classifyS3Error(err)
	}
	defer func() { _ = out.Body.Close() }()

	if exp, ok := out.Metadata[s3ExpiresMetaKey]; ok {
		t, perr := time.Parse(time.RFC3339, exp)
		if perr == nil && b.now().After(t) {
			return nil, ErrNotFound
		}
	}

	blob, err := io.ReadAll(io.LimitReader(out.Body, maxBlobSize))
	if err != nil {
		return nil, errors.Join(ErrBackend, err)
	}
	return blob, nil
}

// Put uploads blob. The expiry is kept in object metadata and checked by
// Get; deleting expired objects is left to a bucket lifecycle rule.
func (b *S3Backend) Put(ctx context.Context, key string, blob []byte, ttl time.Duration) error {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.prefix + key),
		Body:        bytes.NewReader(blob),
		ContentType: aws.String("application/json"),
	}
	if ttl > 0 {
		in.Metadata = map[string]string{
			s3ExpiresMetaKey: b.now().Add(ttl).UTC().Format(time.RFC3339),
		}
	}
	if _, err := b.client.PutObject(ctx, in); err != nil {
		return classifyS3Error(err)
	}
	return nil
}

func (b *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.prefix + key),
	})
	if err != nil {
		if err = classifyS3Error(err); errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func classifyS3Error(err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return ErrNotFound
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrBackend, err)
}
