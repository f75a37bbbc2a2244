package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/utafrali/RelistGo/internal/storage"
)

// Config holds the bucket and endpoint settings for the object store.
type Config struct {
	Bucket string
	Region string

	// Endpoint, when non-empty, points the client at an S3-compatible
	// store (MinIO) and switches to path-style addressing.
	Endpoint string

	// Static credentials. When AccessKey is empty the default AWS
	// credential chain applies.
	AccessKey string
	SecretKey string

	// PublicBaseURL, when set, is used to build object URLs instead of
	// the AWS virtual-hosted form.
	PublicBaseURL string
}

// Storage implements storage.Storage backed by an S3 bucket.
type Storage struct {
	client   *awss3.Client
	uploader *manager.Uploader
	cfg      Config
}

// New creates an S3-backed storage.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Storage{
		client:   client,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
	}, nil
}

// Upload stores an object and returns its key and URL.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	out, err := s.uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(input.Key),
		Body:        input.Data,
		ContentType: aws.String(input.ContentType),
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", input.Key, err)
	}

	url := out.Location
	if url == "" {
		url = s.objectURL(input.Key)
	}

	return &storage.UploadResult{
		Key: input.Key,
		URL: url,
	}, nil
}

// Download streams an object back by its key.
func (s *Storage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	return out.Body, nil
}

// Delete removes an object by its key.
func (s *Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// GetURL returns the public URL for the given key.
func (s *Storage) GetURL(_ context.Context, key string) (string, error) {
	return s.objectURL(key), nil
}

// Ping verifies the bucket is reachable. Used as a readiness check.
func (s *Storage) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(s.cfg.Bucket),
	})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", s.cfg.Bucket, err)
	}
	return nil
}

func (s *Storage) objectURL(key string) string {
	key = strings.TrimPrefix(key, "/")
	switch {
	case s.cfg.PublicBaseURL != "":
		return strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + "/" + key
	case s.cfg.Endpoint != "":
		return strings.TrimSuffix(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + key
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
	}
}
