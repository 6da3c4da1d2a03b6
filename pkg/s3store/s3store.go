// Package s3store stores complaint screenshots in an S3 bucket.
package s3store

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PutObjectAPI is the subset of the S3 client used by Store.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config names the destination bucket.
type Config struct {
	Bucket string
	Region string
	Prefix string
}

// Store uploads objects and returns their public URL.
type Store struct {
	client PutObjectAPI
	bucket string
	region string
	prefix string
	logger zerolog.Logger
}

// New loads AWS credentials from the default chain and constructs a Store.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket must be provided")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return NewWithClient(s3.NewFromConfig(awsCfg), cfg, logger), nil
}

// NewWithClient constructs a Store around an existing client.
func NewWithClient(client PutObjectAPI, cfg Config, logger zerolog.Logger) *Store {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "screenshots"
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: prefix,
		logger: logger.With().Str("component", "s3store").Logger(),
	}
}

// Upload writes the object under a unique key. The content type is taken from the file extension.
func (s *Store) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	key := path.Join(s.prefix, uuid.NewString()+"-"+name)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentTypeFor(name)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to s3: %w", err)
	}

	s.logger.Info().Str("key", key).Msg("screenshot uploaded to s3")
	return s.publicURL(key), nil
}

func (s *Store) publicURL(key string) string {
	if s.region == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
