package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	civic_errors "civic-polls/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
)

type S3Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PublicBase string
	MaxBytes   int64
}

type Client struct {
	cfg S3Config
	s3  *s3.Client
}

func NewClient(ctx context.Context, cfg S3Config) (*Client, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	// A custom endpoint means MinIO or another S3-compatible store.
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{
		cfg: cfg,
		s3:  s3Client,
	}, nil
}

// Upload stores body under key with public-read ACL and returns its public URL.
func (c *Client) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if c == nil {
		return "", errors.New("s3 client not initialized")
	}
	if key == "" {
		return "", errors.New("object key is required")
	}
	if err := ValidateUpload(contentType, size, c.cfg.MaxBytes); err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return c.PublicURL(key), nil
}

// PublicURL derives the URL clients read key from.
func (c *Client) PublicURL(key string) string {
	if c == nil || key == "" {
		return ""
	}
	return publicURL(c.cfg, key)
}

func publicURL(cfg S3Config, key string) string {
	switch {
	case cfg.PublicBase != "":
		return cfg.PublicBase + "/" + key
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket + "/" + key
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", cfg.Bucket, cfg.Region, key)
	}
}

// ValidateContentType accepts images and PDFs only.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return civic_errors.ErrUnsupportedMedia
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return civic_errors.ErrUnsupportedMedia
	}
	if strings.HasPrefix(mediaType, "image/") || mediaType == "application/pdf" {
		return nil
	}
	return civic_errors.ErrUnsupportedMedia
}

// SniffContentType detects the media type from the leading bytes of r and
// rewinds it, so callers do not have to trust the declared type.
func SniffContentType(r io.ReadSeeker) (string, error) {
	detected, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}
	return detected.String(), nil
}

func ValidateUpload(contentType string, size, maxBytes int64) error {
	if err := ValidateContentType(contentType); err != nil {
		return err
	}
	if maxBytes > 0 && size > maxBytes {
		return civic_errors.ErrTooLarge
	}
	return nil
}
