package storage

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Config configures the S3-compatible backend.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"` // optional, for S3-compatible stores
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// S3Store publishes blobs to an S3 bucket (or any S3-compatible store).
type S3Store struct {
	config   S3Config
	uploader *s3manager.Uploader
	logger   *slog.Logger
}

// NewS3Store opens a session against the configured bucket.
func NewS3Store(config S3Config, logger *slog.Logger) (*S3Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}
	if config.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKeyID, config.SecretAccessKey, "")
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, err
	}
	return &S3Store{
		config:   config,
		uploader: s3manager.NewUploader(sess),
		logger:   logger,
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, data []byte, opts UploadOptions) (*UploadResult, error) {
	key, publicID := objectKey(opts)

	contentType := "application/octet-stream"
	switch opts.Format {
	case "png":
		contentType = "image/png"
	case "jpeg", "jpg":
		contentType = "image/jpeg"
	case "webp":
		contentType = "image/webp"
	}

	output, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, &UploadError{Backend: "s3", Key: key, Err: err}
	}

	url := output.Location
	if s.config.PublicBaseURL != "" {
		url = s.config.PublicBaseURL + "/" + key
	}

	s.logger.Debug("uploaded blob to S3", "bucket", s.config.Bucket, "key", key, "bytes", len(data))

	w, h := probeDimensions(data)
	return &UploadResult{
		URL:      url,
		PublicID: publicID,
		Bytes:    len(data),
		Width:    w,
		Height:   h,
	}, nil
}
