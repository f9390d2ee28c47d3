package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the configuration for the S3 storage backend.
type S3Config struct {
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// LogStore archives finished build logs in S3-compatible object storage.
type LogStore struct {
	client *s3.Client
	bucket string
}

// NewLogStore creates a new S3 build log store.
func NewLogStore(cfg S3Config) (*LogStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		},
	}

	client := s3.New(s3.Options{}, opts...)

	return &LogStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// LogKey returns the S3 key for a build log.
func LogKey(buildID string) string {
	return fmt.Sprintf("build-logs/%s.log", buildID)
}

// Upload stores the full log of a finished build.
func (s *LogStore) Upload(ctx context.Context, buildID, logText string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(LogKey(buildID)),
		Body:        strings.NewReader(logText),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload build log %s: %w", buildID, err)
	}
	return nil
}

// Download retrieves an archived build log.
func (s *LogStore) Download(ctx context.Context, buildID string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(LogKey(buildID)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to download build log %s: %w", buildID, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read build log %s: %w", buildID, err)
	}
	return string(data), nil
}
