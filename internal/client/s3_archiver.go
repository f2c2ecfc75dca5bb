package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appConfig "daylight-matching-api/internal/config"
)

// AttemptArchiver stores a snapshot of a committed matching attempt outside the database
type AttemptArchiver interface {
	ArchiveAttempt(ctx context.Context, eventID uuid.UUID, attemptNumber int, payload interface{}) (string, error)
}

// objectPutter is the subset of *s3.Client the archiver needs
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes attempt snapshots as JSON objects
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Archiver creates a new S3 archiver
func NewS3Archiver(cfg *appConfig.S3Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}

	// MinIO requires explicit credentials; AWS uses the default chain (IAM role, ~/.aws)
	if cfg.Endpoint != "" {
		if cfg.AccessKey == "" || cfg.SecretKey == "" {
			return nil, fmt.Errorf("access key and secret key are required for a custom S3 endpoint")
		}
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Archiver(s3Client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Archiver(client objectPutter, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// AttemptKey returns the object key for an attempt
// Format: {prefix}/{eventId}/attempt-{n}.json
func (a *S3Archiver) AttemptKey(eventID uuid.UUID, attemptNumber int) string {
	key := fmt.Sprintf("%s/attempt-%04d.json", eventID, attemptNumber)
	if a.prefix == "" {
		return key
	}
	return a.prefix + "/" + key
}

// ArchiveAttempt uploads payload as JSON and returns its key
func (a *S3Archiver) ArchiveAttempt(ctx context.Context, eventID uuid.UUID, attemptNumber int, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal attempt: %w", err)
	}

	key := a.AttemptKey(eventID, attemptNumber)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload attempt to S3: %w", err)
	}
	return key, nil
}

// NoOpArchiver is used when no bucket is configured
type NoOpArchiver struct{}

func (NoOpArchiver) ArchiveAttempt(ctx context.Context, eventID uuid.UUID, attemptNumber int, payload interface{}) (string, error) {
	return "", nil
}
