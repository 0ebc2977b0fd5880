package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	appConfig "aether-service/internal/config"
	"aether-service/internal/dto"
)

// ObjectPutter is the subset of the S3 API the archiver needs
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes every saved workspace snapshot to an S3 (or MinIO) bucket
type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Archiver builds an archiver from configuration
func NewS3Archiver(ctx context.Context, cfg appConfig.S3Config, logger *zap.Logger) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		// MinIO needs explicit credentials
		if cfg.AccessKey == "" || cfg.SecretKey == "" {
			return nil, fmt.Errorf("access key and secret key are required for a custom endpoint")
		}
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3ArchiverWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3ArchiverWithClient wraps an existing S3 client
func NewS3ArchiverWithClient(client ObjectPutter, bucket, prefix string, logger *zap.Logger) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// ObjectKey returns the key a snapshot is stored under
func (a *S3Archiver) ObjectKey(ws *dto.WorkspaceResponse) string {
	return path.Join(a.prefix, "workspaces", ws.ID, fmt.Sprintf("%d.json", ws.UpdatedAt.UnixNano()))
}

// Archive uploads the snapshot as JSON
func (a *S3Archiver) Archive(ctx context.Context, ws *dto.WorkspaceResponse) error {
	body, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := a.ObjectKey(ws)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot %s: %w", key, err)
	}

	a.logger.Debug("Snapshot archived",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
	)
	return nil
}
