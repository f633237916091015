package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/jmylchreest/erasure-api/internal/config"
)

// ErrStorageDisabled is returned by reads when no bucket is configured.
var ErrStorageDisabled = errors.New("storage is not enabled")

// StorageService archives evidence exports to S3-compatible object storage.
type StorageService struct {
	client  *s3.Client
	bucket  string
	enabled bool
	logger  *slog.Logger
}

// NewStorageService creates a new storage service.
func NewStorageService(cfg *appconfig.Config, logger *slog.Logger) (*StorageService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage")

	if !cfg.StorageEnabled {
		logger.Info("storage service disabled - no bucket configured")
		return &StorageService{
			enabled: false,
			logger:  logger,
		}, nil
	}

	// Load AWS config with static credentials
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.StorageRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.StorageEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
			o.UsePathStyle = true // MinIO and most S3-compatible services
		}
	})

	logger.Info("storage service initialized",
		"bucket", cfg.StorageBucket,
		"endpoint", cfg.StorageEndpoint,
	)

	return &StorageService{
		client:  client,
		bucket:  cfg.StorageBucket,
		enabled: true,
		logger:  logger,
	}, nil
}

// IsEnabled returns whether storage is configured and available.
func (s *StorageService) IsEnabled() bool {
	return s != nil && s.enabled
}

// ExportKey is the object key of an evidence export.
func ExportKey(orgID, requestID string, at time.Time) string {
	return fmt.Sprintf("exports/%s/%s/%s.json", orgID, requestID, at.UTC().Format("20060102T150405Z"))
}

// StoreExport writes an export bundle and returns its key. Returns "" without
// error when storage is disabled.
func (s *StorageService) StoreExport(ctx context.Context, orgID, requestID string, at time.Time, data []byte) (string, error) {
	if !s.IsEnabled() {
		return "", nil
	}

	key := ExportKey(orgID, requestID, at)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store export: %w", err)
	}

	s.logger.Info("stored evidence export",
		"org_id", orgID,
		"request_id", requestID,
		"key", key,
		"size_bytes", len(data),
	)
	return key, nil
}

// ExportPresignedURL returns a presigned download URL for an archived export.
// A zero expiry means one hour.
func (s *StorageService) ExportPresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if !s.IsEnabled() {
		return "", ErrStorageDisabled
	}
	if expiry == 0 {
		expiry = time.Hour
	}

	presignClient := s3.NewPresignClient(s.client)
	presignedReq, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return presignedReq.URL, nil
}
