// Package s3store implements the object storage gateway on Amazon S3 or any
// S3-compatible store (MinIO, localstack) reachable through a custom endpoint.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"projecthub/internal/config"
	"projecthub/internal/domain"
	"projecthub/internal/domain/services"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Gateway is a thin pass-through to a single bucket. The underlying clients
// are safe for concurrent use and shared by all requests.
type Gateway struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	logger  *slog.Logger
}

var _ services.ObjectStorage = (*Gateway)(nil)

// NewGateway builds the S3 client from cfg. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func NewGateway(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Gateway, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket cannot be empty")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	logger.Info("object storage initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
	)

	return &Gateway{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		logger:  logger,
	}, nil
}

// Exists reports whether key is present in the bucket.
func (g *Gateway) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head object %s: %w: %v", key, domain.ErrStorage, err)
}

// Upload writes body under key. createOnly sends If-None-Match: * so the
// store rejects the write when another upload won the race for the key.
func (g *Gateway) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, createOnly bool) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if createOnly {
		input.IfNoneMatch = aws.String("*")
	}

	if _, err := g.client.PutObject(ctx, input); err != nil {
		if createOnly && isPreconditionFailed(err) {
			return &domain.ConflictError{
				Message:      "object already exists",
				ResourceType: "document",
			}
		}
		return fmt.Errorf("put object %s: %w: %v", key, domain.ErrStorage, err)
	}

	g.logger.Debug("object uploaded", "key", key, "size", size)
	return nil
}

// PresignedDownloadURL returns a GET URL for key valid for ttl. Anyone holding
// the URL can download the object until it expires.
func (g *Gateway) PresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := g.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w: %v", key, domain.ErrStorage, err)
	}
	return req.URL, nil
}

// Delete removes key from the bucket. S3 treats deleting a missing key as success.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w: %v", key, domain.ErrStorage, err)
	}

	g.logger.Debug("object deleted", "key", key)
	return nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return statusCode(err) == http.StatusNotFound
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
		return true
	}
	return statusCode(err) == http.StatusPreconditionFailed
}

// statusCode extracts the HTTP status from an SDK response error, or 0.
func statusCode(err error) int {
	var httpErr interface{ HTTPStatusCode() int }
	if errors.As(err, &httpErr) {
		return httpErr.HTTPStatusCode()
	}
	return 0
}
