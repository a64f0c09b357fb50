// Package storage uploads finished audit reports to S3-compatible object
// storage. Cloudflare R2 is the production target; any S3 endpoint works.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config holds R2/S3 connection settings.
type Config struct {
	// AccountID builds the R2 endpoint when Endpoint is empty.
	AccountID       string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// PublicURL is the custom-domain prefix reports are served from.
	PublicURL string
}

// ReportStore writes audit reports to a bucket.
type ReportStore struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewReportStore creates a ReportStore against the configured endpoint.
func NewReportStore(cfg Config) (*ReportStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.AccountID == "" {
			return nil, fmt.Errorf("storage: endpoint or account ID is required")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	client := s3.NewFromConfig(aws.Config{
		Region: "auto",
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	slog.Info("initialized report storage", "bucket", cfg.Bucket, "endpoint", endpoint)

	return &ReportStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
	}, nil
}

// ReportKey is the object key for one audit's report.
func ReportKey(subject, auditID string) string {
	return fmt.Sprintf("reports/%s/%s.json", subject, auditID)
}

// UploadReport stores the report payload and returns its public URL.
func (s *ReportStore) UploadReport(ctx context.Context, subject, auditID string, payload []byte) (string, error) {
	key := ReportKey(subject, auditID)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading report %s: %w", key, err)
	}

	slog.Debug("report uploaded", "key", key, "bytes", len(payload))

	if s.publicURL == "" {
		return key, nil
	}
	return s.publicURL + "/" + key, nil
}

// GetReport fetches a previously stored report.
func (s *ReportStore) GetReport(ctx context.Context, subject, auditID string) ([]byte, error) {
	key := ReportKey(subject, auditID)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching report %s: %w", key, err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", key, err)
	}
	return payload, nil
}
