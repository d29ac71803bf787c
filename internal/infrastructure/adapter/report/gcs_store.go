// Package report persists investigation reports and fans out completion
// notifications.
package report

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"alarm-triage-agent/internal/domain/port"
)

// GCSStoreConfig configures the report bucket.
type GCSStoreConfig struct {
	// Bucket is the GCS bucket reports are written into.
	Bucket string
	// CredentialsFile optionally points at a service account key. When
	// empty the client uses application default credentials.
	CredentialsFile string
}

// GCSStore implements port.ArtifactStore on Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewGCSStore creates a store writing into the configured bucket.
// A nil logger falls back to a no-op logger.
func NewGCSStore(ctx context.Context, cfg GCSStoreConfig, logger *zap.Logger) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("report bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	return &GCSStore{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error { return s.client.Close() }

// Put writes one object and returns its gs:// location.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("writing object %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing object %s: %w", key, err)
	}

	location := fmt.Sprintf("gs://%s/%s", s.bucket, key)
	s.logger.Info("report stored",
		zap.String("location", location),
		zap.Int("bytes", len(data)),
	)
	return location, nil
}

var _ port.ArtifactStore = (*GCSStore)(nil)
