// Package gcs provides a Backend on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	appstorage "github.com/JakeFAU/ats-job-scout/internal/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// Prefix is prepended to every object name.
	Prefix string
}

// BlobStore reads and writes artifacts in a GCS bucket. Object uploads are
// atomic on close, so no temp object is needed. There is no Locker: runs
// sharing a bucket must be serialized by the scheduler.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ appstorage.Backend = (*BlobStore)(nil)

// New creates a GCS-backed store around an existing client.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Open creates a client from Application Default Credentials and checks the
// bucket is reachable so misconfiguration fails at startup.
func Open(ctx context.Context, cfg Config) (*BlobStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		closeErr := client.Close()
		return nil, errors.Join(fmt.Errorf("failed to get GCS bucket %q attributes: %w", cfg.Bucket, err), closeErr)
	}
	return New(client, cfg)
}

// Close releases the client.
func (s *BlobStore) Close() error {
	return s.client.Close()
}

// Read downloads the object or returns storage.ErrNotExist.
func (s *BlobStore) Read(ctx context.Context, name string) ([]byte, error) {
	object, err := s.object(name)
	if err != nil {
		return nil, err
	}
	reader, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", s.URI(name), appstorage.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", object, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", object, err)
	}
	return data, nil
}

// Write uploads data, replacing any previous version.
func (s *BlobStore) Write(ctx context.Context, name string, data []byte) error {
	object, err := s.object(name)
	if err != nil {
		return err
	}
	writer := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = contentType(name)
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object %s: %w (close writer: %v)", object, err, closeErr)
		}
		return fmt.Errorf("write object %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", object, err)
	}
	return nil
}

// URI returns a gs:// URI for name.
func (s *BlobStore) URI(name string) string {
	object, _ := s.object(name)
	return fmt.Sprintf("gs://%s/%s", s.bucket, object)
}

func (s *BlobStore) object(name string) (string, error) {
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if name == "" {
		return "", fmt.Errorf("path is required")
	}
	if s.prefix == "" {
		return name, nil
	}
	return path.Join(s.prefix, name), nil
}

func contentType(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".csv") {
		return "text/csv; charset=utf-8"
	}
	return "application/octet-stream"
}
