// Package gcs moves statement files in and out of Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// uploadTimeout bounds a single statement upload.
const uploadTimeout = 2 * time.Minute

// StorageService abstracts cloud storage so handlers and jobs can be
// tested without a bucket.
type StorageService interface {
	// Upload stores the statement bytes under objectName and returns the
	// resulting gs:// URI.
	Upload(ctx context.Context, bucketName, objectName string, r io.Reader) (string, error)

	// Fetch downloads the file bytes at the given gs:// URI.
	Fetch(ctx context.Context, gcsURI string) ([]byte, error)
}

// Client is the StorageService backed by a real GCS client. It assumes
// Application Default Credentials are configured.
type Client struct {
	client *storage.Client
}

// NewClient creates a Client.
func NewClient(ctx context.Context) (*Client, error) {
	c, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewClient: create storage client: %w", err)
	}
	return &Client{client: c}, nil
}

// Close closes the underlying storage client.
func (c *Client) Close() error { return c.client.Close() }

// Upload writes r to gs://bucketName/objectName.
func (c *Client) Upload(ctx context.Context, bucketName, objectName string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := c.client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("Upload: copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize upload: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}

// Fetch downloads the file bytes from the given GCS URI.
func (c *Client) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := c.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Filename extracts the filename from a GCS URI,
// e.g. "gs://bucket/imports/extracto.csv" -> "extracto.csv".
func Filename(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

var _ StorageService = (*Client)(nil)
