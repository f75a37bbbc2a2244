package storage

import (
	"context"
	"io"
)

// Storage defines the interface for object store operations. Production
// wires the S3 implementation; tests use the in-memory one.
type Storage interface {
	// Upload stores an object and returns the result with key and URL.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Download streams an object back by its key. The caller closes the
	// reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object by its key.
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL for the given key.
	GetURL(ctx context.Context, key string) (string, error)
}

// UploadInput holds the parameters for uploading an object.
type UploadInput struct {
	Key         string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key string
	URL string
}
