// Package blobstore stores file contents in an S3-compatible object store.
// The rest of the system treats it as a byte-in/byte-out collaborator keyed
// by opaque storage keys.
package blobstore

import (
	"context"
	"io"
	"time"
)

// Store is the blob storage collaborator used by the file service.
type Store interface {
	// Put uploads size bytes from body under key.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error

	// Get opens the blob stored under key for reading.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob stored under key. Deleting a missing blob
	// is not an error.
	Delete(ctx context.Context, key string) error

	// PresignGet returns a temporary URL from which the blob can be
	// fetched directly, valid for expires.
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}
