// Package storage defines the blob store abstraction behind checkpoint files.
// Implementations live in the local, gcs and memory subpackages.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by GetObject when no object exists at path.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore persists and retrieves objects by slash-separated relative path.
type BlobStore interface {
	// PutObject writes the object at path, replacing any previous content, and
	// returns a URI naming it.
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
	// GetObject reads the object at path or returns ErrObjectNotFound.
	GetObject(ctx context.Context, path string) ([]byte, error)
}
