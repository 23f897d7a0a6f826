// Package attach stores photo and document attachments for service orders
// and vehicles. Blob bytes live in a pluggable backend; metadata lives in
// the attachments table.
package attach

import (
	"context"
	"io"
	"time"
)

// FileInfo is metadata about a stored blob.
type FileInfo struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string
	ModTime     time.Time
}

// Backend stores and retrieves blob content. Implementations must be safe
// for concurrent use.
type Backend interface {
	// Exists checks if a blob exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)

	// Reader returns the blob content along with its metadata. The caller
	// closes the reader. Returns ErrNotFound if the key does not exist.
	Reader(ctx context.Context, key string) (io.ReadCloser, *FileInfo, error)

	// Write stores content at the given key. If size is -1 the
	// implementation reads until EOF.
	Write(ctx context.Context, key string, content io.Reader, size int64, contentType string) (*FileInfo, error)

	// Delete removes a blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Error wraps a backend failure with its operation and key.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return e.Op + " " + e.Key + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type errNotFound struct{}

func (errNotFound) Error() string { return "blob not found" }

type errInvalidKey struct{}

func (errInvalidKey) Error() string { return "invalid key" }

// IsNotFound reports whether the error indicates a missing blob.
func IsNotFound(err error) bool {
	if e, ok := err.(*Error); ok {
		_, ok := e.Err.(errNotFound)
		return ok
	}
	return false
}
