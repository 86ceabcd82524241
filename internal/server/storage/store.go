// Package storage is the Document Store for uploaded license images.
package storage

import (
	"context"
	"io"
	"time"
)

// Object is a stored file opened for reading. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Store keeps license files under generated names.
type Store interface {
	// Put writes data under name and returns the location to persist.
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	// Get opens the object. A missing object yields common.ErrorNotFound.
	Get(ctx context.Context, name string) (*Object, error)
	Delete(ctx context.Context, name string) error
	// PresignGet returns a temporary download URL.
	PresignGet(ctx context.Context, name string, ttl time.Duration) (string, error)
	Bucket() string
}
