// Package storage wraps the object store holding product images and avatars.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Object describes a stored object.
type Object struct {
	Bucket      string
	Key         string
	ContentType string
	Size        int64
}

// Store uploads, downloads and deletes objects by bucket and path.
type Store interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
	Download(ctx context.Context, bucket, key string) (io.ReadCloser, Object, error)
	Delete(ctx context.Context, bucket string, keys ...string) error
}

// Error records a failed storage operation.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("storage: %s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opError(op, bucket, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Bucket: bucket, Key: key, Err: err}
}
