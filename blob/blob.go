// Package blob abstracts the content-addressed store large payloads are
// offloaded to. Keys are derived from the MD5 of the content by the caller;
// backends only move bytes.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("blob: object not found")

// Store moves opaque payloads in and out of a bucketed object store.
type Store interface {
	// Put writes data under bucket/key, overwriting any existing object.
	Put(ctx context.Context, bucket, key string, data []byte) error
	// Get reads the object at bucket/key. Missing objects yield ErrNotFound.
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}
