// Package blobstore stores file bytes by key. S3Store talks to any
// S3-compatible backend; MemoryStore keeps objects in process memory.
package blobstore

import (
	"context"
	"io"
	"time"
)

// Object is an open blob. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// ObjectInfo describes a stored blob without opening it.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is the blob store contract. Get reports common.ErrNotFound for a
// missing key; Delete of a missing key succeeds.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	// List returns the objects under prefix in key order.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Presigner is implemented by stores that can hand out time-limited direct
// download URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
