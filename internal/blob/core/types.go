// Package core defines the blob storage contract shared by the backends and
// the factory that selects between them.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem stores blobs under a local directory.
	DriverFilesystem Driver = "fs"
	// DriverS3 stores blobs in an S3 / MinIO compatible bucket.
	DriverS3 Driver = "s3"
	// DriverMemory keeps blobs in process memory.
	DriverMemory Driver = "memory"
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is a create-only object store. Exports are written once and never overwritten.
type Store interface {
	// Put stores a new blob at key and fails with ErrExists if the key is taken.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get returns metadata and content; missing keys yield ErrNotExist.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	// Delete reports whether the blob existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns blobs whose key has the prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	// PresignURL returns a time-limited GET URL or ErrUnsupported.
	PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Driver() Driver
}

var (
	// ErrExists is returned by Put when the key is already stored.
	ErrExists = errors.New("blob: key already exists")
	// ErrNotExist is returned when a key is not stored.
	ErrNotExist = errors.New("blob: key does not exist")
	// ErrUnsupported is returned when an optional capability is not available.
	ErrUnsupported = errors.New("blob: unsupported operation")
	// ErrInvalidKey is returned for empty, absolute or escaping keys.
	ErrInvalidKey = errors.New("blob: invalid key")
)

// CloneMetadata copies a metadata map so stores never share caller maps.
func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
