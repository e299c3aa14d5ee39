// Package storage talks to S3-compatible object stores. Business code asks
// the Factory for a profile and never deals with providers directly.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrUnsupported is returned when a provider lacks the requested capability.
	ErrUnsupported    = errors.New("storage: operation not supported by provider")
	ErrObjectNotFound = errors.New("storage: object not found")
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// PostPolicy is a browser form upload: POST the fields plus the file to URL.
type PostPolicy struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

// Client is one configured bucket on one provider.
type Client interface {
	Name() string
	Bucket() string
	Capabilities() Capabilities

	EnsureBucket(ctx context.Context) error
	PutObject(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) (*ObjectInfo, error)
	GetObject(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	DeleteObject(ctx context.Context, key string) error
	DeleteObjects(ctx context.Context, keys []string) error
	ObjectExists(ctx context.Context, key string) (bool, error)
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	CopyObject(ctx context.Context, srcKey, dstKey string) error
	MoveObject(ctx context.Context, srcKey, dstKey string) error

	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
	PresignPostPolicy(ctx context.Context, key, contentType string, maxSize int64, expires time.Duration) (*PostPolicy, error)

	BuildURL(key string) string
}
