// Package storage stores card artwork.
//
// Two providers implement Storage: LocalStorage writes to a directory served
// by the app itself, R2Storage writes to a Cloudflare R2 bucket through the
// S3 API. Keys are slash separated paths such as "cards/07.jpg".
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Storage is the object store used for card artwork.
type Storage interface {
	// Put stores data at key, replacing any existing object.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get opens the object at key. The caller must close the reader.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns an address clients can load the object from. Providers
	// without public access return a URL valid for expires.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	ContentType string
	MaxSize     int64 // zero means no limit
	Public      bool  // R2 only: store with a public-read ACL
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	BasePath string // e.g. "./storage"
	BaseURL  string // e.g. "http://localhost:8080/files"
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string // custom domain; presigned URLs are used when empty
	Region          string // defaults to "auto"
}

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// New builds the provider named by provider.
func New(provider string, local LocalConfig, r2 R2Config, logger *slog.Logger) (Storage, error) {
	switch provider {
	case ProviderLocal, "":
		return NewLocalStorage(local, logger)
	case ProviderR2:
		return NewR2Storage(r2, logger)
	}
	return nil, fmt.Errorf("unknown storage provider %q", provider)
}

// validateKey rejects empty keys, absolute paths and parent references.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
