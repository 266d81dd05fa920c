// Package storage provides the blob-storage boundary: uploads land here,
// generated spreadsheets are written here, and both directions are exposed to
// browsers only through signed, expiring links.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("storage: object not found")
	// ErrInvalidKey is returned for keys that escape the storage root.
	ErrInvalidKey = errors.New("storage: invalid key")
	// ErrBadSignature is returned when a signed link fails verification.
	ErrBadSignature = errors.New("storage: bad or expired signature")
)

// Storage is the object-store contract used by the processing pipeline and
// the HTTP layer.
type Storage interface {
	// Put stores the reader's content under key, creating parents as needed.
	Put(ctx context.Context, key string, r io.Reader) error

	// Get opens the object at key for reading.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object at key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// PresignPut returns an expiring URL a client can upload the key to.
	PresignPut(key string, ttl time.Duration) (string, error)

	// PresignGet returns an expiring URL a client can download the key from.
	PresignGet(key string, ttl time.Duration) (string, error)

	// Verify checks a signed request produced by PresignPut/PresignGet.
	Verify(method, key, expires, signature string) error

	// Prune deletes objects under prefix older than the retention window and
	// reports how many were removed.
	Prune(ctx context.Context, prefix string, olderThan time.Duration) (int, error)
}

// Config holds storage configuration.
type Config struct {
	LocalPath     string
	BaseURL       string
	SigningSecret string
}

// New creates the storage backend. Only the local filesystem backend exists;
// the interface keeps the door open for an object-store implementation.
func New(cfg *Config) (Storage, error) {
	return NewLocal(cfg.LocalPath, cfg.BaseURL, cfg.SigningSecret)
}
