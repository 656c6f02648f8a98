package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Read when no object exists under the key.
var ErrNotFound = errors.New("storage: object not found")

// Storage is a small key/blob store. Keys are slash separated paths.
type Storage interface {
	// Write stores content from the reader under key, replacing any
	// previous content. size is the expected length or -1 if unknown.
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read returns the content stored under key. The caller closes it.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key holds content.
	Exists(ctx context.Context, key string) (bool, error)
}

// Config selects a Storage implementation.
type Config struct {
	Driver string      `mapstructure:"driver"` // local, s3
	Local  LocalConfig `mapstructure:"local"`
	S3     S3Config    `mapstructure:"s3"`
}

// New builds the Storage named by cfg.Driver.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	case "local", "":
		return NewLocalStorage(cfg.Local)
	default:
		return nil, errors.New("storage: unsupported driver " + cfg.Driver)
	}
}
