package persist

import (
	"context"
	"fmt"

	"github.com/filmnt/chat/pkg/database"
	"github.com/filmnt/chat/pkg/storage"
)

// Config selects and configures the state store driver.
type Config struct {
	Driver   string // memory, redis, gorm, blob
	Redis    RedisConfig
	Database database.Config
	Blob     storage.Config
}

// New builds the StateStore named by cfg.Driver.
func New(ctx context.Context, cfg Config) (StateStore, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.Redis)
	case "gorm":
		return NewGormStore(&cfg.Database)
	case "blob":
		blobs, err := storage.New(ctx, cfg.Blob)
		if err != nil {
			return nil, fmt.Errorf("failed to create blob storage: %w", err)
		}
		return NewBlobStore(blobs), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
