package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Redis key pattern:
// {prefix}:room:{room}:{record}   STRING<json>

type redisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed state store.
func NewRedisStore(cfg RedisConfig) (StateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return newRedisStore(client, cfg.KeyPrefix), nil
}

func newRedisStore(client *redis.Client, prefix string) StateStore {
	if prefix == "" {
		prefix = "chat"
	}
	return &kvStore{kv: &redisKV{client: client, prefix: prefix}}
}

func (r *redisKV) key(room string, rec Record) string {
	return fmt.Sprintf("%s:room:%s:%s", r.prefix, room, rec)
}

func (r *redisKV) get(ctx context.Context, room string, rec Record) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.key(room, rec)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *redisKV) put(ctx context.Context, room string, rec Record, data []byte) error {
	return r.client.Set(ctx, r.key(room, rec), data, 0).Err()
}

func (r *redisKV) close() error {
	return r.client.Close()
}
