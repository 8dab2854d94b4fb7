package inventory

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "inventory:document"

type RedisBackend struct {
	client *redis.Client
	key    string
}

func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisBackend{client: client, key: key}
}

func (b *RedisBackend) Read(ctx context.Context) ([]byte, error) {
	doc, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Write replaces the key with a single SET, which redis applies atomically.
func (b *RedisBackend) Write(ctx context.Context, doc []byte) error {
	return b.client.Set(ctx, b.key, doc, 0).Err()
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return b.client.Ping(ctx).Err()
	})
}

func (b *RedisBackend) Close() error { return b.client.Close() }
