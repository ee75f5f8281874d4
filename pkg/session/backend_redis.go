package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores blobs as plain keys with a TTL.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBackend stores blobs under prefix+key.
func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	blob, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrBackend, err)
	}
	return blob, nil
}

// Put stores blob with SET EX. A non-positive ttl never expires.
func (b *RedisBackend) Put(ctx context.Context, key string, blob []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := b.client.Set(ctx, b.prefix+key, blob, ttl).Err(); err != nil {
		return errors.Join(ErrBackend, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.prefix+key).Err(); err != nil {
		return errors.Join(ErrBackend, err)
	}
	return nil
}
