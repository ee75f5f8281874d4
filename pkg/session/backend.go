package session

import (
	"context"
	"time"
)

// Backend stores opaque session blobs by key.
// Implementations must be safe for concurrent use and return ErrNotFound
// from Get when the key is absent or expired.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, blob []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
