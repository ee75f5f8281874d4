package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/consolekit/pkg/session"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisBackend(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	b := session.NewRedisBackend(client, "session:")

	t.Run("put get delete", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "abc", []byte(`{"loginState":{}}`), time.Hour))
		assert.True(t, mr.Exists("session:abc"))
		assert.Equal(t, time.Hour, mr.TTL("session:abc"))

		got, err := b.Get(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, `{"loginState":{}}`, string(got))

		require.NoError(t, b.Delete(ctx, "abc"))
		_, err = b.Get(ctx, "abc")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("expired key is not found", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "ttl", []byte("x"), time.Minute))
		mr.FastForward(2 * time.Minute)
		_, err := b.Get(ctx, "ttl")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("store round trip", func(t *testing.T) {
		store := session.NewStore(b, time.Hour, nil)
		id := newID(t)
		rec := session.Record{Preferences: map[string]string{"tz": "UTC"}}
		require.NoError(t, store.Write(ctx, id, rec))
		assert.Equal(t, rec, store.Read(ctx, id))
	})

	t.Run("server down is a backend error", func(t *testing.T) {
		mr2, client2 := newTestRedis(t)
		b2 := session.NewRedisBackend(client2, "")
		mr2.Close()
		_, err := b2.Get(ctx, "k")
		assert.ErrorIs(t, err, session.ErrBackend)
	})
}
