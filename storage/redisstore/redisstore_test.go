package redisstore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-client/storage"
	"github.com/jrsteele09/go-session-client/storage/redisstore"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	s := redisstore.New(client)

	_, err := s.Get(ctx, "elemo_at")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "elemo_at", "cipher"))
	require.NoError(t, s.Set(ctx, "elemo_user", "profile"))

	v, err := s.Get(ctx, "elemo_at")
	require.NoError(t, err)
	require.Equal(t, "cipher", v)
	require.True(t, mr.Exists(redisstore.DefaultPrefix+"elemo_at"))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"elemo_at", "elemo_user"}, keys)

	require.NoError(t, s.Delete(ctx, "elemo_at"))
	require.NoError(t, s.Delete(ctx, "elemo_at"))
	_, err = s.Get(ctx, "elemo_at")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRedisStore_PrefixIsolation(t *testing.T) {
	ctx := context.Background()
	_, client := newClient(t)

	a := redisstore.New(client, redisstore.WithPrefix("a:"))
	b := redisstore.New(client, redisstore.WithPrefix("b:"))

	require.NoError(t, a.Set(ctx, "k", "from-a"))

	_, err := b.Get(ctx, "k")
	require.ErrorIs(t, err, storage.ErrNotFound)

	keys, err := b.Keys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestRedisStore_ServerDown(t *testing.T) {
	mr, client := newClient(t)
	s := redisstore.New(client)
	mr.Close()

	_, err := s.Get(context.Background(), "k")
	require.Error(t, err)
	require.NotErrorIs(t, err, storage.ErrNotFound)
}
