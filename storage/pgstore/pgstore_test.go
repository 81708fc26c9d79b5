package pgstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-client/storage"
	"github.com/jrsteele09/go-session-client/storage/pgstore"
)

func TestPGStore(t *testing.T) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	s, pool, err := pgstore.Connect(ctx, databaseURL, "test-"+uuid.NewString())
	require.NoError(t, err)
	defer pool.Close()

	_, err = s.Get(ctx, "elemo_at")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "elemo_at", "one"))
	require.NoError(t, s.Set(ctx, "elemo_at", "two"))
	require.NoError(t, s.Set(ctx, "elemo_user", "profile"))

	v, err := s.Get(ctx, "elemo_at")
	require.NoError(t, err)
	require.Equal(t, "two", v)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"elemo_at", "elemo_user"}, keys)

	require.NoError(t, s.Delete(ctx, "elemo_at"))
	require.NoError(t, s.Delete(ctx, "elemo_user"))

	keys, err = s.Keys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}
