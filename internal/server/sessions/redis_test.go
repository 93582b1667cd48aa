package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/authgate/internal/common"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client), mr
}

func TestRedisStore_SetGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "tok-1", "42", time.Hour))

	value, err := store.Get(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "42", value)

	// entries live under the refresh: namespace with the token TTL
	assert.True(t, mr.Exists("refresh:tok-1"))
	assert.Equal(t, time.Hour, mr.TTL("refresh:tok-1"))
}

func TestRedisStore_GetAbsent(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "never-issued")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "tok-1", "42", time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "tok-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRedisStore_DeleteReportsRemoval(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "tok-1", "42", time.Hour))

	removed, err := store.Delete(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, removed)

	// second delete is idempotent and reports no removal
	removed, err = store.Delete(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = store.Get(ctx, "tok-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	err := store.Set(context.Background(), "tok-1", "42", time.Hour)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrNotFound)
}
