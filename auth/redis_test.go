package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cameronmore/go-members/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisSessionStore(rdb), mr
}

func TestRedisSessionStore_SaveLoadDelete(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()
	store.now = func() time.Time { return now }

	s := sessions.Session{Id: "sid", UserId: "u", Username: "A", Authenticated: true, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.SaveSession(ctx, s))
	assert.True(t, mr.Exists(redisSessionPrefix+"sid"))
	assert.Equal(t, time.Hour, mr.TTL(redisSessionPrefix+"sid"))

	got, err := store.LoadSessionById(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, s.Id, got.Id)
	assert.Equal(t, "u", got.UserId)
	assert.True(t, got.Authenticated)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, store.DeleteSessionById(ctx, "sid"))
	require.NoError(t, store.DeleteSessionById(ctx, "sid"))
	_, err = store.LoadSessionById(ctx, "sid")
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
}

func TestRedisSessionStore_ExpiresWithSession(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	s := sessions.Session{Id: "sid", Authenticated: true, ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, store.SaveSession(ctx, s))

	mr.FastForward(2 * time.Minute)
	_, err := store.LoadSessionById(ctx, "sid")
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
}

func TestRedisSessionStore_SavingExpiredSessionRemovesIt(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	s := sessions.Session{Id: "sid", Authenticated: true, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.SaveSession(ctx, s))

	s.ExpiresAt = time.Now().Add(-time.Second)
	require.NoError(t, store.SaveSession(ctx, s))
	assert.False(t, mr.Exists(redisSessionPrefix+"sid"))
}

func TestRedisSessionStore_CorruptRecord(t *testing.T) {
	store, mr := newTestRedisStore(t)
	require.NoError(t, mr.Set(redisSessionPrefix+"sid", "{not json"))

	_, err := store.LoadSessionById(context.Background(), "sid")
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
}

func TestRedisSessionStore_ServerDown(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()
	ctx := context.Background()

	_, err := store.LoadSessionById(ctx, "sid")
	assert.ErrorIs(t, err, sessions.ErrStoreUnavailable)

	err = store.SaveSession(ctx, sessions.Session{Id: "sid", ExpiresAt: time.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, sessions.ErrStoreUnavailable)

	manager := sessions.NewManager(store, "0123456789abcdef", time.Hour)
	assert.False(t, manager.IsAuthenticated(ctx, "sid"))
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	rdb, err := OpenRedis(ctx, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, rdb.Close())

	_, err = OpenRedis(ctx, "not a url")
	assert.Error(t, err)
}
