package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cameronmore/go-members/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T, path string) *SQLiteAuthStore {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store, err := NewSQLiteAuthStore(ctx, db)
	require.NoError(t, err)
	return store
}

func TestSQLiteAuthStore_Users(t *testing.T) {
	store := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "members.db"))
	ctx := context.Background()

	_, err := store.FindUserByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, sessions.ErrUserNotFound)

	u, err := store.InsertUser(ctx, sessions.User{Username: "A", Email: "A@x.com", HashedPassword: "hash"})
	require.NoError(t, err)
	assert.Len(t, u.UserId, 26, "user ids are ULIDs")
	assert.Equal(t, "a@x.com", u.Email)

	got, err := store.FindUserByEmail(ctx, "a@X.com")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = store.InsertUser(ctx, sessions.User{Username: "B", Email: "a@x.com", HashedPassword: "other"})
	assert.ErrorIs(t, err, sessions.ErrDuplicateKey)

	_, err = store.InsertUser(ctx, sessions.User{Username: "A", Email: "a2@x.com", HashedPassword: "hash"})
	require.NoError(t, err)

	users, err := store.FindUsersByName(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []sessions.PublicUser{{Username: "A", Email: "a@x.com"}, {Username: "A", Email: "a2@x.com"}}, users)

	users, err = store.FindUsersByName(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestSQLiteAuthStore_SessionsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "members.db")
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	first := newTestSQLiteStore(t, path)
	s := sessions.Session{Id: "sid-1", UserId: "u-1", Username: "A", Authenticated: true, ExpiresAt: expires}
	require.NoError(t, first.SaveSession(ctx, s))
	require.NoError(t, first.DB.Close())

	second := newTestSQLiteStore(t, path)
	got, err := second.LoadSessionById(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, s.Id, got.Id)
	assert.Equal(t, "A", got.Username)
	assert.True(t, got.Authenticated)
	assert.True(t, expires.Equal(got.ExpiresAt))

	require.NoError(t, second.DeleteSessionById(ctx, "sid-1"))
	require.NoError(t, second.DeleteSessionById(ctx, "sid-1"))
	_, err = second.LoadSessionById(ctx, "sid-1")
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
}

func TestSQLiteAuthStore_SaveSessionOverwrites(t *testing.T) {
	store := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "members.db"))
	ctx := context.Background()

	s := sessions.Session{Id: "sid", UserId: "u", Username: "A", Authenticated: true, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.SaveSession(ctx, s))
	s.Authenticated = false
	require.NoError(t, store.SaveSession(ctx, s))

	got, err := store.LoadSessionById(ctx, "sid")
	require.NoError(t, err)
	assert.False(t, got.Authenticated)
}

func TestSQLiteAuthStore_DeleteExpiredSessions(t *testing.T) {
	store := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "members.db"))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveSession(ctx, sessions.Session{Id: "old", Authenticated: true, ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.SaveSession(ctx, sessions.Session{Id: "edge", Authenticated: true, ExpiresAt: now}))
	require.NoError(t, store.SaveSession(ctx, sessions.Session{Id: "fresh", Authenticated: true, ExpiresAt: now.Add(time.Minute)}))

	n, err := store.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = store.LoadSessionById(ctx, "fresh")
	assert.NoError(t, err)
	_, err = store.LoadSessionById(ctx, "edge")
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
}

func TestSQLiteAuthStore_ClosedDatabase(t *testing.T) {
	store := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "members.db"))
	require.NoError(t, store.DB.Close())
	ctx := context.Background()

	_, err := store.FindUserByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, sessions.ErrStoreUnavailable)
	_, err = store.InsertUser(ctx, sessions.User{Email: "a@x.com"})
	assert.ErrorIs(t, err, sessions.ErrStoreUnavailable)
	_, err = store.LoadSessionById(ctx, "sid")
	assert.ErrorIs(t, err, sessions.ErrStoreUnavailable)
}

func TestSQLiteAuthStore_WithManager(t *testing.T) {
	store := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "members.db"))
	ctx := context.Background()
	now := time.Now()
	manager := sessions.NewManager(store, "0123456789abcdef", time.Minute, sessions.WithClock(func() time.Time { return now }))

	s, err := manager.CreateSession(ctx, sessions.User{UserId: "u", Username: "A"})
	require.NoError(t, err)
	assert.True(t, manager.IsAuthenticated(ctx, s.Id))

	now = now.Add(time.Minute)
	assert.False(t, manager.IsAuthenticated(ctx, s.Id))
	_, err = store.LoadSessionById(ctx, s.Id)
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
}
