package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cameronmore/go-members/sessions"
	"github.com/redis/go-redis/v9"
)

const redisSessionPrefix = "members:sess:"

// RedisSessionStore keeps session records in Redis and lets Redis expire them
// at ExpiresAt. Users stay in the SQL store.
type RedisSessionStore struct {
	rdb *redis.Client
	now func() time.Time
}

type redisSession struct {
	UserId        string    `json:"user_id"`
	Username      string    `json:"username"`
	Authenticated bool      `json:"authenticated"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Connects to the Redis server named by a redis:// URL.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, unavailable("ping redis", err)
	}
	return rdb, nil
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, now: time.Now}
}

func (r *RedisSessionStore) key(id sessions.SessionId) string {
	return redisSessionPrefix + string(id)
}

func (r *RedisSessionStore) SaveSession(ctx context.Context, s sessions.Session) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return r.DeleteSessionById(ctx, s.Id)
	}
	data, err := json.Marshal(redisSession{
		UserId:        s.UserId,
		Username:      s.Username,
		Authenticated: s.Authenticated,
		ExpiresAt:     s.ExpiresAt,
	})
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key(s.Id), data, ttl).Err(); err != nil {
		return unavailable("save session", err)
	}
	return nil
}

func (r *RedisSessionStore) LoadSessionById(ctx context.Context, id sessions.SessionId) (sessions.Session, error) {
	data, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return sessions.Session{}, sessions.ErrSessionNotFound
	}
	if err != nil {
		return sessions.Session{}, unavailable("load session", err)
	}
	var rec redisSession
	if err := json.Unmarshal(data, &rec); err != nil {
		// a record we cannot read grants nothing
		return sessions.Session{}, sessions.ErrSessionNotFound
	}
	return sessions.Session{
		Id:            id,
		UserId:        rec.UserId,
		Username:      rec.Username,
		Authenticated: rec.Authenticated,
		ExpiresAt:     rec.ExpiresAt,
	}, nil
}

func (r *RedisSessionStore) DeleteSessionById(ctx context.Context, id sessions.SessionId) error {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return unavailable("delete session", err)
	}
	return nil
}

var _ sessions.SessionStore = (*RedisSessionStore)(nil)
