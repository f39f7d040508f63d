package sessions

import (
	"context"
	"time"
)

// A registered user. HashedPassword never leaves the store adapter and the orchestrators.
type User struct {
	UserId         string
	Username       string
	Email          string
	HashedPassword string
}

// The subset of a user record that may be shown to other members.
type PublicUser struct {
	Username string `json:"name"`
	Email    string `json:"email"`
}

type SessionId string

type Session struct {
	Id            SessionId
	UserId        string
	Username      string
	Authenticated bool
	ExpiresAt     time.Time
}

// Reports whether the session grants access at the given instant.
func (s Session) Valid(now time.Time) bool {
	return s.Authenticated && now.Before(s.ExpiresAt)
}

// UserStore is the credential store adapter. Implementations must enforce email
// uniqueness themselves and report a conflict with ErrDuplicateKey.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (User, error)
	InsertUser(ctx context.Context, u User) (User, error)
	FindUsersByName(ctx context.Context, name string) ([]PublicUser, error)
}

// SessionStore persists session records. DeleteSessionById is idempotent.
type SessionStore interface {
	SaveSession(ctx context.Context, s Session) error
	LoadSessionById(ctx context.Context, id SessionId) (Session, error)
	DeleteSessionById(ctx context.Context, id SessionId) error
}

// ExpiringSessionStore is implemented by stores that do not expire records on their own.
type ExpiringSessionStore interface {
	SessionStore
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type AuthStore interface {
	UserStore
	ExpiringSessionStore
}
