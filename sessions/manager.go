package sessions

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Manager issues, reads and destroys sessions. It is the only component that
// writes session records; everything else reads them through Lookup or Authenticate.
type Manager struct {
	store  SessionStore
	secret string
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

type Option func(*Manager)

// Replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Controls the Secure attribute of issued cookies. Defaults to true.
func WithSecureCookies(secure bool) Option {
	return func(m *Manager) {
		m.secure = secure
	}
}

// Returns a new Manager given a session store, the secret used for cookie signing and the session lifetime.
func NewManager(store SessionStore, secret string, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		secret: secret,
		ttl:    ttl,
		secure: true,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// CreateSession starts an authenticated session for a user that has already been verified.
func (m *Manager) CreateSession(ctx context.Context, u User) (Session, error) {
	s := Session{
		Id:            newSessionId(),
		UserId:        u.UserId,
		Username:      u.Username,
		Authenticated: true,
		ExpiresAt:     m.now().Add(m.ttl),
	}
	if err := m.store.SaveSession(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Lookup returns the session if it is present, authenticated and not yet expired.
// Expired sessions are removed from the store on the way out; if that removal fails
// the returned error matches both ErrSessionExpired and the store error.
func (m *Manager) Lookup(ctx context.Context, id SessionId) (Session, error) {
	if id == "" {
		return Session{}, ErrUnauthenticated
	}
	s, err := m.store.LoadSessionById(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return Session{}, ErrUnauthenticated
	}
	if err != nil {
		return Session{}, err
	}
	if !s.Authenticated {
		return Session{}, ErrUnauthenticated
	}
	if !s.Valid(m.now()) {
		if err := m.store.DeleteSessionById(ctx, id); err != nil {
			return Session{}, errors.Join(ErrSessionExpired, err)
		}
		return Session{}, ErrSessionExpired
	}
	return s, nil
}

// IsAuthenticated fails closed: any error, including a store failure, means false.
func (m *Manager) IsAuthenticated(ctx context.Context, id SessionId) bool {
	_, err := m.Lookup(ctx, id)
	return err == nil
}

// DestroySession removes the session. Destroying an absent session is not an error.
func (m *Manager) DestroySession(ctx context.Context, id SessionId) error {
	if id == "" {
		return nil
	}
	return m.store.DeleteSessionById(ctx, id)
}

// Authenticate resolves the session referenced by the request cookie.
func (m *Manager) Authenticate(ctx context.Context, r *http.Request) (Session, error) {
	id, ok := m.SessionIdFromRequest(r)
	if !ok {
		return Session{}, ErrUnauthenticated
	}
	return m.Lookup(ctx, id)
}

// SessionIdFromRequest returns the session id from a correctly signed cookie.
func (m *Manager) SessionIdFromRequest(r *http.Request) (SessionId, bool) {
	return VerifyRequestSessionCookie(r, m.secret)
}

// Cookie returns the signed cookie that hands the session to the client.
func (m *Manager) Cookie(s Session) *http.Cookie {
	return newCookie(signSessionId(s.Id, m.secret), s.ExpiresAt, int(m.ttl.Seconds()), m.secure)
}

func (m *Manager) ClearCookie() *http.Cookie {
	return ClearCookie(m.secure)
}
