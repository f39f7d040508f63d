package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cameronmore/go-members/sessions"
)

// MemoryAuthStore keeps users and sessions in process memory. Sessions do not
// survive a restart, so it is meant for tests and local development.
type MemoryAuthStore struct {
	mu       sync.RWMutex
	users    map[string]sessions.User // keyed by normalized email
	sessions map[sessions.SessionId]sessions.Session
}

func NewMemoryAuthStore() *MemoryAuthStore {
	return &MemoryAuthStore{
		users:    make(map[string]sessions.User),
		sessions: make(map[sessions.SessionId]sessions.Session),
	}
}

func (m *MemoryAuthStore) InsertUser(_ context.Context, u sessions.User) (sessions.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.Email = normalizeEmail(u.Email)
	if _, exists := m.users[u.Email]; exists {
		return sessions.User{}, sessions.ErrDuplicateKey
	}
	u.UserId = newUserId()
	m.users[u.Email] = u
	return u, nil
}

func (m *MemoryAuthStore) FindUserByEmail(_ context.Context, email string) (sessions.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[normalizeEmail(email)]
	if !ok {
		return sessions.User{}, sessions.ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryAuthStore) FindUsersByName(_ context.Context, name string) ([]sessions.PublicUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []sessions.User
	for _, u := range m.users {
		if u.Username == name {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].UserId < matched[j].UserId })

	users := make([]sessions.PublicUser, 0, len(matched))
	for _, u := range matched {
		users = append(users, sessions.PublicUser{Username: u.Username, Email: u.Email})
	}
	return users, nil
}

func (m *MemoryAuthStore) SaveSession(_ context.Context, s sessions.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Id] = s
	return nil
}

func (m *MemoryAuthStore) LoadSessionById(_ context.Context, id sessions.SessionId) (sessions.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return sessions.Session{}, sessions.ErrSessionNotFound
	}
	return s, nil
}

func (m *MemoryAuthStore) DeleteSessionById(_ context.Context, id sessions.SessionId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryAuthStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

var _ sessions.AuthStore = (*MemoryAuthStore)(nil)
