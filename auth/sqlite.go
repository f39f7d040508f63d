package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cameronmore/go-members/sessions"
	"github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	user_id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL,
	authenticated INTEGER NOT NULL,
	expires_at INTEGER NOT NULL -- unix nanoseconds
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
`

type SQLiteAuthStore struct {
	DB *sql.DB
}

// Opens and pings a SQLite database. SQLite allows a single writer, so the pool is limited to one connection.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, unavailable("open sqlite", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, unavailable("ping sqlite", err)
	}
	return db, nil
}

// Returns a new SQLite AuthStore and creates the necessary user and sessions tables if they don't exist
func NewSQLiteAuthStore(ctx context.Context, db *sql.DB) (*SQLiteAuthStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, unavailable("create sqlite schema", err)
	}
	return &SQLiteAuthStore{DB: db}, nil
}

func (s *SQLiteAuthStore) InsertUser(ctx context.Context, u sessions.User) (sessions.User, error) {
	u.UserId = newUserId()
	u.Email = normalizeEmail(u.Email)
	newUserQuery := `
		INSERT INTO users (user_id, username, email, hashed_password)
		VALUES (?, ?, ?, ?)
		`
	_, err := s.DB.ExecContext(ctx, newUserQuery, u.UserId, u.Username, u.Email, u.HashedPassword)
	if isSQLiteUniqueViolation(err) {
		return sessions.User{}, sessions.ErrDuplicateKey
	}
	if err != nil {
		return sessions.User{}, unavailable("insert user", err)
	}
	return u, nil
}

func (s *SQLiteAuthStore) FindUserByEmail(ctx context.Context, email string) (sessions.User, error) {
	var u sessions.User
	query := `SELECT user_id, username, email, hashed_password FROM users WHERE email = ?`
	err := s.DB.QueryRowContext(ctx, query, normalizeEmail(email)).Scan(&u.UserId, &u.Username, &u.Email, &u.HashedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return sessions.User{}, sessions.ErrUserNotFound
	}
	if err != nil {
		return sessions.User{}, unavailable("find user", err)
	}
	return u, nil
}

func (s *SQLiteAuthStore) FindUsersByName(ctx context.Context, name string) ([]sessions.PublicUser, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT username, email FROM users WHERE username = ? ORDER BY user_id`, name)
	if err != nil {
		return nil, unavailable("find users", err)
	}
	defer rows.Close()

	users := []sessions.PublicUser{}
	for rows.Next() {
		var u sessions.PublicUser
		if err := rows.Scan(&u.Username, &u.Email); err != nil {
			return nil, unavailable("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("find users", err)
	}
	return users, nil
}

func (s *SQLiteAuthStore) SaveSession(ctx context.Context, session sessions.Session) error {
	newSessionQuery := `
		INSERT INTO sessions (id, user_id, username, authenticated, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			username = excluded.username,
			authenticated = excluded.authenticated,
			expires_at = excluded.expires_at
		`
	_, err := s.DB.ExecContext(ctx, newSessionQuery,
		string(session.Id), session.UserId, session.Username, boolToInt(session.Authenticated), session.ExpiresAt.UnixNano())
	if err != nil {
		return unavailable("save session", err)
	}
	return nil
}

func (s *SQLiteAuthStore) LoadSessionById(ctx context.Context, id sessions.SessionId) (sessions.Session, error) {
	session := sessions.Session{Id: id}
	var authenticated int
	var expiresAt int64
	query := `SELECT user_id, username, authenticated, expires_at FROM sessions WHERE id = ?`
	err := s.DB.QueryRowContext(ctx, query, string(id)).Scan(&session.UserId, &session.Username, &authenticated, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sessions.Session{}, sessions.ErrSessionNotFound
	}
	if err != nil {
		return sessions.Session{}, unavailable("load session", err)
	}
	session.Authenticated = authenticated == 1
	session.ExpiresAt = time.Unix(0, expiresAt)
	return session, nil
}

func (s *SQLiteAuthStore) DeleteSessionById(ctx context.Context, id sessions.SessionId) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, string(id)); err != nil {
		return unavailable("delete session", err)
	}
	return nil
}

func (s *SQLiteAuthStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, unavailable("delete expired sessions", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, unavailable("delete expired sessions", err)
	}
	return affected, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

var _ sessions.AuthStore = (*SQLiteAuthStore)(nil)
