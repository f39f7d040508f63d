package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cameronmore/go-members/auth/migrations"
	"github.com/cameronmore/go-members/sessions"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const pgUniqueViolation = "23505"

type PostgresAuthStore struct {
	DB *sql.DB
}

// Opens and pings a Postgres database through the pgx stdlib driver.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, unavailable("open postgres", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, unavailable("ping postgres", err)
	}
	return db, nil
}

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// Returns a new Postgres AuthStore after bringing the schema up to date.
func NewPostgresAuthStore(ctx context.Context, db *sql.DB) (*PostgresAuthStore, error) {
	if err := RunMigrations(ctx, db); err != nil {
		return nil, unavailable("migrate postgres", err)
	}
	return &PostgresAuthStore{DB: db}, nil
}

func (pg *PostgresAuthStore) InsertUser(ctx context.Context, u sessions.User) (sessions.User, error) {
	u.UserId = newUserId()
	u.Email = normalizeEmail(u.Email)
	newUserQuery := `
		INSERT INTO users (user_id, username, email, hashed_password)
		VALUES ($1, $2, $3, $4)
		`
	_, err := pg.DB.ExecContext(ctx, newUserQuery, u.UserId, u.Username, u.Email, u.HashedPassword)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return sessions.User{}, sessions.ErrDuplicateKey
	}
	if err != nil {
		return sessions.User{}, unavailable("insert user", err)
	}
	return u, nil
}

func (pg *PostgresAuthStore) FindUserByEmail(ctx context.Context, email string) (sessions.User, error) {
	var u sessions.User
	query := `SELECT user_id, username, email, hashed_password FROM users WHERE email = $1`
	err := pg.DB.QueryRowContext(ctx, query, normalizeEmail(email)).Scan(&u.UserId, &u.Username, &u.Email, &u.HashedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return sessions.User{}, sessions.ErrUserNotFound
	}
	if err != nil {
		return sessions.User{}, unavailable("find user", err)
	}
	return u, nil
}

func (pg *PostgresAuthStore) FindUsersByName(ctx context.Context, name string) ([]sessions.PublicUser, error) {
	rows, err := pg.DB.QueryContext(ctx, `SELECT username, email FROM users WHERE username = $1 ORDER BY user_id`, name)
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

func (pg *PostgresAuthStore) SaveSession(ctx context.Context, session sessions.Session) error {
	newSessionQuery := `
		INSERT INTO sessions (id, user_id, username, authenticated, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			username = EXCLUDED.username,
			authenticated = EXCLUDED.authenticated,
			expires_at = EXCLUDED.expires_at
		`
	_, err := pg.DB.ExecContext(ctx, newSessionQuery,
		string(session.Id), session.UserId, session.Username, session.Authenticated, session.ExpiresAt.UnixNano())
	if err != nil {
		return unavailable("save session", err)
	}
	return nil
}

func (pg *PostgresAuthStore) LoadSessionById(ctx context.Context, id sessions.SessionId) (sessions.Session, error) {
	session := sessions.Session{Id: id}
	var expiresAt int64
	query := `SELECT user_id, username, authenticated, expires_at FROM sessions WHERE id = $1`
	err := pg.DB.QueryRowContext(ctx, query, string(id)).Scan(&session.UserId, &session.Username, &session.Authenticated, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sessions.Session{}, sessions.ErrSessionNotFound
	}
	if err != nil {
		return sessions.Session{}, unavailable("load session", err)
	}
	session.ExpiresAt = time.Unix(0, expiresAt)
	return session, nil
}

func (pg *PostgresAuthStore) DeleteSessionById(ctx context.Context, id sessions.SessionId) error {
	if _, err := pg.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, string(id)); err != nil {
		return unavailable("delete session", err)
	}
	return nil
}

func (pg *PostgresAuthStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := pg.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now.UnixNano())
	if err != nil {
		return 0, unavailable("delete expired sessions", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, unavailable("delete expired sessions", err)
	}
	return affected, nil
}

var _ sessions.AuthStore = (*PostgresAuthStore)(nil)
