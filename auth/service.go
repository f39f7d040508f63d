package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/cameronmore/go-members/password"
	"github.com/cameronmore/go-members/sessions"
	"github.com/cameronmore/go-members/validate"
)

// Longest value accepted for the free-form username lookup.
const maxLookupLength = 20

// Service composes validation, hashing, the user store and the session manager
// into the signup, login and logout flows.
type Service struct {
	users    sessions.UserStore
	sessions *sessions.Manager
	hasher   *password.Hasher

	// compared against when the email is unknown so both login failures cost one bcrypt run
	dummyHash string
}

func NewService(users sessions.UserStore, manager *sessions.Manager, hasher *password.Hasher) (*Service, error) {
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("hashing dummy password: %w", err)
	}
	return &Service{
		users:     users,
		sessions:  manager,
		hasher:    hasher,
		dummyHash: dummy,
	}, nil
}

// Signup registers a new user and starts a session for them. It returns a
// *validate.ValidationError, ErrDuplicateEmail, or a store error.
func (s *Service) Signup(ctx context.Context, in validate.Input) (sessions.Session, error) {
	vals, err := validate.SignupSchema.Validate(in)
	if err != nil {
		return sessions.Session{}, err
	}

	// early exit only, the insert below enforces uniqueness
	_, err = s.users.FindUserByEmail(ctx, vals["email"])
	switch {
	case err == nil:
		return sessions.Session{}, ErrDuplicateEmail
	case !errors.Is(err, sessions.ErrUserNotFound):
		return sessions.Session{}, err
	}

	hashedPassword, err := s.hasher.Hash(vals["password"])
	if err != nil {
		return sessions.Session{}, fmt.Errorf("hashing password: %w", err)
	}

	u, err := s.users.InsertUser(ctx, sessions.User{
		Username:       vals["name"],
		Email:          vals["email"],
		HashedPassword: hashedPassword,
	})
	if errors.Is(err, sessions.ErrDuplicateKey) {
		return sessions.Session{}, ErrDuplicateEmail
	}
	if err != nil {
		return sessions.Session{}, err
	}

	return s.sessions.CreateSession(ctx, u)
}

// Login verifies credentials and starts a session. Every credential problem is
// reported as ErrInvalidCredentials; only store failures come back as other errors.
func (s *Service) Login(ctx context.Context, in validate.Input) (sessions.Session, error) {
	vals, err := validate.LoginSchema.Validate(in)
	if err != nil {
		return sessions.Session{}, ErrInvalidCredentials
	}

	u, err := s.users.FindUserByEmail(ctx, vals["email"])
	if errors.Is(err, sessions.ErrUserNotFound) {
		s.hasher.Verify(vals["password"], s.dummyHash)
		return sessions.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return sessions.Session{}, err
	}

	if !s.hasher.Verify(vals["password"], u.HashedPassword) {
		return sessions.Session{}, ErrInvalidCredentials
	}

	return s.sessions.CreateSession(ctx, u)
}

func (s *Service) Logout(ctx context.Context, id sessions.SessionId) error {
	return s.sessions.DestroySession(ctx, id)
}

// LookupMembers lists members by exact name. raw is the untrusted query value
// and must be a plain string; anything else fails with validate.ErrInvalidInput.
func (s *Service) LookupMembers(ctx context.Context, raw any) ([]sessions.PublicUser, error) {
	name, err := validate.QueryParam(raw, maxLookupLength)
	if err != nil {
		return nil, err
	}
	return s.users.FindUsersByName(ctx, name)
}
