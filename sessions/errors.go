package sessions

import "errors"

var ErrSignedSessionIdIncorrectLength = errors.New("the signed session id is not the correct length")

var ErrInvalidSessionSignature = errors.New("the signed session id had an invalid signature")

var ErrUserNotFound = errors.New("the user was not found with that email")

var ErrSessionNotFound = errors.New("the session was not found")

var ErrSessionExpired = errors.New("the session has expired")

var ErrUnauthenticated = errors.New("not authenticated")

// store-level errors
var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrDuplicateKey     = errors.New("duplicate key")
)
