package auth

import "errors"

// ErrDuplicateEmail is returned by Signup when the email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrInvalidCredentials covers every login failure: malformed input, unknown email and wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")
