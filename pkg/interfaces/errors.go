package interfaces

import "errors"

// Lifecycle errors shared by the record store, the session manager and
// their callers
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session has expired")
	ErrPasswordRequired  = errors.New("password required for this session")
	ErrPasswordIncorrect = errors.New("incorrect password")
)

// IsUnauthorized reports whether err is one of the password gate outcomes
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrPasswordRequired) || errors.Is(err, ErrPasswordIncorrect)
}
