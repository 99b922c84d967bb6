package session

import "interviewpad/pkg/interfaces"

// Lifecycle errors, shared with the record store so errors.Is works across
// both layers
var (
	ErrSessionNotFound   = interfaces.ErrSessionNotFound
	ErrSessionExpired    = interfaces.ErrSessionExpired
	ErrPasswordRequired  = interfaces.ErrPasswordRequired
	ErrPasswordIncorrect = interfaces.ErrPasswordIncorrect
)
