package types

import (
	"errors"
	"strings"
)

// ErrValidation is matched by every *ValidationError via errors.Is
var ErrValidation = errors.New("validation failed")

// Field-level validation messages
var (
	ErrInvalidTitle          = errors.New("title must be 1-255 characters")
	ErrInvalidLanguage       = errors.New("language must be one of javascript, python, csharp, go, java")
	ErrCodeTooLong           = errors.New("code must be at most 100000 characters")
	ErrInvalidExpiresInHours = errors.New("expires_in_hours must be between 1 and 168")
	ErrInvalidPassword       = errors.New("password must be 4-128 characters")
)

// FieldError describes one rejected field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field that failed validation
// ARCHITECTURAL DISCOVERY: Returned before any mutation so callers can map
// it to a 422 response or a live error event without partial writes
type ValidationError struct {
	Fields []FieldError
}

// Add records a failed field
func (e *ValidationError) Add(field string, err error) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: err.Error()})
}

// OrNil returns nil when no field failed so callers can return it directly
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
