package types

import (
	"unicode/utf8"
)

// Validate checks a create request against the durable field limits
// FUNCTIONAL DISCOVERY: Lengths are counted in characters, not bytes, so
// non-ASCII titles and code get the same budget as ASCII ones
func (c *SessionCreate) Validate() error {
	verr := &ValidationError{}

	if !IsValidTitle(c.Title) {
		verr.Add("title", ErrInvalidTitle)
	}
	if c.Language != nil && !IsValidLanguage(*c.Language) {
		verr.Add("language", ErrInvalidLanguage)
	}
	if !IsValidCode(c.InitialCode) {
		verr.Add("initial_code", ErrCodeTooLong)
	}
	if c.ExpiresInHours != nil {
		h := *c.ExpiresInHours
		if h < MinExpiresInHours || h > MaxExpiresInHours {
			verr.Add("expires_in_hours", ErrInvalidExpiresInHours)
		}
	}
	if c.Password != nil {
		n := utf8.RuneCountInString(*c.Password)
		if n < MinPasswordLength || n > MaxPasswordLength {
			verr.Add("password", ErrInvalidPassword)
		}
	}

	return verr.OrNil()
}

// Validate checks only the fields present in the partial update
func (u *SessionUpdate) Validate() error {
	verr := &ValidationError{}

	if u.Title != nil && !IsValidTitle(*u.Title) {
		verr.Add("title", ErrInvalidTitle)
	}
	if u.Language != nil && !IsValidLanguage(*u.Language) {
		verr.Add("language", ErrInvalidLanguage)
	}
	if u.Code != nil && !IsValidCode(*u.Code) {
		verr.Add("code", ErrCodeTooLong)
	}

	return verr.OrNil()
}

// IsValidTitle checks the 1-255 character bound
func IsValidTitle(title string) bool {
	n := utf8.RuneCountInString(title)
	return n >= 1 && n <= MaxTitleLength
}

// IsValidCode checks the code snapshot bound
func IsValidCode(code string) bool {
	return utf8.RuneCountInString(code) <= MaxCodeLength
}

// IsValidLanguage checks the language against the closed set
func IsValidLanguage(lang Language) bool {
	switch lang {
	case LanguageJavaScript,
		LanguagePython,
		LanguageCSharp,
		LanguageGo,
		LanguageJava:
		return true
	default:
		return false
	}
}
