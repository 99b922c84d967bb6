package types

import (
	"time"
)

// Language identifies one of the editor languages a session can use
type Language string

// ARCHITECTURAL DISCOVERY: Language set is closed; both the durable record
// and the live language_change event validate against it
const (
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
	LanguageCSharp     Language = "csharp"
	LanguageGo         Language = "go"
	LanguageJava       Language = "java"
)

// DefaultLanguage is used when a create request omits language and when
// live state has never seen a language_change
const DefaultLanguage = LanguageJavaScript

// Field limits shared by create, update and live edits
const (
	MaxTitleLength    = 255
	MaxCodeLength     = 100000
	MinExpiresInHours = 1
	MaxExpiresInHours = 168
	MinPasswordLength = 4
	MaxPasswordLength = 128
)

// Session represents a durable interview session record
// FUNCTIONAL DISCOVERY: ID and CreatedAt are immutable after creation;
// updates only ever touch Title, Language and Code
type Session struct {
	ID           string     `json:"id" db:"id"`
	Title        string     `json:"title" db:"title"`
	Language     Language   `json:"language" db:"language"`
	Code         string     `json:"code" db:"code"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at" db:"expires_at"`
	PasswordHash *string    `json:"-" db:"password_hash"`
	IsActive     bool       `json:"is_active" db:"is_active"`
}

// IsProtected reports whether reading the session requires a password
func (s *Session) IsProtected() bool {
	return s.PasswordHash != nil
}

// IsExpiredAt reports whether the session's expiry lies strictly before now
func (s *Session) IsExpiredAt(now time.Time) bool {
	if s.ExpiresAt == nil {
		return false
	}
	return now.After(*s.ExpiresAt)
}

// SessionCreate carries the fields accepted when creating a session
type SessionCreate struct {
	Title          string    `json:"title"`
	Language       *Language `json:"language,omitempty"`
	InitialCode    string    `json:"initial_code"`
	ExpiresInHours *int      `json:"expires_in_hours,omitempty"`
	Password       *string   `json:"password,omitempty"`
}

// SessionUpdate is a partial update; nil fields are left untouched
type SessionUpdate struct {
	Title    *string   `json:"title,omitempty"`
	Language *Language `json:"language,omitempty"`
	Code     *string   `json:"code,omitempty"`
}

// IsEmpty reports whether the update carries no fields at all
func (u *SessionUpdate) IsEmpty() bool {
	return u.Title == nil && u.Language == nil && u.Code == nil
}

// Participant is one connection's presence record inside a live session
type Participant struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Color          string          `json:"color"`
	JoinedAt       time.Time       `json:"joined_at"`
	CursorPosition *CursorPosition `json:"cursor_position,omitempty"`
}

// CursorPosition is a caret location in the editor
type CursorPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// LanguageInfo describes a catalog entry for a supported language
type LanguageInfo struct {
	ID             Language `json:"id"`
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	ExecutionMode  string   `json:"execution_mode"`
	Runtime        string   `json:"runtime"`
	FileExtension  string   `json:"file_extension"`
	MonacoLanguage string   `json:"monaco_language"`
}

// SupportedLanguages is the static language catalog
// FUNCTIONAL DISCOVERY: Execution happens in the browser, the server only
// advertises which runtime a client should load
var SupportedLanguages = []LanguageInfo{
	{ID: LanguageJavaScript, Name: "JavaScript", Version: "ES2022", ExecutionMode: "browser", Runtime: "Web Worker", FileExtension: ".js", MonacoLanguage: "javascript"},
	{ID: LanguagePython, Name: "Python", Version: "3.11 (Pyodide)", ExecutionMode: "browser", Runtime: "Pyodide WASM", FileExtension: ".py", MonacoLanguage: "python"},
	{ID: LanguageCSharp, Name: "C#", Version: ".NET 8", ExecutionMode: "browser", Runtime: "Blazor WASM", FileExtension: ".cs", MonacoLanguage: "csharp"},
	{ID: LanguageGo, Name: "Go", Version: "1.21 (TinyGo)", ExecutionMode: "browser", Runtime: "TinyGo WASM", FileExtension: ".go", MonacoLanguage: "go"},
	{ID: LanguageJava, Name: "Java", Version: "11 (CheerpJ)", ExecutionMode: "browser", Runtime: "CheerpJ WASM", FileExtension: ".java", MonacoLanguage: "java"},
}
