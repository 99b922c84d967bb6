package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Inbound event names
const (
	EventJoin            = "join"
	EventLeave           = "leave"
	EventCodeChange      = "code_change"
	EventCursorMove      = "cursor_move"
	EventLanguageChange  = "language_change"
	EventSelectionChange = "selection_change"
)

// Outbound-only event names; code_change, cursor_move, language_change and
// selection_change are reused in both directions
const (
	EventSessionState = "session_state"
	EventUserJoined   = "user_joined"
	EventUserLeft     = "user_left"
	EventError        = "error"
)

// Live protocol errors
var (
	ErrMalformedEnvelope = errors.New("malformed event envelope")
	ErrUnknownEvent      = errors.New("unknown event")
	ErrMissingSessionID  = errors.New("session ID required")
	ErrMissingPosition   = errors.New("position required")
	ErrInvalidPosition   = errors.New("position line and column must be non-negative")
	ErrMissingLanguage   = errors.New("language required")
	ErrMissingCode       = errors.New("code required")
)

// Envelope is the JSON frame exchanged over the live connection
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// InboundEvent is the closed set of events a client may send
// ARCHITECTURAL DISCOVERY: The unexported marker keeps the variant closed so
// the hub's type switch is exhaustive over what DecodeInbound can return
type InboundEvent interface {
	EventName() string
	Session() string
	inbound()
}

// JoinEvent registers the connection into a session's room
type JoinEvent struct {
	SessionID string  `json:"session_id"`
	Name      string  `json:"name,omitempty"`
	Password  *string `json:"password,omitempty"`
}

// LeaveEvent removes the connection from a session's room
type LeaveEvent struct {
	SessionID string `json:"session_id"`
}

// CodeChangeEvent overwrites the session's current code
type CodeChangeEvent struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}

// CursorMoveEvent overwrites the sender's cursor entry
type CursorMoveEvent struct {
	SessionID string         `json:"session_id"`
	Position  CursorPosition `json:"position"`
}

// LanguageChangeEvent overwrites the session's current language
type LanguageChangeEvent struct {
	SessionID string   `json:"session_id"`
	Language  Language `json:"language"`
}

// SelectionChangeEvent is relayed verbatim and never stored
type SelectionChangeEvent struct {
	SessionID string          `json:"session_id"`
	Selection json.RawMessage `json:"selection"`
}

func (JoinEvent) EventName() string            { return EventJoin }
func (LeaveEvent) EventName() string           { return EventLeave }
func (CodeChangeEvent) EventName() string      { return EventCodeChange }
func (CursorMoveEvent) EventName() string      { return EventCursorMove }
func (LanguageChangeEvent) EventName() string  { return EventLanguageChange }
func (SelectionChangeEvent) EventName() string { return EventSelectionChange }

func (e JoinEvent) Session() string            { return e.SessionID }
func (e LeaveEvent) Session() string           { return e.SessionID }
func (e CodeChangeEvent) Session() string      { return e.SessionID }
func (e CursorMoveEvent) Session() string      { return e.SessionID }
func (e LanguageChangeEvent) Session() string  { return e.SessionID }
func (e SelectionChangeEvent) Session() string { return e.SessionID }

func (JoinEvent) inbound()            {}
func (LeaveEvent) inbound()           {}
func (CodeChangeEvent) inbound()      {}
func (CursorMoveEvent) inbound()      {}
func (LanguageChangeEvent) inbound()  {}
func (SelectionChangeEvent) inbound() {}

// wire shapes with optional fields so presence can be checked
type joinWire struct {
	SessionID string  `json:"session_id"`
	Name      string  `json:"name"`
	Password  *string `json:"password"`
}

type codeWire struct {
	SessionID string  `json:"session_id"`
	Code      *string `json:"code"`
}

type cursorWire struct {
	SessionID string `json:"session_id"`
	Position  *struct {
		Line   *int `json:"line"`
		Column *int `json:"column"`
	} `json:"position"`
}

type languageWire struct {
	SessionID string    `json:"session_id"`
	Language  *Language `json:"language"`
}

// DecodeInbound parses a raw frame into one of the inbound variants,
// rejecting unknown events and payloads missing required fields
func DecodeInbound(frame []byte) (InboundEvent, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Event == "" {
		return nil, ErrMalformedEnvelope
	}

	data := env.Data
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}

	switch env.Event {
	case EventJoin:
		var w joinWire
		if err := decodePayload(data, &w); err != nil {
			return nil, err
		}
		if w.SessionID == "" {
			return nil, ErrMissingSessionID
		}
		return JoinEvent{SessionID: w.SessionID, Name: w.Name, Password: w.Password}, nil

	case EventLeave:
		var e LeaveEvent
		if err := decodePayload(data, &e); err != nil {
			return nil, err
		}
		if e.SessionID == "" {
			return nil, ErrMissingSessionID
		}
		return e, nil

	case EventCodeChange:
		var w codeWire
		if err := decodePayload(data, &w); err != nil {
			return nil, err
		}
		if w.SessionID == "" {
			return nil, ErrMissingSessionID
		}
		if w.Code == nil {
			return nil, ErrMissingCode
		}
		if !IsValidCode(*w.Code) {
			return nil, ErrCodeTooLong
		}
		return CodeChangeEvent{SessionID: w.SessionID, Code: *w.Code}, nil

	case EventCursorMove:
		var w cursorWire
		if err := decodePayload(data, &w); err != nil {
			return nil, err
		}
		if w.SessionID == "" {
			return nil, ErrMissingSessionID
		}
		if w.Position == nil || w.Position.Line == nil || w.Position.Column == nil {
			return nil, ErrMissingPosition
		}
		if *w.Position.Line < 0 || *w.Position.Column < 0 {
			return nil, ErrInvalidPosition
		}
		return CursorMoveEvent{
			SessionID: w.SessionID,
			Position:  CursorPosition{Line: *w.Position.Line, Column: *w.Position.Column},
		}, nil

	case EventLanguageChange:
		var w languageWire
		if err := decodePayload(data, &w); err != nil {
			return nil, err
		}
		if w.SessionID == "" {
			return nil, ErrMissingSessionID
		}
		if w.Language == nil || *w.Language == "" {
			return nil, ErrMissingLanguage
		}
		if !IsValidLanguage(*w.Language) {
			return nil, ErrInvalidLanguage
		}
		return LanguageChangeEvent{SessionID: w.SessionID, Language: *w.Language}, nil

	case EventSelectionChange:
		var e SelectionChangeEvent
		if err := decodePayload(data, &e); err != nil {
			return nil, err
		}
		if e.SessionID == "" {
			return nil, ErrMissingSessionID
		}
		if len(e.Selection) == 0 {
			e.Selection = json.RawMessage("null")
		}
		return e, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, env.Event)
	}
}

func decodePayload(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return nil
}

// Outbound payloads

// SessionStatePayload is the snapshot sent only to a joining connection
type SessionStatePayload struct {
	Code         string         `json:"code"`
	Language     Language       `json:"language"`
	Participants []*Participant `json:"participants"`
	YourID       string         `json:"your_id"`
	YourColor    string         `json:"your_color"`
}

// UserLeftPayload announces a departed participant
type UserLeftPayload struct {
	UserID string `json:"user_id"`
}

// CodeChangePayload relays a code overwrite
type CodeChangePayload struct {
	Code   string `json:"code"`
	UserID string `json:"user_id"`
}

// CursorMovePayload relays a cursor move
type CursorMovePayload struct {
	UserID   string         `json:"user_id"`
	Position CursorPosition `json:"position"`
}

// LanguageChangePayload relays a language overwrite
type LanguageChangePayload struct {
	Language Language `json:"language"`
	UserID   string   `json:"user_id"`
}

// SelectionChangePayload relays an opaque selection
type SelectionChangePayload struct {
	UserID    string          `json:"user_id"`
	Selection json.RawMessage `json:"selection"`
}

// ErrorPayload is sent only to the connection whose event failed
type ErrorPayload struct {
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// OutboundEvent is a fully formed frame ready for any connection
type OutboundEvent struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewOutbound stamps an outbound frame
func NewOutbound(event string, data interface{}) *OutboundEvent {
	return &OutboundEvent{Event: event, Data: data, Timestamp: time.Now().UTC()}
}
