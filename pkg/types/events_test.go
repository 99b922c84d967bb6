package types

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeInbound_Variants(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, ev InboundEvent)
	}{
		{
			name:  "join with name",
			frame: `{"event":"join","data":{"session_id":"s1","name":"Ada"}}`,
			check: func(t *testing.T, ev InboundEvent) {
				j, ok := ev.(JoinEvent)
				if !ok || j.SessionID != "s1" || j.Name != "Ada" || j.Password != nil {
					t.Errorf("Unexpected join event: %+v", ev)
				}
			},
		},
		{
			name:  "join with password",
			frame: `{"event":"join","data":{"session_id":"s1","password":"pw12"}}`,
			check: func(t *testing.T, ev InboundEvent) {
				j := ev.(JoinEvent)
				if j.Password == nil || *j.Password != "pw12" {
					t.Errorf("Expected password pw12, got %v", j.Password)
				}
			},
		},
		{
			name:  "leave",
			frame: `{"event":"leave","data":{"session_id":"s1"}}`,
			check: func(t *testing.T, ev InboundEvent) {
				if _, ok := ev.(LeaveEvent); !ok {
					t.Errorf("Expected LeaveEvent, got %T", ev)
				}
			},
		},
		{
			name:  "empty code is allowed",
			frame: `{"event":"code_change","data":{"session_id":"s1","code":""}}`,
			check: func(t *testing.T, ev InboundEvent) {
				c := ev.(CodeChangeEvent)
				if c.Code != "" {
					t.Errorf("Expected empty code, got %q", c.Code)
				}
			},
		},
		{
			name:  "cursor move",
			frame: `{"event":"cursor_move","data":{"session_id":"s1","position":{"line":3,"column":5}}}`,
			check: func(t *testing.T, ev InboundEvent) {
				c := ev.(CursorMoveEvent)
				if c.Position != (CursorPosition{Line: 3, Column: 5}) {
					t.Errorf("Unexpected position %+v", c.Position)
				}
			},
		},
		{
			name:  "language change",
			frame: `{"event":"language_change","data":{"session_id":"s1","language":"go"}}`,
			check: func(t *testing.T, ev InboundEvent) {
				if ev.(LanguageChangeEvent).Language != LanguageGo {
					t.Errorf("Expected go, got %+v", ev)
				}
			},
		},
		{
			name:  "selection is forwarded verbatim",
			frame: `{"event":"selection_change","data":{"session_id":"s1","selection":{"startLine":1,"whatever":true}}}`,
			check: func(t *testing.T, ev InboundEvent) {
				s := ev.(SelectionChangeEvent)
				if string(s.Selection) != `{"startLine":1,"whatever":true}` {
					t.Errorf("Selection altered: %s", s.Selection)
				}
			},
		},
		{
			name:  "missing selection becomes null",
			frame: `{"event":"selection_change","data":{"session_id":"s1"}}`,
			check: func(t *testing.T, ev InboundEvent) {
				if string(ev.(SelectionChangeEvent).Selection) != "null" {
					t.Errorf("Expected null selection, got %s", ev.(SelectionChangeEvent).Selection)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeInbound([]byte(tt.frame))
			if err != nil {
				t.Fatalf("DecodeInbound failed: %v", err)
			}
			if ev.Session() != "s1" {
				t.Errorf("Expected session s1, got %s", ev.Session())
			}
			tt.check(t, ev)
		})
	}
}

func TestDecodeInbound_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr error
	}{
		{"not json", `nope`, ErrMalformedEnvelope},
		{"no event", `{"data":{}}`, ErrMalformedEnvelope},
		{"unknown event", `{"event":"explode","data":{}}`, ErrUnknownEvent},
		{"join without session", `{"event":"join","data":{"name":"x"}}`, ErrMissingSessionID},
		{"join without data", `{"event":"join"}`, ErrMissingSessionID},
		{"wrong shape", `{"event":"leave","data":{"session_id":42}}`, ErrMalformedEnvelope},
		{"code without code", `{"event":"code_change","data":{"session_id":"s1"}}`, ErrMissingCode},
		{"code too long", `{"event":"code_change","data":{"session_id":"s1","code":"` + strings.Repeat("x", MaxCodeLength+1) + `"}}`, ErrCodeTooLong},
		{"cursor without position", `{"event":"cursor_move","data":{"session_id":"s1"}}`, ErrMissingPosition},
		{"cursor missing column", `{"event":"cursor_move","data":{"session_id":"s1","position":{"line":1}}}`, ErrMissingPosition},
		{"cursor negative", `{"event":"cursor_move","data":{"session_id":"s1","position":{"line":-1,"column":0}}}`, ErrInvalidPosition},
		{"language missing", `{"event":"language_change","data":{"session_id":"s1"}}`, ErrMissingLanguage},
		{"language unknown", `{"event":"language_change","data":{"session_id":"s1","language":"cobol"}}`, ErrInvalidLanguage},
		{"selection without session", `{"event":"selection_change","data":{"selection":null}}`, ErrMissingSessionID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInbound([]byte(tt.frame))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
