package livestate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"interviewpad/pkg/types"
)

// State maps live session concepts onto the primitive Store key schema
// ARCHITECTURAL DISCOVERY: Participant set, user hash and cursor hash are
// written by separate calls; readers join them and silently drop entries
// that are only half written or half removed
type State struct {
	store Store
	ttl   time.Duration
}

// Snapshot is the live view handed to a joining participant
type Snapshot struct {
	Code         string
	Language     types.Language
	Participants []*types.Participant
}

// userRecord is the JSON stored in the users hash
type userRecord struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	JoinedAt time.Time `json:"joined_at"`
}

// NewState wraps a store; a positive ttl is refreshed on every session write
func NewState(store Store, ttl time.Duration) *State {
	return &State{store: store, ttl: ttl}
}

// Store returns the underlying primitive store
func (s *State) Store() Store {
	return s.store
}

// AddParticipant registers a connection's presence in a session
func (s *State) AddParticipant(ctx context.Context, sessionID string, p *types.Participant) error {
	data, err := json.Marshal(userRecord{ID: p.ID, Name: p.Name, Color: p.Color, JoinedAt: p.JoinedAt})
	if err != nil {
		return fmt.Errorf("marshal participant: %w", err)
	}

	if err := s.store.SAdd(ctx, participantsKey(sessionID), p.ID); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	if err := s.store.HSet(ctx, usersKey(sessionID), p.ID, string(data)); err != nil {
		return fmt.Errorf("store participant: %w", err)
	}
	s.touch(ctx, participantsKey(sessionID), usersKey(sessionID))
	return nil
}

// RemoveParticipant removes presence, cursor and user entries for a connection
// Every removal is attempted; the first error is returned
func (s *State) RemoveParticipant(ctx context.Context, sessionID, connID string) error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	keep(s.store.SRem(ctx, participantsKey(sessionID), connID))
	keep(s.store.HDel(ctx, cursorsKey(sessionID), connID))
	keep(s.store.HDel(ctx, usersKey(sessionID), connID))
	if first != nil {
		return fmt.Errorf("remove participant: %w", first)
	}
	return nil
}

// SetUserSession records which session a connection belongs to
func (s *State) SetUserSession(ctx context.Context, connID, sessionID string) error {
	if err := s.store.Set(ctx, userSessionKey(connID), sessionID); err != nil {
		return fmt.Errorf("set reverse index: %w", err)
	}
	s.touch(ctx, userSessionKey(connID))
	return nil
}

// UserSession returns the session a connection last joined
func (s *State) UserSession(ctx context.Context, connID string) (string, bool, error) {
	id, ok, err := s.store.Get(ctx, userSessionKey(connID))
	if err != nil {
		return "", false, fmt.Errorf("get reverse index: %w", err)
	}
	return id, ok, nil
}

// ClearUserSession drops a connection's reverse index entry
func (s *State) ClearUserSession(ctx context.Context, connID string) error {
	if err := s.store.Del(ctx, userSessionKey(connID)); err != nil {
		return fmt.Errorf("clear reverse index: %w", err)
	}
	return nil
}

// Code returns the session's current code, "" when never set
func (s *State) Code(ctx context.Context, sessionID string) (string, error) {
	code, _, err := s.store.Get(ctx, codeKey(sessionID))
	if err != nil {
		return "", fmt.Errorf("get code: %w", err)
	}
	return code, nil
}

// SetCode overwrites the session's current code
func (s *State) SetCode(ctx context.Context, sessionID, code string) error {
	if err := s.store.Set(ctx, codeKey(sessionID), code); err != nil {
		return fmt.Errorf("set code: %w", err)
	}
	s.touch(ctx, codeKey(sessionID))
	return nil
}

// Language returns the session's current language, the default when never set
func (s *State) Language(ctx context.Context, sessionID string) (types.Language, error) {
	lang, ok, err := s.store.Get(ctx, languageKey(sessionID))
	if err != nil {
		return types.DefaultLanguage, fmt.Errorf("get language: %w", err)
	}
	if !ok || lang == "" {
		return types.DefaultLanguage, nil
	}
	return types.Language(lang), nil
}

// SetLanguage overwrites the session's current language
func (s *State) SetLanguage(ctx context.Context, sessionID string, lang types.Language) error {
	if err := s.store.Set(ctx, languageKey(sessionID), string(lang)); err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	s.touch(ctx, languageKey(sessionID))
	return nil
}

// SetCursor overwrites a connection's cursor entry
func (s *State) SetCursor(ctx context.Context, sessionID, connID string, pos types.CursorPosition) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}
	if err := s.store.HSet(ctx, cursorsKey(sessionID), connID, string(data)); err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	s.touch(ctx, cursorsKey(sessionID))
	return nil
}

// Participant reads one participant's user and cursor entries
func (s *State) Participant(ctx context.Context, sessionID, connID string) (*types.Participant, bool, error) {
	raw, ok, err := s.store.HGet(ctx, usersKey(sessionID), connID)
	if err != nil {
		return nil, false, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var rec userRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, false, fmt.Errorf("decode user %s: %w", connID, err)
	}
	p := &types.Participant{ID: rec.ID, Name: rec.Name, Color: rec.Color, JoinedAt: rec.JoinedAt}

	rawCursor, ok, err := s.store.HGet(ctx, cursorsKey(sessionID), connID)
	if err != nil {
		return nil, false, fmt.Errorf("get cursor: %w", err)
	}
	if ok {
		var pos types.CursorPosition
		if json.Unmarshal([]byte(rawCursor), &pos) == nil {
			p.CursorPosition = &pos
		}
	}
	return p, true, nil
}

// Participants joins the participant set with user and cursor entries,
// ordered by join time
func (s *State) Participants(ctx context.Context, sessionID string) ([]*types.Participant, error) {
	members, err := s.store.SMembers(ctx, participantsKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	users, err := s.store.HGetAll(ctx, usersKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	cursors, err := s.store.HGetAll(ctx, cursorsKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}

	participants := make([]*types.Participant, 0, len(members))
	for _, id := range members {
		raw, ok := users[id]
		if !ok {
			continue
		}
		var rec userRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		p := &types.Participant{ID: rec.ID, Name: rec.Name, Color: rec.Color, JoinedAt: rec.JoinedAt}
		if rawCursor, ok := cursors[id]; ok {
			var pos types.CursorPosition
			if json.Unmarshal([]byte(rawCursor), &pos) == nil {
				p.CursorPosition = &pos
			}
		}
		participants = append(participants, p)
	}

	sort.Slice(participants, func(i, j int) bool {
		if participants[i].JoinedAt.Equal(participants[j].JoinedAt) {
			return participants[i].ID < participants[j].ID
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return participants, nil
}

// Snapshot reads code, language and participants for a joining connection
func (s *State) Snapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	code, err := s.Code(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	lang, err := s.Language(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	participants, err := s.Participants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Code: code, Language: lang, Participants: participants}, nil
}

// Clear deletes every live key of a session; reverse index entries of its
// connections are left to disconnect cleanup
func (s *State) Clear(ctx context.Context, sessionID string) error {
	if err := s.store.Del(ctx, sessionKeys(sessionID)...); err != nil {
		return fmt.Errorf("clear session state: %w", err)
	}
	return nil
}

// Ping checks the underlying store
func (s *State) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// touch refreshes the TTL hint; failures only shorten the hint's reach
func (s *State) touch(ctx context.Context, keys ...string) {
	if s.ttl <= 0 {
		return
	}
	for _, k := range keys {
		_ = s.store.Expire(ctx, k, s.ttl)
	}
}
