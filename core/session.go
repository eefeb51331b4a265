package core

import (
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by stores for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// PendingAction is an action awaiting confirmation or missing fields.
type PendingAction struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// Clone returns a deep copy of the top-level parameter map.
func (p *PendingAction) Clone() *PendingAction {
	if p == nil {
		return nil
	}
	return &PendingAction{Action: p.Action, Params: CloneParams(p.Params)}
}

// CloneParams copies a parameter map.
func CloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// Session is one conversation. It is not safe for concurrent mutation:
// callers hold Lock for the duration of a turn.
//
// Contract:
//   - History is append-only within a session
//   - MissingFields is only meaningful while Pending is set
//   - Executed maps an action fingerprint to the completion text shown when
//     it was executed; entries are never removed except by a store reset
type Session struct {
	ID            string            `json:"id"`
	History       []Content         `json:"history"`
	Pending       *PendingAction    `json:"pending,omitempty"`
	MissingFields []string          `json:"missing_fields,omitempty"`
	Executed      map[string]string `json:"executed"`
	Created       time.Time         `json:"created"`
	Updated       time.Time         `json:"updated"`
	mu            sync.Mutex
}

// NewSession creates a new session with the given ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, Executed: map[string]string{}, Created: now, Updated: now}
}

// Lock acquires the per-session turn lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the per-session turn lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Append adds a message to the history.
func (s *Session) Append(c Content) {
	s.History = append(s.History, c)
	s.Updated = time.Now()
}

// SetPending moves the session into confirmation (no missing fields) or
// missing-field collection.
func (s *Session) SetPending(action string, params map[string]any, missing []string) {
	s.Pending = &PendingAction{Action: action, Params: CloneParams(params)}
	s.MissingFields = append([]string(nil), missing...)
	s.Updated = time.Now()
}

// ClearPending drops any pending action and missing fields.
func (s *Session) ClearPending() {
	s.Pending = nil
	s.MissingFields = nil
	s.Updated = time.Now()
}

// LastAssistantText returns the text of the most recent assistant message
// that carries text.
func (s *Session) LastAssistantText() (string, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		c := s.History[i]
		if c.Role != RoleAssistant {
			continue
		}
		if t := c.Text(); t != "" {
			return t, true
		}
	}
	return "", false
}

// Clone returns a deep copy of the session (maps & slices) except the lock.
func (s *Session) Clone() *Session {
	clone := &Session{
		ID:            s.ID,
		History:       append([]Content(nil), s.History...),
		Pending:       s.Pending.Clone(),
		MissingFields: append([]string(nil), s.MissingFields...),
		Executed:      make(map[string]string, len(s.Executed)),
		Created:       s.Created,
		Updated:       s.Updated,
	}
	for k, v := range s.Executed {
		clone.Executed[k] = v
	}
	return clone
}

// SessionStore is the registry of live sessions. Implementations must allow
// concurrent GetOrCreate calls for distinct ids.
type SessionStore interface {
	// GetOrCreate returns the session for id, creating it on first use.
	GetOrCreate(id string) (*Session, error)
	// Get returns an existing session or ErrSessionNotFound.
	Get(id string) (*Session, error)
	// Reset forgets the session; the next GetOrCreate starts fresh.
	Reset(id string) error
}
