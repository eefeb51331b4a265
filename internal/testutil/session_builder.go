package testutil

import (
	"github.com/hupe1980/dialogmesh/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("s1").User("Rapport für Max").Assistant("Passt das?").Build()
type SessionBuilder struct {
	id       string
	history  []core.Content
	pending  *core.PendingAction
	missing  []string
	executed map[string]string
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, executed: map[string]string{}}
}

// User appends a user text message (chainable).
func (b *SessionBuilder) User(text string) *SessionBuilder {
	b.history = append(b.history, core.NewTextContent(core.RoleUser, text))
	return b
}

// Assistant appends an assistant text message (chainable).
func (b *SessionBuilder) Assistant(text string) *SessionBuilder {
	b.history = append(b.history, core.NewTextContent(core.RoleAssistant, text))
	return b
}

// ToolCall appends an assistant function call and its successful response
// (chainable).
func (b *SessionBuilder) ToolCall(id, name, args string, result any) *SessionBuilder {
	b.history = append(b.history,
		core.Content{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}},
		}},
		core.NewFunctionResponseContent(id, name, result, nil),
	)
	return b
}

// Content appends arbitrary messages (chainable).
func (b *SessionBuilder) Content(cs ...core.Content) *SessionBuilder {
	b.history = append(b.history, cs...)
	return b
}

// Pending sets the pending action; missing fields switch the session into
// collection (chainable).
func (b *SessionBuilder) Pending(action string, params map[string]any, missing ...string) *SessionBuilder {
	b.pending = &core.PendingAction{Action: action, Params: core.CloneParams(params)}
	b.missing = append([]string(nil), missing...)
	return b
}

// Executed records a fingerprint in the idempotency ledger (chainable).
func (b *SessionBuilder) Executed(fingerprint, message string) *SessionBuilder {
	b.executed[fingerprint] = message
	return b
}

// Build returns a *core.Session with the configured state.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	s.History = append(s.History, b.history...)
	if b.pending != nil {
		s.SetPending(b.pending.Action, b.pending.Params, b.missing)
	}
	for k, v := range b.executed {
		s.Executed[k] = v
	}
	return s
}

// StaticStore is a core.SessionStore serving prebuilt sessions. Unknown ids
// are created on demand.
type StaticStore struct {
	sessions map[string]*core.Session
}

// NewStaticStore returns a store seeded with sessions.
func NewStaticStore(sessions ...*core.Session) *StaticStore {
	st := &StaticStore{sessions: map[string]*core.Session{}}
	for _, s := range sessions {
		st.sessions[s.ID] = s
	}
	return st
}

// GetOrCreate implements core.SessionStore.
func (s *StaticStore) GetOrCreate(id string) (*core.Session, error) {
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	sess := core.NewSession(id)
	s.sessions[id] = sess
	return sess, nil
}

// Get implements core.SessionStore.
func (s *StaticStore) Get(id string) (*core.Session, error) {
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return nil, core.ErrSessionNotFound
}

// Reset implements core.SessionStore.
func (s *StaticStore) Reset(id string) error {
	delete(s.sessions, id)
	return nil
}
