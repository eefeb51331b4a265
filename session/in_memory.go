package session

import (
	"sync"
	"time"

	"github.com/hupe1980/dialogmesh/core"
)

// Options configures an InMemoryStore.
type Options struct {
	// IdleTTL evicts sessions not accessed for this long. Zero disables eviction.
	IdleTTL time.Duration
	// Now is the clock used for eviction decisions.
	Now func() time.Time
}

type entry struct {
	sess    *core.Session
	touched time.Time
}

// InMemoryStore is a volatile SessionStore keeping sessions in a process
// local map. It is safe for concurrent access. It hands out the live
// *core.Session, so callers must hold the session lock while mutating it.
//
// Eviction is lazy: idle sessions are dropped when accessed or when
// EvictIdle is called. The store never starts goroutines or timers.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	opts    Options
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{entries: make(map[string]*entry), opts: opts}
}

// GetOrCreate returns the live session for id, creating it on first use.
func (s *InMemoryStore) GetOrCreate(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.Now()
	if e, ok := s.entries[sessionID]; ok && !s.expired(e, now) {
		e.touched = now
		return e.sess, nil
	}
	sess := core.NewSession(sessionID)
	sess.Created, sess.Updated = now, now
	s.entries[sessionID] = &entry{sess: sess, touched: now}
	return sess, nil
}

// Get returns an existing session or core.ErrSessionNotFound.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.Now()
	e, ok := s.entries[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	if s.expired(e, now) {
		delete(s.entries, sessionID)
		return nil, core.ErrSessionNotFound
	}
	e.touched = now
	return e.sess, nil
}

// Reset forgets a session.
func (s *InMemoryStore) Reset(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

// Len returns the number of stored sessions, including idle ones not yet evicted.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// EvictIdle drops every session idle for longer than IdleTTL and returns
// how many were removed.
func (s *InMemoryStore) EvictIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.Now()
	n := 0
	for id, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

func (s *InMemoryStore) expired(e *entry, now time.Time) bool {
	return s.opts.IdleTTL > 0 && now.Sub(e.touched) > s.opts.IdleTTL
}
