// Package interview ties the pieces together: sessions, their registry,
// and the coordinator that runs one exchange end to end.
package interview

import (
	"sync"
	"time"

	"profiler/internal/conversation"
	"profiler/internal/phase"
	"profiler/internal/profile"
	"profiler/internal/store"
)

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusActive accepts exchanges.
	StatusActive Status = "active"
	// StatusComplete means every phase finished; the session is read-only.
	StatusComplete Status = "complete"
	// StatusArchived is read-only by operator request.
	StatusArchived Status = "archived"
	// StatusAborted was torn down before completion.
	StatusAborted Status = "aborted"
)

// Session is one in-flight interview. Conversation lives in the append-only
// log; everything else is guarded by mu. Exchanges are serialized by the
// exchange lock, acquired per the configured backpressure policy.
type Session struct {
	ID        string
	CreatedAt time.Time

	Log *conversation.Log

	// exchangeMu serializes exchanges. Queue policy blocks on it, reject
	// policy try-locks it.
	exchangeMu sync.Mutex

	mu        sync.RWMutex
	status    Status
	phase     phase.State
	profile   profile.Profile
	scratch   map[string]string
	updatedAt time.Time
}

// newSession creates an active session with an empty profile.
func newSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		CreatedAt: now,
		Log:       conversation.NewLog(),
		status:    StatusActive,
		phase:     phase.State{},
		profile:   profile.New(),
		scratch:   make(map[string]string),
		updatedAt: now,
	}
}

// restoreSession rebuilds a session from its persisted record and turns.
func restoreSession(rec store.SessionRecord, turns []conversation.Turn) *Session {
	scratch := rec.Scratch
	if scratch == nil {
		scratch = make(map[string]string)
	}
	p := rec.Profile
	if p == nil {
		p = profile.New()
	}
	return &Session{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		Log:       conversation.Restore(turns),
		status:    Status(rec.Status),
		phase:     rec.Phase,
		profile:   p,
		scratch:   scratch,
		updatedAt: rec.UpdatedAt,
	}
}

// Status returns the lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// setStatus transitions the lifecycle state.
func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
	s.updatedAt = time.Now().UTC()
}

// PhaseState returns the progression state.
func (s *Session) PhaseState() phase.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Profile returns a copy of the current profile.
func (s *Session) Profile() profile.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Clone()
}

// ScratchFor returns an analyzer's private notes.
func (s *Session) ScratchFor(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scratch[name]
}

// UpdatedAt returns the last mutation time.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// commit atomically installs the results of one exchange.
func (s *Session) commit(ps phase.State, p profile.Profile, scratch map[string]string, st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = ps
	s.profile = p
	for name, notes := range scratch {
		s.scratch[name] = notes
	}
	s.status = st
	s.updatedAt = time.Now().UTC()
}

// record snapshots the session into its durable form.
func (s *Session) record() store.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scratch := make(map[string]string, len(s.scratch))
	for k, v := range s.scratch {
		scratch[k] = v
	}
	return store.SessionRecord{
		ID:        s.ID,
		Status:    string(s.status),
		Phase:     s.phase,
		Profile:   s.profile.Clone(),
		Scratch:   scratch,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
	}
}
