// Package store persists interview sessions so a restart does not lose
// in-flight interviews.
package store

import (
	"errors"
	"time"

	"profiler/internal/conversation"
	"profiler/internal/phase"
	"profiler/internal/profile"
)

// ErrNotFound is returned when a session id has no persisted record.
var ErrNotFound = errors.New("session not found in store")

// SessionRecord is the durable part of a session.
type SessionRecord struct {
	ID        string
	Status    string
	Phase     phase.State
	Profile   profile.Profile
	Scratch   map[string]string // per-analyzer private notes
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Persister saves and restores sessions. Turn writes are idempotent: saving
// the same (session, seq) twice is a no-op, so replays after a crash are
// safe.
type Persister interface {
	SaveSession(rec SessionRecord) error
	SaveTurn(sessionID string, turn conversation.Turn) error
	DeleteTurn(sessionID string, seq int) error
	LoadSession(id string) (SessionRecord, []conversation.Turn, error)
	ListSessions() ([]SessionRecord, error)
	DeleteSession(id string) error
	Close() error
}

// Noop discards everything. Used when persistence is disabled.
type Noop struct{}

func (Noop) SaveSession(rec SessionRecord) error                  { return nil }
func (Noop) SaveTurn(sessionID string, turn conversation.Turn) error { return nil }
func (Noop) DeleteTurn(sessionID string, seq int) error           { return nil }
func (Noop) LoadSession(id string) (SessionRecord, []conversation.Turn, error) {
	return SessionRecord{}, nil, ErrNotFound
}
func (Noop) ListSessions() ([]SessionRecord, error) { return nil, nil }
func (Noop) DeleteSession(id string) error          { return nil }
func (Noop) Close() error                           { return nil }
