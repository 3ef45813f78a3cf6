package interview

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"profiler/internal/logging"
	"profiler/internal/recall"
	"profiler/internal/store"
)

// Registry holds live sessions and their durable mirror.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	persister store.Persister
	recaller  recall.Recaller
}

// NewRegistry creates a registry backed by the given persister.
func NewRegistry(persister store.Persister, recaller recall.Recaller) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		persister: persister,
		recaller:  recaller,
	}
}

// Create makes a new active session and persists it.
func (r *Registry) Create() (*Session, error) {
	s := newSession(uuid.NewString())

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	if err := r.persister.SaveSession(s.record()); err != nil {
		r.mu.Lock()
		delete(r.sessions, s.ID)
		r.mu.Unlock()
		return nil, fmt.Errorf("persist new session: %w", err)
	}

	logging.Session("Created session %s", s.ID)
	return s, nil
}

// Get returns a live session by id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns all live sessions ordered by creation time, newest first.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Archive makes a session read-only. Its report stays available; its recall
// index is released.
func (r *Registry) Archive(id string) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}

	switch s.Status() {
	case StatusArchived:
		return nil // already archived, idempotent
	case StatusAborted:
		return ErrSessionNotFound
	}

	s.setStatus(StatusArchived)
	r.recaller.Drop(id)
	if err := r.persister.SaveSession(s.record()); err != nil {
		return fmt.Errorf("persist archive: %w", err)
	}

	logging.Session("Archived session %s", id)
	return nil
}

// Abort tears a session down before completion. The persisted record is
// removed and the id stops resolving.
func (r *Registry) Abort(id string) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}

	s.setStatus(StatusAborted)
	r.recaller.Drop(id)

	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	if err := r.persister.DeleteSession(id); err != nil {
		return fmt.Errorf("delete aborted session: %w", err)
	}

	logging.Session("Aborted session %s", id)
	return nil
}

// Restore loads persisted sessions into the registry at boot. Aborted
// sessions were deleted, so everything found is load-worthy.
func (r *Registry) Restore() error {
	recs, err := r.persister.ListSessions()
	if err != nil {
		return fmt.Errorf("list persisted sessions: %w", err)
	}

	restored := 0
	for _, rec := range recs {
		_, turns, err := r.persister.LoadSession(rec.ID)
		if err != nil {
			logging.SessionWarn("Skipping unloadable session %s: %v", rec.ID, err)
			continue
		}
		s := restoreSession(rec, turns)

		r.mu.Lock()
		r.sessions[s.ID] = s
		r.mu.Unlock()
		restored++
	}

	if restored > 0 {
		logging.Session("Restored %d sessions from store", restored)
	}
	return nil
}
