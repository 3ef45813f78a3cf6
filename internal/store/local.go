package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"profiler/internal/conversation"
	"profiler/internal/logging"
	"profiler/internal/profile"
)

// LocalStore implements Persister on SQLite.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewLocalStore initializes the SQLite database at the given path.
func NewLocalStore(path string) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	logging.Store("Initializing LocalStore at path: %s", path)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &LocalStore{db: db, dbPath: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		phase_index INTEGER NOT NULL,
		phase_retries INTEGER NOT NULL,
		profile_json TEXT NOT NULL,
		scratch_json TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		phase TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveSession upserts the session record.
func (s *LocalStore) SaveSession(rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profileJSON, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	scratchJSON, err := json.Marshal(rec.Scratch)
	if err != nil {
		return fmt.Errorf("failed to marshal scratch: %w", err)
	}

	logging.StoreDebug("Saving session %s: status=%s phase=%d fields=%d",
		rec.ID, rec.Status, rec.Phase.Index, rec.Profile.FieldCount())

	_, err = s.db.Exec(
		`INSERT INTO sessions (id, status, phase_index, phase_retries, profile_json, scratch_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			phase_index = excluded.phase_index,
			phase_retries = excluded.phase_retries,
			profile_json = excluded.profile_json,
			scratch_json = excluded.scratch_json,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Status, rec.Phase.Index, rec.Phase.Retries,
		string(profileJSON), string(scratchJSON), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// SaveTurn records a conversation turn. Uses INSERT OR IGNORE so replaying
// an already-persisted turn is a silent no-op.
func (s *LocalStore) SaveTurn(sessionID string, turn conversation.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Storing turn: session=%s seq=%d role=%s len=%d",
		sessionID, turn.Seq, turn.Role, len(turn.Content))

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO turns (session_id, seq, role, content, phase, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, turn.Seq, string(turn.Role), turn.Content, turn.Phase, turn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}
	return nil
}

// DeleteTurn removes a persisted turn. Used to undo the provisional user
// turn of a rolled-back exchange.
func (s *LocalStore) DeleteTurn(sessionID string, seq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM turns WHERE session_id = ? AND seq = ?`, sessionID, seq)
	if err != nil {
		return fmt.Errorf("failed to delete turn: %w", err)
	}
	return nil
}

// LoadSession returns the session record and its turns in seq order.
func (s *LocalStore) LoadSession(id string) (SessionRecord, []conversation.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec SessionRecord
	var profileJSON, scratchJSON string
	err := s.db.QueryRow(
		`SELECT id, status, phase_index, phase_retries, profile_json, scratch_json, created_at, updated_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Status, &rec.Phase.Index, &rec.Phase.Retries,
		&profileJSON, &scratchJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return SessionRecord{}, nil, ErrNotFound
	}
	if err != nil {
		return SessionRecord{}, nil, fmt.Errorf("failed to load session: %w", err)
	}

	rec.Profile = profile.New()
	if err := json.Unmarshal([]byte(profileJSON), &rec.Profile); err != nil {
		return SessionRecord{}, nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	if err := json.Unmarshal([]byte(scratchJSON), &rec.Scratch); err != nil {
		return SessionRecord{}, nil, fmt.Errorf("failed to unmarshal scratch: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT seq, role, content, phase, created_at FROM turns WHERE session_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return SessionRecord{}, nil, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	var turns []conversation.Turn
	for rows.Next() {
		var t conversation.Turn
		var role string
		if err := rows.Scan(&t.Seq, &role, &t.Content, &t.Phase, &t.Timestamp); err != nil {
			continue
		}
		t.Role = conversation.Role(role)
		turns = append(turns, t)
	}

	logging.StoreDebug("Loaded session %s: %d turns", id, len(turns))
	return rec, turns, nil
}

// ListSessions returns all session records, newest first, without turns.
func (s *LocalStore) ListSessions() ([]SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, status, phase_index, phase_retries, profile_json, scratch_json, created_at, updated_at
		 FROM sessions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var profileJSON, scratchJSON string
		if err := rows.Scan(&rec.ID, &rec.Status, &rec.Phase.Index, &rec.Phase.Retries,
			&profileJSON, &scratchJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			logging.StoreWarn("Skipping unreadable session row: %v", err)
			continue
		}
		rec.Profile = profile.New()
		if err := json.Unmarshal([]byte(profileJSON), &rec.Profile); err != nil {
			logging.StoreWarn("Skipping session %s: corrupt profile JSON: %v", rec.ID, err)
			continue
		}
		if err := json.Unmarshal([]byte(scratchJSON), &rec.Scratch); err != nil {
			logging.StoreWarn("Skipping session %s: corrupt scratch JSON: %v", rec.ID, err)
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return out, nil
}

// DeleteSession removes a session and its turns.
func (s *LocalStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM turns WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	logging.Store("Deleted session %s", id)
	return nil
}

// Close closes the database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

var _ Persister = (*LocalStore)(nil)
