package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"profiler/internal/conversation"
	"profiler/internal/phase"
	"profiler/internal/profile"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string) SessionRecord {
	p := profile.New()
	p.Set(profile.DomainPersonalInfo, "background", profile.Field{Value: "teacher", Source: "personal-info", Seq: 1})
	now := time.Now().UTC().Truncate(time.Second)
	return SessionRecord{
		ID:        id,
		Status:    "active",
		Phase:     phase.State{Index: 1, Retries: 2},
		Profile:   p,
		Scratch:   map[string]string{"personal-info": "notes"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSaveAndLoadSession(t *testing.T) {
	s := newTestStore(t)

	rec := sampleRecord("s1")
	if err := s.SaveSession(rec); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := s.SaveTurn("s1", conversation.Turn{Seq: 1, Role: conversation.RoleUser, Content: "hello", Phase: "initial", Timestamp: time.Now().UTC()}); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}
	if err := s.SaveTurn("s1", conversation.Turn{Seq: 2, Role: conversation.RoleSystem, Content: "hi", Phase: "initial", Timestamp: time.Now().UTC()}); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}

	got, turns, err := s.LoadSession("s1")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got.Status != "active" || got.Phase.Index != 1 || got.Phase.Retries != 2 {
		t.Errorf("record = %+v", got)
	}
	if f, ok := got.Profile.Get(profile.DomainPersonalInfo, "background"); !ok || f.Value != "teacher" {
		t.Errorf("profile field = %+v, %v", f, ok)
	}
	if got.Scratch["personal-info"] != "notes" {
		t.Errorf("scratch = %v", got.Scratch)
	}
	if len(turns) != 2 || turns[0].Seq != 1 || turns[1].Role != conversation.RoleSystem {
		t.Errorf("turns = %+v", turns)
	}
	if turns[0].Phase != "initial" || turns[1].Phase != "initial" {
		t.Errorf("turn phases = %q, %q, want initial", turns[0].Phase, turns[1].Phase)
	}
}

func TestSaveSessionUpserts(t *testing.T) {
	s := newTestStore(t)

	rec := sampleRecord("s1")
	if err := s.SaveSession(rec); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	rec.Status = "complete"
	rec.Phase.Index = 4
	if err := s.SaveSession(rec); err != nil {
		t.Fatalf("SaveSession update: %v", err)
	}

	got, _, err := s.LoadSession("s1")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got.Status != "complete" || got.Phase.Index != 4 {
		t.Errorf("updated record = %+v", got)
	}

	list, err := s.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListSessions returned %d records, want 1", len(list))
	}
}

func TestSaveTurnIdempotent(t *testing.T) {
	s := newTestStore(t)
	s.SaveSession(sampleRecord("s1"))

	turn := conversation.Turn{Seq: 1, Role: conversation.RoleUser, Content: "original", Timestamp: time.Now().UTC()}
	if err := s.SaveTurn("s1", turn); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}

	// Replay with different content: must not overwrite.
	turn.Content = "replayed"
	if err := s.SaveTurn("s1", turn); err != nil {
		t.Fatalf("SaveTurn replay: %v", err)
	}

	_, turns, _ := s.LoadSession("s1")
	if len(turns) != 1 || turns[0].Content != "original" {
		t.Errorf("turns after replay = %+v", turns)
	}
}

func TestDeleteTurn(t *testing.T) {
	s := newTestStore(t)
	s.SaveSession(sampleRecord("s1"))
	s.SaveTurn("s1", conversation.Turn{Seq: 1, Role: conversation.RoleUser, Content: "kept", Timestamp: time.Now().UTC()})
	s.SaveTurn("s1", conversation.Turn{Seq: 2, Role: conversation.RoleUser, Content: "rolled back", Timestamp: time.Now().UTC()})

	if err := s.DeleteTurn("s1", 2); err != nil {
		t.Fatalf("DeleteTurn: %v", err)
	}

	_, turns, _ := s.LoadSession("s1")
	if len(turns) != 1 || turns[0].Seq != 1 {
		t.Errorf("turns after delete = %+v", turns)
	}
}

func TestListSessionsSkipsCorruptRows(t *testing.T) {
	s := newTestStore(t)
	s.SaveSession(sampleRecord("good"))

	// A row with unparseable JSON must not poison the whole listing.
	now := time.Now().UTC()
	if _, err := s.db.Exec(
		`INSERT INTO sessions (id, status, phase_index, phase_retries, profile_json, scratch_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"corrupt", "active", 0, 0, "{}", "{not json", now, now,
	); err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}

	list, err := s.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 1 || list[0].ID != "good" {
		t.Errorf("list = %+v, want only the good session", list)
	}
}

func TestLoadMissingSession(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.LoadSession("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestStore(t)
	s.SaveSession(sampleRecord("s1"))
	s.SaveTurn("s1", conversation.Turn{Seq: 1, Role: conversation.RoleUser, Content: "x", Timestamp: time.Now().UTC()})

	if err := s.DeleteSession("s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, _, err := s.LoadSession("s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err after delete = %v", err)
	}
}
