package store

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/timestitch/timestitch/internal/domain"
	bolt "go.etcd.io/bbolt"
)

func newTestStore(t *testing.T) *JournalStore {
	t.Helper()
	s, err := NewJournalStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewJournalStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testChange(id string) domain.PendingChange {
	return domain.PendingChange{
		ID:         id,
		Kind:       domain.ChangeCreate,
		Entity:     domain.EntityMemory,
		EntityID:   "mem-" + id,
		Payload:    json.RawMessage(`{"title":"` + id + `"}`),
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestAppendPreservesFIFOOrder(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 10; i++ {
		if err := s.Append(testChange(fmt.Sprintf("c%02d", i))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	changes := s.ReadAll()
	if len(changes) != 10 {
		t.Fatalf("Expected 10 changes, got %d", len(changes))
	}
	for i, c := range changes {
		want := fmt.Sprintf("c%02d", i)
		if c.ID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, c.ID)
		}
	}
}

func TestAppendSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	s, err := NewJournalStore(dir, nil)
	if err != nil {
		t.Fatalf("NewJournalStore failed: %v", err)
	}
	change := testChange("persist-me")
	if err := s.Append(change); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen simulates a process restart.
	s2, err := NewJournalStore(dir, nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer s2.Close()

	changes := s2.ReadAll()
	if len(changes) != 1 {
		t.Fatalf("Expected 1 change after restart, got %d", len(changes))
	}
	if changes[0].ID != "persist-me" {
		t.Errorf("Expected change persist-me, got %s", changes[0].ID)
	}
	if string(changes[0].Payload) != string(change.Payload) {
		t.Errorf("Payload changed across restart: %s", changes[0].Payload)
	}
}

func TestReadAllEmptyStore(t *testing.T) {
	s := newTestStore(t)

	changes := s.ReadAll()
	if len(changes) != 0 {
		t.Errorf("Expected empty log on first run, got %d entries", len(changes))
	}
	if s.Len() != 0 {
		t.Errorf("Expected Len 0, got %d", s.Len())
	}
}

func TestReadAllDropsCorruptEntries(t *testing.T) {
	s := newTestStore(t)

	if err := s.Append(testChange("good")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Write garbage bytes directly under the log bucket.
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChangeLog).Put(seqKey(999), []byte("{not json"))
	})
	if err != nil {
		t.Fatalf("Failed to inject corrupt entry: %v", err)
	}

	changes := s.ReadAll()
	if len(changes) != 1 {
		t.Fatalf("Expected corrupt entry to be dropped, got %d entries", len(changes))
	}
	if changes[0].ID != "good" {
		t.Errorf("Expected surviving change good, got %s", changes[0].ID)
	}
}

func TestRemoveAppliedKeepsRemainderInOrder(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := s.Append(testChange(id)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if err := s.RemoveApplied([]string{"a", "c"}); err != nil {
		t.Fatalf("RemoveApplied failed: %v", err)
	}

	changes := s.ReadAll()
	if len(changes) != 2 {
		t.Fatalf("Expected 2 remaining changes, got %d", len(changes))
	}
	if changes[0].ID != "b" || changes[1].ID != "d" {
		t.Errorf("Expected order [b d], got [%s %s]", changes[0].ID, changes[1].ID)
	}
}

func TestRemoveAppliedUnknownIDIsNoop(t *testing.T) {
	s := newTestStore(t)

	if err := s.Append(testChange("only")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	before := s.ReadAll()
	if err := s.RemoveApplied([]string{"never-existed"}); err != nil {
		t.Fatalf("RemoveApplied failed: %v", err)
	}
	after := s.ReadAll()

	if len(after) != len(before) {
		t.Fatalf("Log length changed: %d -> %d", len(before), len(after))
	}
	if string(after[0].Payload) != string(before[0].Payload) {
		t.Error("Surviving entry content changed")
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		s.Append(testChange(fmt.Sprintf("c%d", i)))
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if s.Len() != 0 {
		t.Errorf("Expected empty log after Clear, got %d entries", s.Len())
	}

	// Log remains usable after Clear.
	if err := s.Append(testChange("after-clear")); err != nil {
		t.Fatalf("Append after Clear failed: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", s.Len())
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if _, ok := s.LoadProjects(); ok {
		t.Error("Expected no projects on first run")
	}

	projects := []domain.Project{
		{ID: "p1", Name: "Trip", Color: domain.ColorSky, MemoryCount: 2},
	}
	memories := []domain.Memory{
		{ID: "m1", Title: "Beach day", ProjectID: "p1"},
		{ID: "m2", Title: "Hike", ProjectID: "p1", Favorite: true},
	}

	if err := s.SaveProjects(projects); err != nil {
		t.Fatalf("SaveProjects failed: %v", err)
	}
	if err := s.SaveMemories(memories); err != nil {
		t.Fatalf("SaveMemories failed: %v", err)
	}

	gotProjects, ok := s.LoadProjects()
	if !ok || len(gotProjects) != 1 || gotProjects[0].Name != "Trip" {
		t.Errorf("LoadProjects mismatch: ok=%v got=%+v", ok, gotProjects)
	}
	gotMemories, ok := s.LoadMemories()
	if !ok || len(gotMemories) != 2 || !gotMemories[1].Favorite {
		t.Errorf("LoadMemories mismatch: ok=%v got=%+v", ok, gotMemories)
	}
}

func TestLastSyncAt(t *testing.T) {
	s := newTestStore(t)

	if _, ok := s.LastSyncAt(); ok {
		t.Error("Expected no last sync time on first run")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := s.SetLastSyncAt(now); err != nil {
		t.Fatalf("SetLastSyncAt failed: %v", err)
	}

	got, ok := s.LastSyncAt()
	if !ok {
		t.Fatal("Expected last sync time to be set")
	}
	if !got.Equal(now) {
		t.Errorf("Expected %v, got %v", now, got)
	}
}
