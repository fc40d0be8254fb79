package storage

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nearlyhq/nearly-go/internal/config"
	"github.com/nearlyhq/nearly-go/internal/model"
)

func setupSQLite(t *testing.T) (*SQLiteStore, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s, dbPath
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Storage
		wantErr bool
	}{
		{
			name: "valid sqlite config",
			cfg: &config.Storage{
				Driver:     "sqlite",
				SQLitePath: filepath.Join(t.TempDir(), "test.db"),
			},
			wantErr: false,
		},
		{
			name:    "memory driver",
			cfg:     &config.Storage{Driver: "memory"},
			wantErr: false,
		},
		{
			name:    "unsupported driver",
			cfg:     &config.Storage{Driver: "postgres"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if s != nil {
				defer s.Close()
			}
		})
	}
}

func TestAddHasRemove(t *testing.T) {
	s, _ := setupSQLite(t)

	if s.Has(model.KindLikedPost, "p1") {
		t.Fatal("expected empty store")
	}

	if err := s.Add(model.KindLikedPost, "p1"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !s.Has(model.KindLikedPost, "p1") {
		t.Error("expected p1 to be present after Add")
	}

	// Adding again is a no-op.
	if err := s.Add(model.KindLikedPost, "p1"); err != nil {
		t.Fatalf("second Add() error = %v", err)
	}
	if got := s.All(model.KindLikedPost); len(got) != 1 {
		t.Errorf("expected 1 member, got %v", got)
	}

	if err := s.Remove(model.KindLikedPost, "p1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if s.Has(model.KindLikedPost, "p1") {
		t.Error("expected p1 to be gone after Remove")
	}

	// Removing a non-member is a no-op.
	if err := s.Remove(model.KindLikedPost, "missing"); err != nil {
		t.Fatalf("Remove(missing) error = %v", err)
	}
}

func TestKindsAreIsolated(t *testing.T) {
	s, _ := setupSQLite(t)

	if err := s.Add(model.KindLikedPost, "x1"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if s.Has(model.KindSavedPost, "x1") {
		t.Error("saved_post must not see liked_post members")
	}
	if s.Has(model.KindLikedEvent, "x1") {
		t.Error("liked_event must not see liked_post members")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	for _, id := range []string{"b", "a", "c"} {
		if err := s.Add(model.KindSavedShot, id); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	got := reopened.All(model.KindSavedShot)
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("All() after reopen = %v, want %v", got, want)
	}
}

func TestUnknownKind(t *testing.T) {
	s, _ := setupSQLite(t)

	bad := model.ToggleKind("liked_unicorn")
	if s.Has(bad, "x") {
		t.Error("Has() on unknown kind should be false")
	}
	if err := s.Add(bad, "x"); err == nil {
		t.Error("Add() on unknown kind should fail")
	}
	if got := s.All(bad); got != nil {
		t.Errorf("All() on unknown kind = %v, want nil", got)
	}
}

func TestSetFollowState(t *testing.T) {
	stores := map[string]ToggleStore{
		"memory": NewMemoryStore(),
	}
	sqlite, _ := setupSQLite(t)
	stores["sqlite"] = sqlite

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			if err := SetFollowState(s, "u9", model.FollowPending); err != nil {
				t.Fatalf("SetFollowState(pending) error = %v", err)
			}
			if got := FollowStateOf(s, "u9"); got != model.FollowPending {
				t.Errorf("state = %s, want pending", got)
			}

			// Acceptance moves the id between sets, never duplicating it.
			if err := SetFollowState(s, "u9", model.FollowFollowing); err != nil {
				t.Fatalf("SetFollowState(following) error = %v", err)
			}
			if s.Has(model.KindPendingFollow, "u9") {
				t.Error("u9 must leave pending_follow when following")
			}
			if !s.Has(model.KindFollowing, "u9") {
				t.Error("u9 must be in following")
			}

			if err := SetFollowState(s, "u9", model.FollowNone); err != nil {
				t.Fatalf("SetFollowState(none) error = %v", err)
			}
			if got := FollowStateOf(s, "u9"); got != model.FollowNone {
				t.Errorf("state = %s, want none", got)
			}
		})
	}
}

func TestMemoryStoreSemanticsMatchSQLite(t *testing.T) {
	m := NewMemoryStore()

	if err := m.Add(model.KindFollowing, "u1"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !m.Has(model.KindFollowing, "u1") {
		t.Error("expected u1 present")
	}
	if err := m.Remove(model.KindFollowing, "u1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if m.Has(model.KindFollowing, "u1") {
		t.Error("expected u1 removed")
	}
	if err := m.Add(model.ToggleKind("nope"), "x"); err == nil {
		t.Error("expected unknown kind to fail")
	}
}
