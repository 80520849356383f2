package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eventosacademicos/campus-agenda/internal/core/domain"
	"github.com/eventosacademicos/campus-agenda/internal/core/ports"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return s
}

func TestLoadEmpty(t *testing.T) {
	s := newStore(t)
	st, err := s.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if st.Token != "" || st.User != nil {
		t.Errorf("expected zero state, got %+v", st)
	}
}

func TestSaveTokenThenUser(t *testing.T) {
	s := newStore(t)

	if err := s.SaveToken("tok-123"); err != nil {
		t.Fatalf("save token failed: %v", err)
	}
	st, _ := s.Load()
	if st.Token != "tok-123" || st.User != nil {
		t.Fatalf("expected token-only state, got %+v", st)
	}

	u := &domain.User{ID: 4, Username: "maria", UserType: domain.UserTeacher}
	if err := s.SaveUser(u); err != nil {
		t.Fatalf("save user failed: %v", err)
	}
	st, _ = s.Load()
	if st.Token != "tok-123" {
		t.Error("saving user clobbered token")
	}
	if st.User == nil || st.User.Username != "maria" {
		t.Errorf("user not persisted: %+v", st.User)
	}
}

func TestPreferencesSurviveUserWrites(t *testing.T) {
	s := newStore(t)
	if err := s.SavePreferences(ports.Preferences{EventTypeFilter: "PARTY", SelectedMonth: "2026-03"}); err != nil {
		t.Fatalf("save preferences failed: %v", err)
	}
	_ = s.SaveToken("tok")

	st, _ := s.Load()
	if st.Preferences.EventTypeFilter != "PARTY" || st.Preferences.SelectedMonth != "2026-03" {
		t.Errorf("preferences lost: %+v", st.Preferences)
	}
}

func TestClearSessionIdempotent(t *testing.T) {
	s := newStore(t)
	_ = s.SaveToken("tok")
	_ = s.SavePreferences(ports.Preferences{EventTypeFilter: "EXAM"})

	if err := s.ClearSession(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	st, _ := s.Load()
	if st.Token != "" || st.User != nil || st.Preferences.EventTypeFilter != "" {
		t.Errorf("state not cleared: %+v", st)
	}

	// Clearing an already-empty store must not error.
	if err := s.ClearSession(); err != nil {
		t.Fatalf("second clear errored: %v", err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "session.json"), []byte("{broken"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	st, err := s.Load()
	if err == nil {
		t.Fatal("expected parse error for corrupt file")
	}
	if st.Token != "" || st.User != nil {
		t.Errorf("expected zero state on corruption, got %+v", st)
	}
}
