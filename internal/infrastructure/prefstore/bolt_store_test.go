package prefstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/vocmd/internal/domain"
)

func TestBoltStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, ok, err := s.Load("u1", domain.ContextTasks); ok || err != nil {
		t.Fatalf("expected empty store, got %v %v", ok, err)
	}

	p := domain.NewUserPreferenceProfile("u1", domain.ContextTasks)
	p.FavoriteCommands = []string{"create_task"}
	p.Usage["create_task"] = domain.UsagePattern{Count: 3, Successes: 3, SuccessRate: 1, LastUsed: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
	if err := s.Save(p); err != nil {
		t.Fatalf("save: %v", err)
	}
	other := domain.NewUserPreferenceProfile("u1", domain.ContextChat)
	if err := s.Save(other); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(domain.NewUserPreferenceProfile("u10", domain.ContextChat)); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, ok, err := s.Load("u1", domain.ContextTasks)
	if err != nil || !ok {
		t.Fatalf("load: %v %v", ok, err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}

	all, err := s.Profiles("u1")
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 profiles for u1, got %d", len(all))
	}
}
