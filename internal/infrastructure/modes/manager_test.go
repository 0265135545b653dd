package modes

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/vocmd/internal/domain"
)

type memoryPrefs struct {
	profiles map[string]domain.UserPreferenceProfile
	saves    int
	fail     bool
}

func newMemoryPrefs() *memoryPrefs {
	return &memoryPrefs{profiles: map[string]domain.UserPreferenceProfile{}}
}

func (s *memoryPrefs) Load(user string, ct domain.ContextType) (domain.UserPreferenceProfile, bool, error) {
	p, ok := s.profiles[profileKey(user, ct)]
	return p, ok, nil
}

func (s *memoryPrefs) Save(p domain.UserPreferenceProfile) error {
	if s.fail {
		return errors.New("disk full")
	}
	s.saves++
	s.profiles[profileKey(p.UserID, p.Context)] = p
	return nil
}

func TestActivateSingleActiveContext(t *testing.T) {
	m := NewManager()
	if m.ActiveContext() != domain.ContextUnknown {
		t.Fatalf("expected unknown to start active")
	}
	m.Activate(domain.ContextTasks)
	m.Activate(domain.ContextChat)

	active := 0
	for _, ct := range domain.AllContexts() {
		if m.SettingsFor(ct).Active {
			active++
		}
	}
	if active != 1 || !m.SettingsFor(domain.ContextChat).Active {
		t.Fatalf("expected exactly chat active, got %d active", active)
	}
}

func TestAvailability(t *testing.T) {
	m := NewManager()
	tests := []struct {
		cmd  string
		ct   domain.ContextType
		want bool
	}{
		{"create_task", domain.ContextTasks, true},
		{"play_media", domain.ContextTasks, false},
		{"lock_screen", domain.ContextMedia, true},
		{"play_media", domain.ContextDashboard, true},
		{"anything", domain.ContextUnknown, true},
	}
	for _, tt := range tests {
		if got := m.IsCommandAvailable(tt.cmd, tt.ct); got != tt.want {
			t.Errorf("IsCommandAvailable(%s, %s) = %v, want %v", tt.cmd, tt.ct, got, tt.want)
		}
	}
}

func TestOverrideDisablesAndNotifies(t *testing.T) {
	m := NewManager()
	ch, cancel := m.SubscribeCommandsChanged()
	defer cancel()

	m.Override(domain.ContextDashboard, nil, []string{"shutdown_computer"})
	if m.IsCommandAvailable("shutdown_computer", domain.ContextDashboard) {
		t.Fatalf("disabled command must be unavailable even under *")
	}
	if !m.IsCommandAvailable("restart_computer", domain.ContextDashboard) {
		t.Fatalf("other commands must stay available")
	}
	select {
	case ev := <-ch:
		if ev.Context != domain.ContextDashboard || ev.Reason != "override" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected commands-changed event")
	}

	m.Override(domain.ContextTasks, []string{"list_tasks"}, nil)
	if m.IsCommandAvailable("create_task", domain.ContextTasks) {
		t.Fatalf("enabled set not replaced")
	}
}

func TestRecordOutcomePromotesFavorite(t *testing.T) {
	store := newMemoryPrefs()
	m := NewManager(WithStore(store))
	for i := 0; i < 3; i++ {
		if err := m.RecordOutcome("u1", domain.ContextTasks, "create_task", true); err != nil {
			t.Fatalf("RecordOutcome error: %v", err)
		}
	}
	p := m.Profile("u1", domain.ContextTasks)
	if diff := cmp.Diff([]string{"create_task"}, p.FavoriteCommands); diff != "" {
		t.Fatalf("favorites mismatch (-want +got):\n%s", diff)
	}
	usage := p.Usage["create_task"]
	if usage.Count != 3 || usage.Successes != 3 || usage.SuccessRate != 1 {
		t.Fatalf("unexpected usage %+v", usage)
	}
	if store.saves != 3 {
		t.Fatalf("expected a save per outcome, got %d", store.saves)
	}
}

func TestRecordOutcomeNotFavoriteBeforeThreeUses(t *testing.T) {
	m := NewManager()
	m.RecordOutcome("u1", domain.ContextTasks, "create_task", true)
	m.RecordOutcome("u1", domain.ContextTasks, "create_task", true)
	if m.Profile("u1", domain.ContextTasks).IsFavorite("create_task") {
		t.Fatalf("two uses must not promote")
	}
}

func TestRecordOutcomeEMA(t *testing.T) {
	m := NewManager()
	m.RecordOutcome("u1", domain.ContextTasks, "x", true)
	m.RecordOutcome("u1", domain.ContextTasks, "x", false)
	rate := m.Profile("u1", domain.ContextTasks).Usage["x"].SuccessRate
	if rate < 0.799 || rate > 0.801 {
		t.Fatalf("expected EMA 0.8 after one failure, got %v", rate)
	}
}

func TestRecordInterruptionKeepsSuccessRate(t *testing.T) {
	m := NewManager()
	for i := 0; i < 3; i++ {
		m.RecordOutcome("u1", domain.ContextTasks, "x", true)
	}
	for _, outcome := range []domain.Outcome{
		domain.OutcomeBlocked,
		domain.OutcomePendingConfirmation,
		domain.OutcomePendingConfirmation,
		domain.OutcomeDenied,
		domain.OutcomeExecuted,
	} {
		if err := m.RecordInterruption("u1", domain.ContextTasks, "x", outcome); err != nil {
			t.Fatalf("RecordInterruption error: %v", err)
		}
	}
	usage := m.Profile("u1", domain.ContextTasks).Usage["x"]
	if usage.Blocked != 1 || usage.Confirmations != 2 || usage.Denials != 1 {
		t.Fatalf("unexpected interruption counts %+v", usage)
	}
	if usage.Count != 3 || usage.SuccessRate != 1 {
		t.Fatalf("success tracking must be untouched, got %+v", usage)
	}
	if !m.Profile("u1", domain.ContextTasks).IsFavorite("x") {
		t.Fatalf("favorite must survive interruptions")
	}
}

func TestAvoidedCommandBecomesUnavailable(t *testing.T) {
	m := NewManager()
	for i := 0; i < 8; i++ {
		m.RecordOutcome("u1", domain.ContextDashboard, "play_media", i == 0)
	}
	p := m.Profile("u1", domain.ContextDashboard)
	if !p.IsAvoided("play_media") {
		t.Fatalf("expected play_media avoided, rate %v", p.Usage["play_media"].SuccessRate)
	}
	if m.IsCommandAvailableFor("u1", "play_media", domain.ContextDashboard) {
		t.Fatalf("avoided command must be unavailable")
	}
	if !m.IsCommandAvailableFor("u2", "play_media", domain.ContextDashboard) {
		t.Fatalf("other users are unaffected")
	}

	if err := m.SetAdaptive("u1", domain.ContextDashboard, false); err != nil {
		t.Fatal(err)
	}
	if !m.IsCommandAvailableFor("u1", "play_media", domain.ContextDashboard) {
		t.Fatalf("profile must be ignored when adaptive behavior is off")
	}
}

func TestFavoriteExtendsAllowList(t *testing.T) {
	m := NewManager()
	for i := 0; i < 3; i++ {
		m.RecordOutcome("u1", domain.ContextTasks, "play_media", true)
	}
	if !m.IsCommandAvailableFor("u1", "play_media", domain.ContextTasks) {
		t.Fatalf("favorite should be available in tasks")
	}
	if m.IsCommandAvailable("play_media", domain.ContextTasks) {
		t.Fatalf("static settings must be unchanged")
	}
}

func TestLearningDisabled(t *testing.T) {
	store := newMemoryPrefs()
	m := NewManager(WithStore(store), WithLearning(false))
	if err := m.RecordOutcome("u1", domain.ContextTasks, "create_task", true); err != nil {
		t.Fatal(err)
	}
	if store.saves != 0 {
		t.Fatalf("learning disabled must not persist")
	}
}

func TestProfileLoadedFromStore(t *testing.T) {
	store := newMemoryPrefs()
	stored := domain.NewUserPreferenceProfile("u1", domain.ContextChat)
	stored.AvoidedCommands = []string{"clear_chat"}
	store.profiles[profileKey("u1", domain.ContextChat)] = stored

	m := NewManager(WithStore(store))
	if m.IsCommandAvailableFor("u1", "clear_chat", domain.ContextChat) {
		t.Fatalf("stored avoided list must apply")
	}
}

func TestRecordOutcomeStoreError(t *testing.T) {
	store := newMemoryPrefs()
	store.fail = true
	m := NewManager(WithStore(store))
	if err := m.RecordOutcome("u1", domain.ContextTasks, "create_task", true); err == nil {
		t.Fatalf("expected store error to surface")
	}
}

func TestSuggestionsFor(t *testing.T) {
	m := NewManager()
	for _, ct := range domain.AllContexts() {
		for _, s := range m.SuggestionsFor(ct) {
			if s.Confidence < 0.7 || s.Confidence > 0.8 {
				t.Fatalf("curated confidence out of range: %+v", s)
			}
		}
	}
	if len(m.SuggestionsFor(domain.ContextTasks)) == 0 {
		t.Fatalf("expected curated task suggestions")
	}
}

func TestAvailableCommandsWithoutCatalog(t *testing.T) {
	m := NewManager()
	got := m.AvailableCommands("u1", domain.ContextMedia)
	want := []string{"lock_screen", "next_track", "open_settings", "pause_media", "play_media", "search_web", "set_volume", "take_screenshot"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("available commands mismatch (-want +got):\n%s", diff)
	}
}
