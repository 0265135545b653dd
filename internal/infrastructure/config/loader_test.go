package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/vocmd/internal/domain"
)

func TestLoadWritesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	loader := NewFileLoader(path)

	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Safety.Level != domain.SafetyModerate || !cfg.Safety.ConfirmSensitiveCommands {
		t.Fatalf("unexpected safety defaults: %+v", cfg.Safety)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}

	again, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if diff := cmp.Diff(cfg, again); diff != "" {
		t.Fatalf("reload mismatch (-first +second):\n%s", diff)
	}
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("safety:\n  level: strict\nuser:\n  id: alice\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigPath, path)

	cfg, err := NewFileLoader("").Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Safety.Level != domain.SafetyStrict || cfg.User.ID != "alice" {
		t.Fatalf("override ignored: %+v", cfg)
	}
	if cfg.History.MaxEntries != domain.DefaultHistoryEntries {
		t.Fatalf("expected hydrated history cap, got %d", cfg.History.MaxEntries)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[safety]\nlevel = \"permissive\"\npermission_ttl = \"1h\"\n\n[commands]\nenabled_categories = [\"tasks\", \"chat\"]\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewFileLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Safety.Level != domain.SafetyPermissive || cfg.Safety.PermissionTTL != "1h" {
		t.Fatalf("unexpected safety: %+v", cfg.Safety)
	}
	if diff := cmp.Diff([]domain.Category{domain.CategoryTasks, domain.CategoryChat}, cfg.Commands.EnabledCategories); diff != "" {
		t.Fatalf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveRoundTripTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	loader := NewFileLoader(path)
	cfg, err := Defaults()
	if err != nil {
		t.Fatal(err)
	}
	cfg.SetHandlerCommand("system.lock", "loginctl lock-session")
	if err := loader.Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cmd, ok := got.HandlerCommand("system.lock"); !ok || cmd != "loginctl lock-session" {
		t.Fatalf("handler binding lost: %q %v", cmd, ok)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("safety: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileLoader(path).Load(context.Background()); err == nil {
		t.Fatalf("expected parse error")
	}
}
