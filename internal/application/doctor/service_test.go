package doctor

import (
	"context"
	"errors"
	"testing"

	"github.com/doeshing/vocmd/internal/domain"
)

type stubConfig struct {
	cfg domain.Config
	err error
}

func (s stubConfig) Load(context.Context) (domain.Config, error) { return s.cfg, s.err }

type stubCatalog []domain.CommandDefinition

func (c stubCatalog) List() []domain.CommandDefinition { return c }
func (c stubCatalog) Lookup(string) (domain.CommandDefinition, bool) {
	return domain.CommandDefinition{}, false
}

type stubBindings map[string]bool

func (b stubBindings) Bound(key string) bool { return b[key] }

func statusOf(report domain.HealthReport, name string) domain.HealthStatus {
	for _, c := range report.Checks {
		if c.Name == name {
			return c.Status
		}
	}
	return ""
}

func TestRunReportsChecks(t *testing.T) {
	svc := &Service{
		ConfigProvider: stubConfig{cfg: domain.Config{ConfigFormatVersion: "1", Execution: domain.ExecutionSettings{DryRun: true}}},
		Catalog: stubCatalog{
			{ID: "lock_screen", Handler: "system.lock"},
			{ID: "play_media", Handler: "media.play"},
		},
		Handlers: stubBindings{"system.lock": true},
	}
	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := map[string]domain.HealthStatus{
		"Config file":     domain.HealthOK,
		"Command catalog": domain.HealthOK,
		"Handlers":        domain.HealthWarn,
		"Policy rules":    domain.HealthWarn,
		"History store":   domain.HealthWarn,
	}
	for name, status := range want {
		if got := statusOf(report, name); got != status {
			t.Errorf("%s: expected %s, got %s", name, status, got)
		}
	}
}

func TestRunFailsOnConfigError(t *testing.T) {
	svc := &Service{ConfigProvider: stubConfig{err: errors.New("permission denied")}}
	report, err := svc.Run(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if statusOf(report, "Config file") != domain.HealthError {
		t.Fatalf("expected config failure, got %+v", report)
	}
}

func TestRunFlagsInvalidConfig(t *testing.T) {
	svc := &Service{ConfigProvider: stubConfig{cfg: domain.Config{Safety: domain.SafetySettings{Level: "loose"}}}}
	report, _ := svc.Run(context.Background())
	if statusOf(report, "Config file") != domain.HealthError {
		t.Fatalf("expected validation failure, got %+v", report)
	}
}
