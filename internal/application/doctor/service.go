package doctor

import (
	"context"
	"fmt"

	appconfig "github.com/doeshing/vocmd/internal/application/config"
	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/ports"
)

// RuleSource exposes the active policy rules.
type RuleSource interface {
	Rules() []domain.PolicyRule
}

// HandlerBindings reports whether a handler key has a host binding.
type HandlerBindings interface {
	Bound(key string) bool
}

// SignalCollector gathers environment signals.
type SignalCollector interface {
	Collect() []domain.Signal
}

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Catalog        ports.CommandCatalog
	Rules          RuleSource
	History        ports.HistoryRepository
	Preferences    ports.PreferenceStore
	Handlers       HandlerBindings
	Collector      SignalCollector
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if err := appconfig.Validate(cfg); err != nil {
		checks = append(checks, fail("Config file", err.Error()))
	} else {
		checks = append(checks, ok("Config file", fmt.Sprintf("format %s, safety %s", cfg.ConfigFormatVersion, cfg.Safety.Level)))
	}

	if s.Catalog != nil {
		defs := s.Catalog.List()
		checks = append(checks, ok("Command catalog", fmt.Sprintf("%d commands", len(defs))))
		checks = append(checks, handlerCheck(defs, s.Handlers, cfg.Execution.DryRun))
	} else {
		checks = append(checks, fail("Command catalog", "not loaded"))
	}

	if s.Rules != nil {
		checks = append(checks, ok("Policy rules", fmt.Sprintf("%d rules", len(s.Rules.Rules()))))
	} else {
		checks = append(checks, warn("Policy rules", "policy engine not initialized"))
	}

	if s.History != nil {
		if _, err := s.History.Records(1, ""); err != nil {
			checks = append(checks, fail("History store", err.Error()))
		} else {
			checks = append(checks, ok("History store", "readable"))
		}
	} else {
		checks = append(checks, warn("History store", "in-memory only"))
	}

	if s.Preferences != nil {
		if _, _, err := s.Preferences.Load(cfg.User.ID, domain.ContextUnknown); err != nil {
			checks = append(checks, fail("Preference store", err.Error()))
		} else {
			checks = append(checks, ok("Preference store", "readable"))
		}
	} else if cfg.Learning.Enabled {
		checks = append(checks, warn("Preference store", "learning enabled but profiles are not persisted"))
	}

	if s.Collector != nil {
		checks = append(checks, ok("Context signals", fmt.Sprintf("%d signals", len(s.Collector.Collect()))))
	}

	return domain.HealthReport{Checks: checks}, nil
}

func handlerCheck(defs []domain.CommandDefinition, bindings HandlerBindings, dryRun bool) domain.HealthCheck {
	if bindings == nil {
		return warn("Handlers", "no handler registry")
	}
	unbound := 0
	for _, def := range defs {
		if !bindings.Bound(def.Handler) {
			unbound++
		}
	}
	switch {
	case unbound == 0:
		return ok("Handlers", "every command has a host binding")
	case dryRun:
		return warn("Handlers", fmt.Sprintf("%d of %d commands run in dry-run mode", unbound, len(defs)))
	default:
		return warn("Handlers", fmt.Sprintf("%d of %d commands have no binding", unbound, len(defs)))
	}
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
