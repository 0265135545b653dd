package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/doeshing/vocmd/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if err := validateCommands(cfg.Commands); err != nil {
		return err
	}
	if err := validateSafety(cfg.Safety); err != nil {
		return err
	}
	if err := validateHistory(cfg.History); err != nil {
		return err
	}
	if err := validateExecution(cfg.Execution); err != nil {
		return err
	}
	if err := validateContext(cfg.Context); err != nil {
		return err
	}
	if err := validateServer(cfg.Server); err != nil {
		return err
	}
	return nil
}

func validateCommands(c domain.CommandSettings) error {
	for _, cat := range c.EnabledCategories {
		if !cat.Valid() {
			return fmt.Errorf("commands.enabled_categories: unknown category %q", cat)
		}
	}
	return nil
}

func validateSafety(s domain.SafetySettings) error {
	switch s.Level {
	case "", domain.SafetyPermissive, domain.SafetyModerate, domain.SafetyStrict:
	default:
		return fmt.Errorf("safety.level must be permissive|moderate|strict, got %s", s.Level)
	}
	return validateDuration("safety.permission_ttl", s.PermissionTTL)
}

func validateHistory(h domain.HistorySettings) error {
	if h.MaxEntries < 0 {
		return fmt.Errorf("history.max_entries must be >= 0")
	}
	return nil
}

func validateExecution(e domain.ExecutionSettings) error {
	if err := validateDuration("execution.handler_timeout", e.HandlerTimeout); err != nil {
		return err
	}
	for key, cmd := range e.Handlers {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("execution.handlers: empty handler key")
		}
		if strings.TrimSpace(cmd) == "" {
			return fmt.Errorf("execution.handlers.%s: empty command", key)
		}
	}
	return nil
}

func validateContext(c domain.ContextConfig) error {
	if c.Default != "" && !c.Default.Valid() {
		return fmt.Errorf("context.default: unknown context %q", c.Default)
	}
	if err := validateDuration("context.validation_interval", c.ValidationInterval); err != nil {
		return err
	}
	return validateDuration("context.stale_after", c.StaleAfter)
}

func validateServer(s domain.ServerSettings) error {
	if s.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Addr); err != nil {
		return fmt.Errorf("server.addr invalid: %w", err)
	}
	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s invalid: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", field)
	}
	return nil
}
