package domain

import "time"

// IsCategoryEnabled reports whether commands of the category may run.
// An empty list enables every category.
func (c *Config) IsCategoryEnabled(category Category) bool {
	if len(c.Commands.EnabledCategories) == 0 {
		return true
	}
	for _, enabled := range c.Commands.EnabledCategories {
		if enabled == category {
			return true
		}
	}
	return false
}

// EnableCategory adds the category to the enabled set if missing.
func (c *Config) EnableCategory(category Category) {
	if len(c.Commands.EnabledCategories) == 0 || c.IsCategoryEnabled(category) {
		return
	}
	c.Commands.EnabledCategories = append(c.Commands.EnabledCategories, category)
}

// DisableCategory removes the category from the enabled set.
// Disabling from the implicit "all" state materializes the remaining categories.
func (c *Config) DisableCategory(category Category) {
	current := c.Commands.EnabledCategories
	if len(current) == 0 {
		current = AllCategories()
	}
	var kept []Category
	for _, cat := range current {
		if cat != category {
			kept = append(kept, cat)
		}
	}
	c.Commands.EnabledCategories = kept
}

// PermissionTTLDuration returns the permission window, defaulting to 24h.
func (c *Config) PermissionTTLDuration() time.Duration {
	return parseDurationOr(c.Safety.PermissionTTL, DefaultPermissionTTL)
}

// HandlerTimeoutDuration returns the handler timeout, defaulting to 30s.
func (c *Config) HandlerTimeoutDuration() time.Duration {
	return parseDurationOr(c.Execution.HandlerTimeout, DefaultHandlerTimeout)
}

// ValidationIntervalDuration returns the detector staleness tick.
func (c *Config) ValidationIntervalDuration() time.Duration {
	return parseDurationOr(c.Context.ValidationInterval, DefaultValidationInterval)
}

// StaleAfterDuration returns the context staleness threshold.
func (c *Config) StaleAfterDuration() time.Duration {
	return parseDurationOr(c.Context.StaleAfter, DefaultStaleAfter)
}

// HistoryLimit returns the command history cap, in memory and on disk.
func (c *Config) HistoryLimit() int {
	if c.History.MaxEntries <= 0 {
		return DefaultHistoryEntries
	}
	return c.History.MaxEntries
}

// HandlerCommand returns the host command line bound to a handler key.
func (c *Config) HandlerCommand(key string) (string, bool) {
	cmd, ok := c.Execution.Handlers[key]
	return cmd, ok && cmd != ""
}

// SetHandlerCommand binds a handler key to a host command line.
func (c *Config) SetHandlerCommand(key, command string) {
	if c.Execution.Handlers == nil {
		c.Execution.Handlers = map[string]string{}
	}
	if command == "" {
		delete(c.Execution.Handlers, key)
		return
	}
	c.Execution.Handlers[key] = command
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
