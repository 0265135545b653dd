package domain

// Config mirrors ~/.vocmd/config.yaml.
type Config struct {
	ConfigFormatVersion string            `yaml:"config_format_version" toml:"config_format_version"`
	User                UserSettings      `yaml:"user" toml:"user"`
	Commands            CommandSettings   `yaml:"commands" toml:"commands"`
	Safety              SafetySettings    `yaml:"safety" toml:"safety"`
	History             HistorySettings   `yaml:"history" toml:"history"`
	Learning            LearningSettings  `yaml:"learning" toml:"learning"`
	Execution           ExecutionSettings `yaml:"execution" toml:"execution"`
	Context             ContextConfig     `yaml:"context" toml:"context"`
	Server              ServerSettings    `yaml:"server" toml:"server"`
}

// UserSettings identifies the local user.
type UserSettings struct {
	ID string `yaml:"id" toml:"id"`
}

// CommandSettings controls the catalog.
type CommandSettings struct {
	EnabledCategories []Category `yaml:"enabled_categories" toml:"enabled_categories"`
	CatalogFile       string     `yaml:"catalog_file" toml:"catalog_file"`
}

// SafetySettings defines policy engine behavior.
type SafetySettings struct {
	Level                    SafetyLevel `yaml:"level" toml:"level"`
	ConfirmSensitiveCommands bool        `yaml:"confirm_sensitive_commands" toml:"confirm_sensitive_commands"`
	ConfirmSystemCommands    bool        `yaml:"confirm_system_commands" toml:"confirm_system_commands"`
	RulesFile                string      `yaml:"rules_file" toml:"rules_file"`
	WatchRules               bool        `yaml:"watch_rules" toml:"watch_rules"`
	PermissionTTL            string      `yaml:"permission_ttl" toml:"permission_ttl"`
}

// HistorySettings controls command history.
type HistorySettings struct {
	MaxEntries int    `yaml:"max_entries" toml:"max_entries"`
	Database   string `yaml:"database" toml:"database"`
}

// LearningSettings controls adaptive preference learning.
type LearningSettings struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Store   string `yaml:"store" toml:"store"`
}

// ExecutionSettings controls handler invocation.
type ExecutionSettings struct {
	HandlerTimeout string            `yaml:"handler_timeout" toml:"handler_timeout"`
	Shell          string            `yaml:"shell" toml:"shell"`
	DryRun         bool              `yaml:"dry_run" toml:"dry_run"`
	Handlers       map[string]string `yaml:"handlers" toml:"handlers"`
}

// ContextConfig controls the context detector.
type ContextConfig struct {
	Default            ContextType `yaml:"default" toml:"default"`
	ValidationInterval string      `yaml:"validation_interval" toml:"validation_interval"`
	StaleAfter         string      `yaml:"stale_after" toml:"stale_after"`
}

// ServerSettings controls the HTTP API.
type ServerSettings struct {
	Addr string `yaml:"addr" toml:"addr"`
}
