package domain

import (
	"context"
	"time"
)

// Category groups command definitions by the capability they drive.
type Category string

const (
	CategoryBrowser     Category = "browser"
	CategorySystem      Category = "system"
	CategoryApplication Category = "application"
	CategoryFilesystem  Category = "filesystem"
	CategoryWeb         Category = "web"
	CategoryTasks       Category = "tasks"
	CategoryChat        Category = "chat"
	CategoryMedia       Category = "media"
	CategorySettings    Category = "settings"
)

// AllCategories lists every known category in display order.
func AllCategories() []Category {
	return []Category{
		CategoryBrowser,
		CategorySystem,
		CategoryApplication,
		CategoryFilesystem,
		CategoryWeb,
		CategoryTasks,
		CategoryChat,
		CategoryMedia,
		CategorySettings,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// ParamType is the semantic type of a command parameter.
type ParamType string

const (
	ParamString          ParamType = "string"
	ParamNumber          ParamType = "number"
	ParamBoolean         ParamType = "boolean"
	ParamURL             ParamType = "url"
	ParamFilePath        ParamType = "file_path"
	ParamApplicationName ParamType = "application_name"
)

// Valid reports whether the parameter type is one of the known semantic types.
func (p ParamType) Valid() bool {
	switch p {
	case ParamString, ParamNumber, ParamBoolean, ParamURL, ParamFilePath, ParamApplicationName:
		return true
	default:
		return false
	}
}

// ParamSpec describes one parameter a command accepts.
type ParamSpec struct {
	Name        string    `yaml:"name" json:"name"`
	Type        ParamType `yaml:"type" json:"type"`
	Required    bool      `yaml:"required" json:"required"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
}

// CommandDefinition is the immutable description of a recognizable directive.
type CommandDefinition struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	Category    Category    `yaml:"category" json:"category"`
	Patterns    []string    `yaml:"patterns" json:"patterns"`
	Parameters  []ParamSpec `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Handler     string      `yaml:"handler" json:"handler"`
	Sensitive   bool        `yaml:"sensitive,omitempty" json:"sensitive,omitempty"`
	Examples    []string    `yaml:"examples,omitempty" json:"examples,omitempty"`
}

// Param returns the definition of the named parameter.
func (d CommandDefinition) Param(name string) (ParamSpec, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// ParsedCommand is the result of matching free text against the catalog.
type ParsedCommand struct {
	Definition CommandDefinition
	Parameters map[string]interface{}
	Confidence float64
	RawText    string
}

// CommandContext carries caller-supplied state for one execution.
type CommandContext struct {
	Context   ContextType
	SessionID string
	UserID    string
	Metadata  map[string]interface{}
	// Timeout bounds the handler invocation; zero uses the configured default.
	Timeout time.Duration
}

// Outcome classifies the terminal state of an execution.
type Outcome string

const (
	OutcomeExecuted            Outcome = "executed"
	OutcomeNotUnderstood       Outcome = "not_understood"
	OutcomeUnavailable         Outcome = "unavailable"
	OutcomeBlocked             Outcome = "blocked"
	OutcomePendingConfirmation Outcome = "pending_confirmation"
	OutcomeDenied              Outcome = "denied"
	OutcomeHandlerFailed       Outcome = "handler_failed"
	OutcomeServiceUnavailable  Outcome = "service_unavailable"
)

// CommandResult is returned by every public entry point of the dispatcher.
type CommandResult struct {
	Success      bool                   `json:"success"`
	Message      string                 `json:"message"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Outcome      Outcome                `json:"outcome,omitempty"`
	CommandID    string                 `json:"command_id,omitempty"`
	Confidence   float64                `json:"confidence,omitempty"`
	Risk         RiskLevel              `json:"risk,omitempty"`
	PermissionID string                 `json:"permission_id,omitempty"`
	Hints        []string               `json:"hints,omitempty"`
}

// CommandService exposes the use-case boundary for executing text commands.
type CommandService interface {
	Execute(ctx context.Context, text string, cctx CommandContext) CommandResult
}
