// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// The command pipeline (parse, policy, dispatch) depends only on these
// abstractions; storage, handler actuation, prompting and configuration are
// provided by adapters in the infrastructure layer or by the host application.
package ports

import (
	"context"
	"time"

	"github.com/doeshing/vocmd/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.vocmd/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// CommandCatalog is the registry of command definitions.
type CommandCatalog interface {
	List() []domain.CommandDefinition
	Lookup(id string) (domain.CommandDefinition, bool)
}

// CommandParser turns free text into a parsed command.
// The boolean is false when the input could not be understood.
type CommandParser interface {
	Parse(text string) (domain.ParsedCommand, bool)
}

// HintProvider offers guidance for input the parser did not understand.
type HintProvider interface {
	Hints(text string) []string
}

// PolicyEngine evaluates parsed commands and owns the pending-approval queue.
type PolicyEngine interface {
	Evaluate(cmd domain.ParsedCommand, cctx domain.CommandContext) domain.Verdict
	ApprovePermission(id, approver string) (domain.PermissionRequest, error)
	DenyPermission(id string) (domain.PermissionRequest, error)
	PendingPermissions() []domain.PermissionRequest
}

// PermissionStore persists open permission requests and approval grants.
type PermissionStore interface {
	PutRequest(domain.PermissionRequest) error
	Request(id string) (domain.PermissionRequest, bool, error)
	DeleteRequest(id string) error
	Requests() ([]domain.PermissionRequest, error)
	PutGrant(domain.PermissionGrant) error
	Grant(key string) (domain.PermissionGrant, bool, error)
	DeleteGrant(key string) error
}

// AuditSink receives every audit entry for durable storage.
type AuditSink interface {
	AppendAudit(domain.AuditEntry) error
}

// AuditRepository reads persisted audit entries.
type AuditRepository interface {
	AuditSink
	AuditEntries(limit int) ([]domain.AuditEntry, error)
}

// HandlerRegistry resolves a handler key and performs the actual OS actuation.
type HandlerRegistry interface {
	Invoke(ctx context.Context, handlerKey string, params map[string]interface{}, cctx domain.CommandContext) (domain.CommandResult, error)
}

// ModeManager narrows command availability by context and learns from outcomes.
type ModeManager interface {
	IsCommandAvailableFor(userID, command string, ct domain.ContextType) bool
	RecordOutcome(userID string, ct domain.ContextType, command string, success bool) error
	RecordInterruption(userID string, ct domain.ContextType, command string, outcome domain.Outcome) error
}

// SuggestionInvalidator drops cached suggestions after the user acts.
type SuggestionInvalidator interface {
	Invalidate(ct domain.ContextType)
}

// SuggestionCache stores ranked suggestion lists for a short TTL.
type SuggestionCache interface {
	Get(key string) ([]domain.SmartSuggestion, bool)
	Set(key string, items []domain.SmartSuggestion, ttl time.Duration)
	Invalidate(prefix string)
}

// HistoryRepository persists command history.
type HistoryRepository interface {
	Save(domain.HistoryRecord) error
	Records(limit int, search string) ([]domain.HistoryRecord, error)
	Clear() error
	ExportJSON(dest string) error
}

// PreferenceStore is the key-value persistence boundary for user profiles.
type PreferenceStore interface {
	Load(userID string, ct domain.ContextType) (domain.UserPreferenceProfile, bool, error)
	Save(domain.UserPreferenceProfile) error
}

// ConfirmationPrompter asks a human to approve a pending request.
type ConfirmationPrompter interface {
	Confirm(req domain.PermissionRequest) (bool, error)
	Enabled() bool
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
