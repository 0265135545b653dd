package domain

import (
	"strings"
	"time"
)

// RiskLevel orders policy severities.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank returns the escalation order of the level (unknown values rank lowest).
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// Raise returns the more severe of the two levels.
func (r RiskLevel) Raise(other RiskLevel) RiskLevel {
	if other.Rank() > r.Rank() {
		return other
	}
	return r
}

// ParseRiskLevel maps free-form text to a level, defaulting to low.
func ParseRiskLevel(value string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "medium":
		return RiskMedium
	case "high":
		return RiskHigh
	case "critical":
		return RiskCritical
	default:
		return RiskLow
	}
}

// RuleAction is what a matching policy rule asks for.
type RuleAction string

const (
	RuleBlock               RuleAction = "block"
	RuleWarn                RuleAction = "warn"
	RuleRequireConfirmation RuleAction = "require_confirmation"
)

// PolicyRule is one ordered safety rule.
type PolicyRule struct {
	ID          string     `yaml:"id" json:"id"`
	Description string     `yaml:"description" json:"description"`
	Patterns    []string   `yaml:"patterns" json:"patterns"`
	Action      RuleAction `yaml:"action" json:"action"`
	Severity    RiskLevel  `yaml:"severity" json:"severity"`
}

// SafetyLevel is the global strictness knob.
type SafetyLevel string

const (
	SafetyPermissive SafetyLevel = "permissive"
	SafetyModerate   SafetyLevel = "moderate"
	SafetyStrict     SafetyLevel = "strict"
)

// Decision is the outcome class of a verdict.
type Decision string

const (
	DecisionAllow               Decision = "allow"
	DecisionBlock               Decision = "block"
	DecisionRequireConfirmation Decision = "require_confirmation"
)

func (d Decision) rank() int {
	switch d {
	case DecisionRequireConfirmation:
		return 1
	case DecisionBlock:
		return 2
	default:
		return 0
	}
}

// Stricter reports whether d is stricter than other.
func (d Decision) Stricter(other Decision) bool {
	return d.rank() > other.rank()
}

// Verdict is the policy engine's answer for one parsed command.
type Verdict struct {
	Decision     Decision
	Risk         RiskLevel
	Reason       string
	Warnings     []string
	MatchedRules []string
	Permission   *PermissionRequest
}

// Allowed reports whether execution may proceed.
func (v Verdict) Allowed() bool {
	return v.Decision == DecisionAllow
}

// PermissionRequest is an open confirmation awaiting approve/deny.
type PermissionRequest struct {
	ID          string                 `json:"id"`
	CommandText string                 `json:"command_text"`
	Action      string                 `json:"action"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Risk        RiskLevel              `json:"risk"`
	Reason      string                 `json:"reason"`
	SessionID   string                 `json:"session_id,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
	Context     ContextType            `json:"context,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	ExpiresAt   time.Time              `json:"expires_at"`
	Approver    string                 `json:"approver,omitempty"`
}

// Expired reports whether the request is past its TTL at the given instant.
func (p PermissionRequest) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// PermissionGrant remembers an approval for a bounded window.
type PermissionGrant struct {
	Key       string    `json:"key"`
	Action    string    `json:"action"`
	Approver  string    `json:"approver"`
	GrantedAt time.Time `json:"granted_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the grant still authorizes execution.
func (g PermissionGrant) Valid(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}

// AuditResult is the recorded outcome of an evaluation.
type AuditResult string

const (
	AuditAllowed              AuditResult = "allowed"
	AuditBlocked              AuditResult = "blocked"
	AuditRequiresConfirmation AuditResult = "requires_confirmation"
	AuditApproved             AuditResult = "approved"
	AuditDenied               AuditResult = "denied"
	AuditExpired              AuditResult = "expired"
)

// AuditEntry is an append-only log record.
type AuditEntry struct {
	Timestamp   time.Time   `json:"timestamp"`
	CommandText string      `json:"command_text"`
	Action      string      `json:"action"`
	Risk        RiskLevel   `json:"risk"`
	Result      AuditResult `json:"result"`
	Reason      string      `json:"reason"`
	SessionID   string      `json:"session_id,omitempty"`
}
