package domain

import (
	"strconv"
	"time"
)

// ContextType is the inferred activity area of the user.
type ContextType string

const (
	ContextTasks       ContextType = "tasks"
	ContextChat        ContextType = "chat"
	ContextSettings    ContextType = "settings"
	ContextBrowser     ContextType = "browser"
	ContextDashboard   ContextType = "dashboard"
	ContextDevelopment ContextType = "development"
	ContextMedia       ContextType = "media"
	ContextUnknown     ContextType = "unknown"
)

// AllContexts lists the known context types.
func AllContexts() []ContextType {
	return []ContextType{
		ContextTasks,
		ContextChat,
		ContextSettings,
		ContextBrowser,
		ContextDashboard,
		ContextDevelopment,
		ContextMedia,
		ContextUnknown,
	}
}

// Valid reports whether ct is a known context type.
func (ct ContextType) Valid() bool {
	for _, known := range AllContexts() {
		if ct == known {
			return true
		}
	}
	return false
}

// ParseContextType maps text to a context type, falling back to unknown.
func ParseContextType(value string) ContextType {
	for _, ct := range AllContexts() {
		if string(ct) == value {
			return ct
		}
	}
	return ContextUnknown
}

// ContextSource records where a context observation came from.
type ContextSource string

const (
	SourceRoute         ContextSource = "route"
	SourceActiveElement ContextSource = "active_element"
	SourceActivity      ContextSource = "activity"
	SourceManual        ContextSource = "manual"
)

// ContextInfo is one context observation.
type ContextInfo struct {
	Type       ContextType            `json:"type"`
	Confidence float64                `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Source     ContextSource          `json:"source"`
}

// Supersedes reports whether the candidate should replace the current context.
func (c ContextInfo) Supersedes(current ContextInfo) bool {
	return c.Type != current.Type || c.Confidence > current.Confidence
}

// ContextTransition records an accepted context change.
type ContextTransition struct {
	From      ContextType `json:"from"`
	To        ContextType `json:"to"`
	Timestamp time.Time   `json:"timestamp"`
	Reason    string      `json:"reason"`
	Smooth    bool        `json:"smooth"`
}

// ContextChange is delivered to context subscribers.
type ContextChange struct {
	Previous   *ContextInfo
	Current    ContextInfo
	Transition ContextTransition
}

// SignalKind names an environment signal.
type SignalKind string

const (
	SignalRoute         SignalKind = "route"
	SignalActiveElement SignalKind = "active_element"
	SignalURL           SignalKind = "url"
	SignalTimeOfDay     SignalKind = "time_of_day"
	SignalActivity      SignalKind = "activity"
)

// Signal is one environment event pushed into the detector.
type Signal struct {
	Kind     SignalKind
	Value    string
	Metadata map[string]interface{}
}

// Environment is the latest value of every signal the detector has seen.
type Environment struct {
	Route         string
	ActiveElement string
	URL           string
	Activity      string
	Hour          int
}

// Value returns the environment value for the signal kind and whether it is set.
func (e Environment) Value(kind SignalKind) (string, bool) {
	switch kind {
	case SignalRoute:
		return e.Route, e.Route != ""
	case SignalActiveElement:
		return e.ActiveElement, e.ActiveElement != ""
	case SignalURL:
		return e.URL, e.URL != ""
	case SignalActivity:
		return e.Activity, e.Activity != ""
	case SignalTimeOfDay:
		return strconv.Itoa(e.Hour), true
	default:
		return "", false
	}
}

// ConditionOperator compares an environment value to an expected value.
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpContains    ConditionOperator = "contains"
	OpStartsWith  ConditionOperator = "starts_with"
	OpRegex       ConditionOperator = "regex"
	OpExists      ConditionOperator = "exists"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
	OpGlob        ConditionOperator = "glob"
)

// Condition is one clause of a detection rule.
type Condition struct {
	Signal   SignalKind        `yaml:"signal" json:"signal"`
	Operator ConditionOperator `yaml:"operator" json:"operator"`
	Value    string            `yaml:"value,omitempty" json:"value,omitempty"`
}

// DetectionRule maps a conjunction of conditions to a target context.
type DetectionRule struct {
	ID         string      `yaml:"id" json:"id"`
	Priority   int         `yaml:"priority" json:"priority"`
	Conditions []Condition `yaml:"conditions" json:"conditions"`
	Target     ContextType `yaml:"target" json:"target"`
	Confidence float64     `yaml:"confidence" json:"confidence"`
	Disabled   bool        `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}
