package domain

import "time"

// AllCommands in an enabled set makes every catalog command available.
const AllCommands = "*"

// VoiceBehavior holds output knobs for a context.
type VoiceBehavior struct {
	Verbosity  string  `yaml:"verbosity" json:"verbosity"`
	Tone       string  `yaml:"tone" json:"tone"`
	SpeechRate float64 `yaml:"speech_rate" json:"speech_rate"`
	AutoListen bool    `yaml:"auto_listen" json:"auto_listen"`
}

// ContextualSettings is the per-context command allow-list and behavior.
type ContextualSettings struct {
	Context           ContextType   `json:"context"`
	EnabledCommands   []string      `json:"enabled_commands"`
	DisabledCommands  []string      `json:"disabled_commands"`
	Voice             VoiceBehavior `json:"voice"`
	ShowConfirmations bool          `json:"show_confirmations"`
	ShowHints         bool          `json:"show_hints"`
	Priority          int           `json:"priority"`
	Active            bool          `json:"active"`
}

// Allows reports whether the command is enabled and not disabled.
func (s ContextualSettings) Allows(command string) bool {
	if contains(s.DisabledCommands, command) {
		return false
	}
	return contains(s.EnabledCommands, command) || contains(s.EnabledCommands, AllCommands)
}

// ContextSuggestion is a curated hint shipped with a context.
type ContextSuggestion struct {
	Command     string  `json:"command"`
	Phrase      string  `json:"phrase"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// UsagePattern tracks how one command fares for one user in one context.
type UsagePattern struct {
	Count       int       `json:"count"`
	Successes   int       `json:"successes"`
	Failures    int       `json:"failures"`
	LastUsed    time.Time `json:"last_used"`
	SuccessRate float64   `json:"success_rate"`

	// Policy interruptions. They never move Count or SuccessRate.
	Blocked       int `json:"blocked,omitempty"`
	Confirmations int `json:"confirmations,omitempty"`
	Denials       int `json:"denials,omitempty"`
}

// UserPreferenceProfile is the adaptive per-user, per-context profile.
type UserPreferenceProfile struct {
	UserID           string                  `json:"user_id"`
	Context          ContextType             `json:"context"`
	FavoriteCommands []string                `json:"favorite_commands"`
	AvoidedCommands  []string                `json:"avoided_commands"`
	Usage            map[string]UsagePattern `json:"usage"`
	AdaptiveBehavior bool                    `json:"adaptive_behavior"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// NewUserPreferenceProfile returns an empty profile with adaptive behavior on.
func NewUserPreferenceProfile(userID string, ct ContextType) UserPreferenceProfile {
	return UserPreferenceProfile{
		UserID:           userID,
		Context:          ct,
		Usage:            map[string]UsagePattern{},
		AdaptiveBehavior: true,
	}
}

// IsFavorite reports whether the command is a favorite.
func (p UserPreferenceProfile) IsFavorite(command string) bool {
	return contains(p.FavoriteCommands, command)
}

// IsAvoided reports whether the command is avoided.
func (p UserPreferenceProfile) IsAvoided(command string) bool {
	return contains(p.AvoidedCommands, command)
}

// Clone returns a deep copy safe to hand to other goroutines.
func (p UserPreferenceProfile) Clone() UserPreferenceProfile {
	out := p
	out.FavoriteCommands = append([]string(nil), p.FavoriteCommands...)
	out.AvoidedCommands = append([]string(nil), p.AvoidedCommands...)
	out.Usage = make(map[string]UsagePattern, len(p.Usage))
	for k, v := range p.Usage {
		out.Usage[k] = v
	}
	return out
}

// CommandsChanged is delivered when a context's effective allow-list changes.
type CommandsChanged struct {
	Context ContextType
	Enabled []string
	Reason  string
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
