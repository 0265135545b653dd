package domain

import "time"

// SuggestionCategory names the stage that produced a suggestion.
type SuggestionCategory string

const (
	SuggestionFrequent   SuggestionCategory = "frequent"
	SuggestionContextual SuggestionCategory = "contextual"
	SuggestionTimeBased  SuggestionCategory = "time_based"
	SuggestionPreference SuggestionCategory = "preference"
	SuggestionRelated    SuggestionCategory = "related"
	SuggestionNewFeature SuggestionCategory = "new_feature"
)

// ActivityLevel is a coarse measure of how busy the user is.
type ActivityLevel string

const (
	ActivityLow    ActivityLevel = "low"
	ActivityMedium ActivityLevel = "medium"
	ActivityHigh   ActivityLevel = "high"
)

// SmartSuggestion is a ranked recommendation.
type SmartSuggestion struct {
	ID          string                 `json:"id"`
	Command     string                 `json:"command"`
	Description string                 `json:"description"`
	Confidence  float64                `json:"confidence"`
	Reason      string                 `json:"reason"`
	Context     ContextType            `json:"context"`
	Category    SuggestionCategory     `json:"category"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	ExpiresAt   *time.Time             `json:"expires_at,omitempty"`
}

// SuggestRequest is the input to the suggestion engine.
type SuggestRequest struct {
	UserID         string
	Context        ContextType
	RecentCommands []string
	Preferences    UserPreferenceProfile
	Time           time.Time
	Activity       ActivityLevel
}
