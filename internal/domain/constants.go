package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Parser constants
const (
	// MinParseConfidence is the score below which input is "not understood"
	MinParseConfidence = 0.3
	// SignificantWordLength is the minimum length of a word that counts for matching
	SignificantWordLength = 3
)

// Policy constants
const (
	// DefaultPermissionTTL bounds both open requests and approval grants
	DefaultPermissionTTL = 24 * time.Hour
	// DefaultAuditCapacity is the audit ring size before trimming
	DefaultAuditCapacity = 1000
	// DefaultAuditRetain is how many of the newest audit entries survive a trim
	DefaultAuditRetain = 500
)

// Context constants
const (
	// DefaultTransitionHistory caps the context transition log
	DefaultTransitionHistory = 50
	// DefaultValidationInterval is how often stale contexts are re-derived
	DefaultValidationInterval = 5 * time.Second
	// DefaultStaleAfter is how long a context may go untouched
	DefaultStaleAfter = 30 * time.Second
)

// Suggestion constants
const (
	// MaxSuggestions bounds every suggestion list
	MaxSuggestions = 5
	// SuggestionCacheTTL is how long identical suggestion requests are served from cache
	SuggestionCacheTTL = 5 * time.Minute
	// SuggestionRepeatWindow suppresses repeat suggestions per user and context
	SuggestionRepeatWindow = time.Hour
	// SuggestionHistoryCapacity caps the rolling suggested-command log
	SuggestionHistoryCapacity = 200
)

// Execution constants
const (
	// DefaultHistoryEntries is the in-memory command history cap
	DefaultHistoryEntries = 100
	// DefaultHandlerTimeout bounds a single handler invocation
	DefaultHandlerTimeout = 30 * time.Second
)

// History constants
const (
	// DefaultHistoryLimit is the default number of history records to display
	DefaultHistoryLimit = 20
	// DefaultHistorySearchLimit is the default number of search results to return
	DefaultHistorySearchLimit = 50
	// MaxHistoryAnalysisRecords is the maximum number of records to analyze
	MaxHistoryAnalysisRecords = 1000
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
