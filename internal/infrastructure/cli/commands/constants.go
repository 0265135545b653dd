package commands

// CLI-specific constants
const (
	// DefaultSessionID tags commands issued from the terminal.
	DefaultSessionID = "cli"

	// DefaultRecentCommands is how many recent commands feed suggestions.
	DefaultRecentCommands = 3

	DefaultAuditLimit = 20

	TimestampFormat = "2006-01-02 15:04:05"
)

// Error messages
const (
	ErrConfigLoaderUnavailable  = "config loader unavailable"
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrHistoryStoreUnavailable  = "history store unavailable"
	ErrCacheStoreUnavailable    = "suggestion cache is in-memory only"
)

// Success messages
const (
	MsgConfigurationValid = "Configuration valid"
	MsgNoHistoryRecorded  = "No history recorded yet."
	MsgNoPendingRequests  = "No pending permission requests."
	MsgNoAuditEntries     = "Audit log is empty."
)
