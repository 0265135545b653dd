package domain

import "time"

// HistoryRecord captures one terminal dispatcher outcome.
type HistoryRecord struct {
	Timestamp  time.Time   `json:"timestamp"`
	Text       string      `json:"text"`
	CommandID  string      `json:"command_id"`
	Context    ContextType `json:"context"`
	SessionID  string      `json:"session_id"`
	UserID     string      `json:"user_id"`
	Outcome    Outcome     `json:"outcome"`
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	RiskLevel  RiskLevel   `json:"risk_level"`
	Confidence float64     `json:"confidence"`
	DurationMS int64       `json:"duration_ms"`
}

// CommandStats summarizes history.
type CommandStats struct {
	Total      int
	Succeeded  int
	ByOutcome  map[Outcome]int
	ByCommand  map[string]int
	TopCommand string
}

// SummarizeHistory tallies outcomes and command usage.
func SummarizeHistory(records []HistoryRecord) CommandStats {
	stats := CommandStats{
		ByOutcome: map[Outcome]int{},
		ByCommand: map[string]int{},
	}
	best := 0
	for _, rec := range records {
		stats.Total++
		if rec.Success {
			stats.Succeeded++
		}
		stats.ByOutcome[rec.Outcome]++
		if rec.CommandID == "" {
			continue
		}
		stats.ByCommand[rec.CommandID]++
		n := stats.ByCommand[rec.CommandID]
		if n > best || (n == best && rec.CommandID < stats.TopCommand) {
			best, stats.TopCommand = n, rec.CommandID
		}
	}
	return stats
}
