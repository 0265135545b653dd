package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/doeshing/vocmd/internal/domain"
)

// ====================================================================================
// Flag Helpers
// ====================================================================================

// ParseContextFlag validates a --context value. Empty means "use the active context".
func ParseContextFlag(value string) (domain.ContextType, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", nil
	}
	ct := domain.ContextType(value)
	if !ct.Valid() {
		return "", fmt.Errorf("unknown context %q (expected one of %s)", value, ContextNames())
	}
	return ct, nil
}

// ContextNames lists the known context types for help text.
func ContextNames() string {
	names := make([]string, 0, len(domain.AllContexts()))
	for _, ct := range domain.AllContexts() {
		names = append(names, string(ct))
	}
	return strings.Join(names, ", ")
}

// ParseActivityFlag validates an --activity value, defaulting to medium.
func ParseActivityFlag(value string) (domain.ActivityLevel, error) {
	switch domain.ActivityLevel(strings.ToLower(strings.TrimSpace(value))) {
	case "", domain.ActivityMedium:
		return domain.ActivityMedium, nil
	case domain.ActivityLow:
		return domain.ActivityLow, nil
	case domain.ActivityHigh:
		return domain.ActivityHigh, nil
	default:
		return "", fmt.Errorf("unknown activity level %q", value)
	}
}

// ====================================================================================
// Output Helpers
// ====================================================================================

// PrintJSON writes v as indented JSON.
func PrintJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Ago renders a timestamp relative to now ("3 minutes ago").
func Ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// Percent formats part/total as a percentage, 0 when total is 0.
func Percent(part, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}

// CommandCount pairs a command with its occurrence count.
type CommandCount struct {
	Command string
	Count   int
}

// TopCounts returns the n most frequent entries, ties broken alphabetically.
func TopCounts(counts map[string]int, n int) []CommandCount {
	list := make([]CommandCount, 0, len(counts))
	for cmd, count := range counts {
		list = append(list, CommandCount{Command: cmd, Count: count})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].Command < list[j].Command
	})
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	return list
}

// FormatParams renders handler parameters as key=value pairs in key order.
func FormatParams(params map[string]interface{}) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, " ")
}
