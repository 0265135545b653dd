package helpers

import (
	"fmt"
	"io"
	"strings"

	"github.com/doeshing/vocmd/internal/domain"
)

// RenderResult prints a dispatcher result.
func RenderResult(out io.Writer, res domain.CommandResult) {
	status := OutcomeStyle(res.Outcome).Render(strings.ToUpper(string(res.Outcome)))
	fmt.Fprintf(out, "%s %s\n", status, res.Message)

	if res.CommandID != "" {
		fmt.Fprintf(out, "Command: %s (confidence %.2f)\n", CommandStyle.Render(res.CommandID), res.Confidence)
	}
	if res.Risk != "" && res.Risk != domain.RiskLow {
		fmt.Fprintf(out, "Risk: %s\n", RiskStyle(res.Risk).Render(strings.ToUpper(string(res.Risk))))
	}
	if res.PermissionID != "" {
		fmt.Fprintf(out, "Permission: %s\n", res.PermissionID)
		if res.Outcome == domain.OutcomePendingConfirmation {
			fmt.Fprintln(out, MutedStyle.Render("Approve with: vocmd permissions approve "+res.PermissionID))
		}
	}
	for _, hint := range res.Hints {
		fmt.Fprintf(out, " - %s\n", hint)
	}
	renderData(out, res.Data)
}

func renderData(out io.Writer, data map[string]interface{}) {
	if stdout, ok := data["stdout"].(string); ok && strings.TrimSpace(stdout) != "" {
		fmt.Fprintln(out, "\nstdout:")
		fmt.Fprintln(out, strings.TrimRight(stdout, "\n"))
	}
	if stderr, ok := data["stderr"].(string); ok && strings.TrimSpace(stderr) != "" {
		fmt.Fprintln(out, "\nstderr:")
		fmt.Fprintln(out, strings.TrimRight(stderr, "\n"))
	}
	if warnings, ok := data["warnings"].([]string); ok {
		for _, w := range warnings {
			fmt.Fprintf(out, "%s %s\n", WarnStyle.Render("warning:"), w)
		}
	}
}
