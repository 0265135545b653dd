package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doeshing/vocmd/internal/app"
	"github.com/doeshing/vocmd/internal/infrastructure/cli/helpers"
)

// NewAuditCommand creates the audit command
func NewAuditCommand(container *app.Container) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show policy decisions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := container.AuditEntries(limit)
			if err != nil {
				return fmt.Errorf("failed to read audit log: %w", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return helpers.PrintJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, MsgNoAuditEntries)
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s | %-21s | %-8s | %-14s | %s\n",
					e.Timestamp.Format(TimestampFormat),
					e.Result,
					helpers.RiskStyle(e.Risk).Render(string(e.Risk)),
					valueOr(e.Action, "-"),
					e.Reason)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", DefaultAuditLimit, "Max entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}
