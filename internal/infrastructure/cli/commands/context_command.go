package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/vocmd/internal/app"
	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/infrastructure/cli/helpers"
)

// NewContextCommand creates the context command with all subcommands
func NewContextCommand(container *app.Container) *cobra.Command {
	contextCmd := &cobra.Command{
		Use:   "context",
		Short: "Detect, set or inspect the active context",
		RunE: func(cmd *cobra.Command, args []string) error {
			return detectContext(cmd.OutOrStdout(), container)
		},
	}

	contextCmd.AddCommand(
		newContextDetectCommand(container),
		newContextSetCommand(container),
		newContextCommandsCommand(container),
		newContextRulesCommand(container),
	)
	return contextCmd
}

func newContextDetectCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Detect the context from environment signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return detectContext(cmd.OutOrStdout(), container)
		},
	}
}

func newContextSetCommand(container *app.Container) *cobra.Command {
	var persist bool

	cmd := &cobra.Command{
		Use:   "set <context>",
		Short: "Force the active context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := helpers.ParseContextFlag(args[0])
			if err != nil {
				return err
			}
			info := container.Detector.ManuallySetContext(ct, 1, map[string]interface{}{"source": "cli"})
			settings := container.Modes.Activate(ct)
			if persist {
				if err := updateConfiguration(cmd.Context(), container, func(cfg *domain.Config) {
					cfg.Context.Default = ct
				}); err != nil {
					return err
				}
			}
			renderContext(cmd.OutOrStdout(), info, settings)
			return nil
		},
	}

	cmd.Flags().BoolVar(&persist, "persist", true, "Save as the default context for future invocations")
	return cmd
}

func newContextCommandsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "commands [context]",
		Short: "List the commands available in a context",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct := container.Modes.ActiveContext()
			if len(args) == 1 {
				parsed, err := helpers.ParseContextFlag(args[0])
				if err != nil {
					return err
				}
				ct = parsed
			}
			available := container.Modes.AvailableCommands(container.Config.User.ID, ct)
			sort.Strings(available)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, helpers.TitleStyle.Render(fmt.Sprintf("Commands available in %s (%d)", ct, len(available))))
			for _, id := range available {
				def, _ := container.Catalog.Lookup(id)
				fmt.Fprintf(out, "  %-16s %s\n", id, helpers.MutedStyle.Render(def.Description))
			}
			return nil
		},
	}
}

func newContextRulesCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List context detection rules by priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, rule := range container.Detector.Rules() {
				state := ""
				if rule.Disabled {
					state = helpers.MutedStyle.Render(" (disabled)")
				}
				var conds []string
				for _, c := range rule.Conditions {
					conds = append(conds, strings.TrimSpace(fmt.Sprintf("%s %s %s", c.Signal, c.Operator, c.Value)))
				}
				fmt.Fprintf(out, "%3d  %-18s -> %-11s %.2f  %s%s\n",
					rule.Priority, rule.ID, rule.Target, rule.Confidence, strings.Join(conds, " AND "), state)
			}
			return nil
		},
	}
}

func detectContext(out io.Writer, container *app.Container) error {
	info := container.DetectContext()
	renderContext(out, info, container.Modes.SettingsFor(info.Type))
	return nil
}

func renderContext(out io.Writer, info domain.ContextInfo, settings domain.ContextualSettings) {
	fmt.Fprintf(out, "%s %s (confidence %.2f, source %s, %s)\n",
		helpers.TitleStyle.Render("Context:"),
		info.Type,
		info.Confidence,
		valueOr(string(info.Source), "none"),
		helpers.Ago(info.Timestamp))
	if len(info.Metadata) > 0 {
		fmt.Fprintf(out, "Metadata: %s\n", helpers.FormatParams(info.Metadata))
	}
	enabled := append([]string(nil), settings.EnabledCommands...)
	sort.Strings(enabled)
	if len(enabled) > 0 {
		fmt.Fprintf(out, "Enabled commands: %s\n", strings.Join(enabled, ", "))
	}
	fmt.Fprintf(out, "Voice: %s, %s  Confirmations: %t  Hints: %t\n",
		valueOr(settings.Voice.Verbosity, "normal"),
		valueOr(settings.Voice.Tone, "neutral"),
		settings.ShowConfirmations,
		settings.ShowHints)
}
