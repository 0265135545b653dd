package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/vocmd/internal/app"
	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/infrastructure/cli/commands"
	"github.com/doeshing/vocmd/internal/infrastructure/cli/helpers"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
	Ephemeral  bool
}

// NewRootCmd wires the cobra root command. The returned func releases the
// container's stores and must be called once the command has finished.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, func() error, error) {
	container, err := app.BuildContainer(ctx, app.Options{
		Verbose:    opts.Verbose,
		ConfigPath: opts.ConfigPath,
		InMemory:   opts.Ephemeral,
	})
	if err != nil {
		return nil, nil, err
	}
	container.Dispatcher.Prompter = NewPrompter(nil, nil)

	root := &cobra.Command{
		Use:   "vocmd [command text]",
		Short: "vocmd - context-aware command dispatcher",
		Long:  "vocmd turns short natural-language commands into safe, context-aware actions.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runExec(cmd, container, args, defaultExecOptions())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newExecCommand(container))
	root.AddCommand(newSuggestCommand(container))
	root.AddCommand(commands.NewContextCommand(container))
	root.AddCommand(commands.NewPermissionsCommand(container))
	root.AddCommand(commands.NewAuditCommand(container))
	root.AddCommand(commands.NewHistoryCommand(container))
	root.AddCommand(commands.NewCatalogCommand(container))
	root.AddCommand(commands.NewConfigCommand(container))
	root.AddCommand(commands.NewCacheCommand(container))
	root.AddCommand(commands.NewServeCommand(container))
	root.AddCommand(commands.NewDoctorCommand(container))
	root.AddCommand(commands.NewVersionCommand())
	return root, container.Close, nil
}

type execOptions struct {
	contextName string
	sessionID   string
	detect      bool
	asJSON      bool
	timeout     time.Duration
}

func defaultExecOptions() execOptions {
	return execOptions{sessionID: commands.DefaultSessionID, detect: true}
}

func newExecCommand(container *app.Container) *cobra.Command {
	opts := defaultExecOptions()

	cmd := &cobra.Command{
		Use:   "exec [command text]",
		Short: "Parse, check and run a command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, container, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.contextName, "context", "c", "", "Context to run in ("+helpers.ContextNames()+")")
	cmd.Flags().StringVar(&opts.sessionID, "session", opts.sessionID, "Session identifier recorded with the command")
	cmd.Flags().BoolVar(&opts.detect, "detect", opts.detect, "Detect the context from the environment when --context is empty")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Handler timeout (default from config)")
	return cmd
}

func runExec(cmd *cobra.Command, container *app.Container, args []string, opts execOptions) error {
	ct, err := helpers.ParseContextFlag(opts.contextName)
	if err != nil {
		return err
	}
	if ct == "" && opts.detect {
		ct = container.DetectContext().Type
	}
	cctx := container.CommandContext(ct, opts.sessionID)
	cctx.Timeout = opts.timeout

	res := container.Dispatcher.Execute(cmd.Context(), strings.Join(args, " "), cctx)
	if opts.asJSON {
		if err := helpers.PrintJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		helpers.RenderResult(cmd.OutOrStdout(), res)
	}
	return outcomeError(res)
}

func newSuggestCommand(container *app.Container) *cobra.Command {
	var (
		contextName string
		activity    string
		recentCount int
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Show ranked command suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := helpers.ParseContextFlag(contextName)
			if err != nil {
				return err
			}
			level, err := helpers.ParseActivityFlag(activity)
			if err != nil {
				return err
			}
			if ct == "" {
				ct = container.DetectContext().Type
			}
			userID := container.Config.User.ID
			recent := recentCommands(container, userID, recentCount)
			items := container.Suggestions.SuggestFor(userID, ct, recent, level)
			if asJSON {
				return helpers.PrintJSON(cmd.OutOrStdout(), items)
			}
			RenderSuggestions(cmd.OutOrStdout(), ct, items)
			return nil
		},
	}

	cmd.Flags().StringVarP(&contextName, "context", "c", "", "Context to suggest for (default: detected)")
	cmd.Flags().StringVar(&activity, "activity", string(domain.ActivityMedium), "Activity level (low, medium, high)")
	cmd.Flags().IntVar(&recentCount, "recent", commands.DefaultRecentCommands, "Number of recent commands to consider")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print suggestions as JSON")
	return cmd
}

// recentCommands prefers the in-process history and falls back to the
// persistent store, returning command ids oldest first.
func recentCommands(container *app.Container, userID string, n int) []string {
	if recent := container.Dispatcher.RecentCommands(userID, n); len(recent) > 0 || container.HistoryStore == nil {
		return recent
	}
	records, err := container.HistoryStore.Records(n*4, "")
	if err != nil {
		return nil
	}
	var out []string
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.CommandID == "" || (userID != "" && rec.UserID != userID) {
			continue
		}
		out = append(out, rec.CommandID)
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func outcomeError(res domain.CommandResult) error {
	switch res.Outcome {
	case domain.OutcomeExecuted, domain.OutcomePendingConfirmation:
		return nil
	default:
		return fmt.Errorf("command %s", res.Outcome)
	}
}
