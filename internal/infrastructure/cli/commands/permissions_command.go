package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/vocmd/internal/app"
	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/infrastructure/cli/helpers"
)

// NewPermissionsCommand creates the permissions command with all subcommands
func NewPermissionsCommand(container *app.Container) *cobra.Command {
	permissionsCmd := &cobra.Command{
		Use:     "permissions",
		Aliases: []string{"perm"},
		Short:   "Review pending confirmations",
		RunE: func(cmd *cobra.Command, args []string) error {
			listPendingPermissions(cmd.OutOrStdout(), container.Dispatcher.Pending())
			return nil
		},
	}

	permissionsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List pending permission requests",
			RunE: func(cmd *cobra.Command, args []string) error {
				listPendingPermissions(cmd.OutOrStdout(), container.Dispatcher.Pending())
				return nil
			},
		},
		newPermissionsApproveCommand(container),
		newPermissionsDenyCommand(container),
	)
	return permissionsCmd
}

func newPermissionsApproveCommand(container *app.Container) *cobra.Command {
	var approver string

	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending request and run its command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if approver == "" {
				approver = container.Config.User.ID
			}
			cctx := domain.CommandContext{SessionID: DefaultSessionID, UserID: container.Config.User.ID}
			res := container.Dispatcher.Approve(cmd.Context(), args[0], approver, cctx)
			helpers.RenderResult(cmd.OutOrStdout(), res)
			if res.Outcome != domain.OutcomeExecuted {
				return fmt.Errorf("approval %s", res.Outcome)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&approver, "approver", "", "Name recorded as the approver (default: configured user)")
	return cmd
}

func newPermissionsDenyCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "deny <id>",
		Short: "Reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cctx := domain.CommandContext{SessionID: DefaultSessionID, UserID: container.Config.User.ID}
			res := container.Dispatcher.Deny(args[0], cctx)
			helpers.RenderResult(cmd.OutOrStdout(), res)
			if res.CommandID == "" {
				return fmt.Errorf("permission %s not denied", args[0])
			}
			return nil
		},
	}
}

func listPendingPermissions(out io.Writer, pending []domain.PermissionRequest) {
	if len(pending) == 0 {
		fmt.Fprintln(out, MsgNoPendingRequests)
		return
	}
	for _, req := range pending {
		fmt.Fprintf(out, "%s  %s  %s\n",
			req.ID,
			helpers.RiskStyle(req.Risk).Render(strings.ToUpper(string(req.Risk))),
			helpers.CommandStyle.Render(req.CommandText))
		fmt.Fprintf(out, "    %s, requested %s, expires %s\n",
			req.Reason, helpers.Ago(req.CreatedAt), helpers.Ago(req.ExpiresAt))
	}
}
