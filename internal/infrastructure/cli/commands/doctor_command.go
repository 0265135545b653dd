package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/vocmd/internal/app"
	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/infrastructure/cli/helpers"
)

// NewDoctorCommand creates the doctor command
func NewDoctorCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration, stores and handlers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctorDiagnostics(cmd, cmd.OutOrStdout(), container)
		},
	}
}

// runDoctorDiagnostics runs environment diagnostics
func runDoctorDiagnostics(cmd *cobra.Command, out io.Writer, container *app.Container) error {
	if container.DoctorService == nil {
		return errors.New(ErrDoctorServiceUnavailable)
	}

	report, err := container.DoctorService.Run(cmd.Context())

	// Display report even if there were errors
	displayDoctorReport(out, report)

	if err != nil {
		return fmt.Errorf("diagnostics completed with errors: %w", err)
	}
	return nil
}

func displayDoctorReport(out io.Writer, report domain.HealthReport) {
	for _, check := range report.Checks {
		status := helpers.HealthStyle(check.Status).Render(fmt.Sprintf("[%s]", strings.ToUpper(string(check.Status))))
		fmt.Fprintf(out, "%s %s - %s\n", status, check.Name, check.Details)
	}
	overall := report.Overall()
	fmt.Fprintf(out, "\n%s %d ok, %d warnings, %d errors\n",
		helpers.HealthStyle(overall).Render(strings.ToUpper(string(overall))),
		report.Count(domain.HealthOK), report.Count(domain.HealthWarn), report.Count(domain.HealthError))
}
