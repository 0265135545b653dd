package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/vocmd/internal/app"
	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/infrastructure/cli/helpers"
)

// NewCatalogCommand lists the command catalog grouped by category.
func NewCatalogCommand(container *app.Container) *cobra.Command {
	var (
		category string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:     "catalog",
		Aliases: []string{"commands"},
		Short:   "List the commands vocmd understands",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter func(domain.Category) bool
			if category != "" {
				want := domain.Category(strings.ToLower(category))
				if !want.Valid() {
					return fmt.Errorf("unknown category %q", category)
				}
				filter = func(c domain.Category) bool { return c == want }
			}
			sections := container.Catalog.Help(filter)
			out := cmd.OutOrStdout()
			if asJSON {
				return helpers.PrintJSON(out, sections)
			}
			for _, section := range sections {
				enabled := ""
				if !container.Config.IsCategoryEnabled(section.Category) {
					enabled = helpers.MutedStyle.Render(" (disabled)")
				}
				fmt.Fprintf(out, "%s%s\n", helpers.TitleStyle.Render(strings.ToUpper(string(section.Category))), enabled)
				for _, entry := range section.Commands {
					marker := ""
					if entry.Sensitive {
						marker = helpers.WarnStyle.Render(" [confirm]")
					}
					fmt.Fprintf(out, "  %-16s %s%s\n", entry.ID, entry.Description, marker)
					if len(entry.Examples) > 0 {
						fmt.Fprintf(out, "  %-16s %s\n", "", helpers.MutedStyle.Render("e.g. \""+entry.Examples[0]+"\""))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only show one category")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog as JSON")
	return cmd
}
