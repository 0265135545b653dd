package cli

import (
	"fmt"
	"io"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/infrastructure/cli/helpers"
)

// RenderSuggestions prints a ranked suggestion list.
func RenderSuggestions(out io.Writer, ct domain.ContextType, items []domain.SmartSuggestion) {
	fmt.Fprintln(out, helpers.TitleStyle.Render(fmt.Sprintf("Suggestions for %s", ct)))
	if len(items) == 0 {
		fmt.Fprintln(out, helpers.MutedStyle.Render("Nothing to suggest right now."))
		return
	}
	for i, s := range items {
		fmt.Fprintf(out, "%d. %s  %s  %s\n",
			i+1,
			helpers.CommandStyle.Render(s.Command),
			fmt.Sprintf("%.0f%%", s.Confidence*100),
			helpers.MutedStyle.Render(fmt.Sprintf("[%s] %s", s.Category, s.Reason)))
	}
}
