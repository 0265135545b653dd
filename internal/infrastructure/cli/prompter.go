package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/infrastructure/cli/helpers"
	"github.com/doeshing/vocmd/internal/ports"
)

// Prompter implements ConfirmationPrompter. On a terminal it shows a huh
// confirm form; in line mode it reads y/N from the input stream.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	lineMode    bool
}

// NewPrompter constructs a prompter referencing stdio. It is only enabled
// when both streams are terminals.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Prompter{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: isTerminal(in) && isTerminal(out),
	}
}

// NewLinePrompter reads plain y/N answers from in. It is always enabled.
func NewLinePrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, interactive: true, lineMode: true}
}

// Enabled indicates the prompter can ask a human.
func (p *Prompter) Enabled() bool {
	return p.interactive
}

// Confirm asks the user to approve a pending permission request.
func (p *Prompter) Confirm(req domain.PermissionRequest) (bool, error) {
	if p.lineMode {
		return p.ask(req)
	}
	approved := false
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Run %q?", req.CommandText)).
		Description(describeRequest(req)).
		Affirmative("Run").
		Negative("Cancel").
		Value(&approved).
		WithTheme(huh.ThemeCharm()).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return approved, nil
}

func (p *Prompter) ask(req domain.PermissionRequest) (bool, error) {
	fmt.Fprintf(p.out, "\n%s risk: %s\n", strings.ToUpper(string(req.Risk)), req.Reason)
	fmt.Fprintf(p.out, "Command:\n  %s\n", req.CommandText)
	fmt.Fprint(p.out, "Continue? [y/N]: ")
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}

func describeRequest(req domain.PermissionRequest) string {
	desc := fmt.Sprintf("%s risk: %s", strings.ToUpper(string(req.Risk)), req.Reason)
	if params := helpers.FormatParams(req.Parameters); params != "" {
		desc += "\n" + req.Action + " " + params
	}
	return desc
}

func isTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var _ ports.ConfirmationPrompter = (*Prompter)(nil)
