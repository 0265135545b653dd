package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/infrastructure/parser"
)

var placeholder = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// ExecHandler runs a host command line. {name} placeholders are replaced
// with the shell-quoted parameter value; unknown names become ''.
type ExecHandler struct {
	shell    string
	template string
}

// NewExecHandler builds a handler for template. shell "" or "auto" uses $SHELL,
// then /bin/sh.
func NewExecHandler(shell, template string) *ExecHandler {
	if shell == "" || shell == "auto" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	return &ExecHandler{shell: shell, template: template}
}

// CommandLine renders the template for params.
func (e *ExecHandler) CommandLine(params map[string]interface{}) string {
	return placeholder.ReplaceAllStringFunc(e.template, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok {
			return "''"
		}
		return shellQuote(parser.FormatValue(v))
	})
}

// Handle runs the rendered command line and reports its output.
func (e *ExecHandler) Handle(ctx context.Context, params map[string]interface{}, _ domain.CommandContext) (domain.CommandResult, error) {
	line := e.CommandLine(params)
	c := exec.CommandContext(ctx, e.shell, "-c", line)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	data := map[string]interface{}{
		"command":     line,
		"stdout":      stdout.String(),
		"stderr":      stderr.String(),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		data["exit_code"] = exitErr.ExitCode()
		return domain.CommandResult{
			Success: false,
			Message: fmt.Sprintf("command exited with status %d", exitErr.ExitCode()),
			Data:    data,
		}, nil
	}
	if err != nil {
		return domain.CommandResult{}, err
	}
	data["exit_code"] = 0
	msg := strings.TrimSpace(stdout.String())
	if msg == "" {
		msg = "done"
	}
	return domain.CommandResult{Success: true, Message: msg, Data: data}, nil
}

// shellQuote wraps s in single quotes for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
