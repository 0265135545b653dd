package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/infrastructure/parser"
)

// DryRun reports what would have run without touching the host.
type DryRun struct {
	Key string
}

// Handle echoes the handler key and parameters.
func (d DryRun) Handle(_ context.Context, params map[string]interface{}, _ domain.CommandContext) (domain.CommandResult, error) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+parser.FormatValue(params[name]))
	}
	msg := fmt.Sprintf("dry run: %s", d.Key)
	if len(parts) > 0 {
		msg += " (" + strings.Join(parts, ", ") + ")"
	}
	return domain.CommandResult{
		Success: true,
		Message: msg,
		Data:    map[string]interface{}{"dry_run": true, "handler": d.Key},
	}, nil
}

// FromConfig builds a registry from execution.handlers bindings. With
// dryRun set, unbound keys echo instead of failing.
func FromConfig(cfg domain.ExecutionSettings) *Registry {
	r := NewRegistry()
	for key, line := range cfg.Handlers {
		r.Register(key, NewExecHandler(cfg.Shell, line))
	}
	if cfg.DryRun {
		r.SetFallback(func(key string) Handler { return DryRun{Key: key} })
	}
	return r
}
