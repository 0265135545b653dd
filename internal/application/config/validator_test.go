package config

import (
	"strings"
	"testing"

	"github.com/doeshing/vocmd/internal/domain"
)

func validConfig() domain.Config {
	return domain.Config{
		Commands:  domain.CommandSettings{EnabledCategories: []domain.Category{domain.CategoryTasks}},
		Safety:    domain.SafetySettings{Level: domain.SafetyModerate, PermissionTTL: "24h"},
		History:   domain.HistorySettings{MaxEntries: 100},
		Execution: domain.ExecutionSettings{HandlerTimeout: "30s", Handlers: map[string]string{"system.lock": "loginctl lock-session"}},
		Context:   domain.ContextConfig{Default: domain.ContextUnknown, ValidationInterval: "5s", StaleAfter: "30s"},
		Server:    domain.ServerSettings{Addr: "127.0.0.1:7878"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*domain.Config) {}},
		{name: "empty config", mutate: func(c *domain.Config) { *c = domain.Config{} }},
		{name: "unknown category", mutate: func(c *domain.Config) { c.Commands.EnabledCategories = []domain.Category{"games"} }, wantErr: "unknown category"},
		{name: "bad level", mutate: func(c *domain.Config) { c.Safety.Level = "paranoid" }, wantErr: "safety.level"},
		{name: "bad ttl", mutate: func(c *domain.Config) { c.Safety.PermissionTTL = "forever" }, wantErr: "safety.permission_ttl"},
		{name: "negative ttl", mutate: func(c *domain.Config) { c.Safety.PermissionTTL = "-1h" }, wantErr: "must be positive"},
		{name: "negative history", mutate: func(c *domain.Config) { c.History.MaxEntries = -1 }, wantErr: "history.max_entries"},
		{name: "empty handler", mutate: func(c *domain.Config) { c.Execution.Handlers["media.play"] = " " }, wantErr: "execution.handlers.media.play"},
		{name: "bad timeout", mutate: func(c *domain.Config) { c.Execution.HandlerTimeout = "soon" }, wantErr: "execution.handler_timeout"},
		{name: "unknown context", mutate: func(c *domain.Config) { c.Context.Default = "kitchen" }, wantErr: "context.default"},
		{name: "bad addr", mutate: func(c *domain.Config) { c.Server.Addr = "7878" }, wantErr: "server.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
