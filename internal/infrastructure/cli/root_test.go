package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	root, closeFn, err := NewRootCmd(context.Background(), Options{
		ConfigPath: filepath.Join(dir, "config.yaml"),
		Ephemeral:  true,
	})
	if err != nil {
		t.Fatalf("NewRootCmd: %v", err)
	}
	defer closeFn()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExecRunsCommand(t *testing.T) {
	out, err := runCLI(t, "exec", "--context", "media", "play", "some", "music")
	if err != nil {
		t.Fatalf("exec: %v\n%s", err, out)
	}
	if !strings.Contains(out, "EXECUTED") || !strings.Contains(out, "play_media") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRootTreatsArgsAsCommandText(t *testing.T) {
	t.Setenv("VOCMD_ROUTE", "/media/library")
	out, err := runCLI(t, "play", "some", "music")
	if err != nil {
		t.Fatalf("root exec: %v\n%s", err, out)
	}
	if !strings.Contains(out, "play_media") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestExecReportsUnderstandingFailure(t *testing.T) {
	out, err := runCLI(t, "exec", "--context", "tasks", "xyzzy", "plugh")
	if err == nil || !strings.Contains(err.Error(), "not_understood") {
		t.Fatalf("expected not_understood error, got %v\n%s", err, out)
	}
}

func TestExecSensitiveCommandIsPending(t *testing.T) {
	out, err := runCLI(t, "exec", "--context", "unknown", "--json", "shut down the computer")
	if err != nil {
		t.Fatalf("pending should not be an error: %v", err)
	}
	if !strings.Contains(out, `"outcome": "pending_confirmation"`) || !strings.Contains(out, `"permission_id"`) {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestCatalogAndPermissionsCommands(t *testing.T) {
	out, err := runCLI(t, "catalog", "--category", "media")
	if err != nil || !strings.Contains(out, "play_media") || strings.Contains(out, "create_task") {
		t.Fatalf("catalog: %v\n%s", err, out)
	}

	out, err = runCLI(t, "permissions", "list")
	if err != nil || !strings.Contains(out, "No pending permission requests.") {
		t.Fatalf("permissions: %v\n%s", err, out)
	}

	if _, err := runCLI(t, "permissions", "approve", "missing"); err == nil {
		t.Fatal("approving an unknown permission should fail")
	}
}

func TestSuggestJSON(t *testing.T) {
	out, err := runCLI(t, "suggest", "--context", "tasks", "--json")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "[") {
		t.Fatalf("expected JSON array, got:\n%s", out)
	}
}
