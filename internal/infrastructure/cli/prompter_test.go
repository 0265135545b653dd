package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/doeshing/vocmd/internal/domain"
)

func TestLinePrompter(t *testing.T) {
	req := domain.PermissionRequest{CommandText: "shut down the computer", Risk: domain.RiskHigh, Reason: "sensitive command"}
	cases := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"n\n":   false,
		"\n":    false,
		"y":     true,
		"":      false,
	}
	for input, want := range cases {
		var out bytes.Buffer
		p := NewLinePrompter(strings.NewReader(input), &out)
		if !p.Enabled() {
			t.Fatal("line prompter should be enabled")
		}
		got, err := p.Confirm(req)
		if err != nil {
			t.Fatalf("Confirm(%q): %v", input, err)
		}
		if got != want {
			t.Errorf("Confirm(%q) = %v, want %v", input, got, want)
		}
		if !strings.Contains(out.String(), "HIGH risk: sensitive command") {
			t.Errorf("prompt missing risk line: %q", out.String())
		}
	}
}

func TestPrompterDisabledWithoutTerminal(t *testing.T) {
	p := NewPrompter(strings.NewReader("y\n"), &bytes.Buffer{})
	if p.Enabled() {
		t.Fatal("non-terminal streams must disable the prompter")
	}
}
