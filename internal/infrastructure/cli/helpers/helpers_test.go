package helpers

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/vocmd/internal/domain"
)

func TestParseContextFlag(t *testing.T) {
	ct, err := ParseContextFlag(" Tasks ")
	if err != nil || ct != domain.ContextTasks {
		t.Fatalf("got %q, %v", ct, err)
	}
	if ct, err := ParseContextFlag(""); err != nil || ct != "" {
		t.Fatalf("empty flag: got %q, %v", ct, err)
	}
	if _, err := ParseContextFlag("kitchen"); err == nil {
		t.Fatal("expected error for unknown context")
	}
}

func TestParseActivityFlag(t *testing.T) {
	cases := map[string]domain.ActivityLevel{
		"":     domain.ActivityMedium,
		"low":  domain.ActivityLow,
		"HIGH": domain.ActivityHigh,
	}
	for in, want := range cases {
		got, err := ParseActivityFlag(in)
		if err != nil || got != want {
			t.Errorf("ParseActivityFlag(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseActivityFlag("frantic"); err == nil {
		t.Error("expected error for unknown activity")
	}
}

func TestTopCounts(t *testing.T) {
	got := TopCounts(map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}, 3)
	want := []CommandCount{{"c", 5}, {"a", 2}, {"b", 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("TopCounts mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatParamsAndPercent(t *testing.T) {
	if got := FormatParams(map[string]interface{}{"title": "milk", "due": "today"}); got != "due=today title=milk" {
		t.Errorf("FormatParams = %q", got)
	}
	if got := Percent(1, 4); got != "25.0%" {
		t.Errorf("Percent = %q", got)
	}
	if got := Percent(1, 0); got != "0.0%" {
		t.Errorf("Percent zero total = %q", got)
	}
}
