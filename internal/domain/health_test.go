package domain

import "testing"

func TestHealthReportOverall(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthCheck
		want   HealthStatus
	}{
		{name: "empty", want: HealthOK},
		{name: "all ok", checks: []HealthCheck{{Status: HealthOK}, {Status: HealthOK}}, want: HealthOK},
		{name: "warning", checks: []HealthCheck{{Status: HealthOK}, {Status: HealthWarn}}, want: HealthWarn},
		{name: "error wins", checks: []HealthCheck{{Status: HealthError}, {Status: HealthWarn}}, want: HealthError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := HealthReport{Checks: tt.checks}
			if got := report.Overall(); got != tt.want {
				t.Fatalf("Overall() = %s, want %s", got, tt.want)
			}
		})
	}
	report := HealthReport{Checks: []HealthCheck{{Status: HealthWarn}, {Status: HealthWarn}, {Status: HealthOK}}}
	if report.Count(HealthWarn) != 2 || report.Count(HealthError) != 0 {
		t.Fatalf("unexpected counts for %+v", report)
	}
}
