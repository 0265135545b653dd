package domain

// HealthStatus is the verdict of one doctor check.
type HealthStatus string

const (
	HealthOK    HealthStatus = "ok"
	HealthWarn  HealthStatus = "warn"
	HealthError HealthStatus = "error"
)

var healthSeverity = map[HealthStatus]int{HealthOK: 0, HealthWarn: 1, HealthError: 2}

// HealthCheck is one diagnostic: config file, catalog, policy rules,
// handler bindings or a store.
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Details string       `json:"details"`
}

// HealthReport is the ordered result of a doctor run.
type HealthReport struct {
	Checks []HealthCheck `json:"checks"`
}

// Overall returns the worst status in the report. An empty report is ok.
func (r HealthReport) Overall() HealthStatus {
	worst := HealthOK
	for _, c := range r.Checks {
		if healthSeverity[c.Status] > healthSeverity[worst] {
			worst = c.Status
		}
	}
	return worst
}

// Count returns how many checks ended with status.
func (r HealthReport) Count(status HealthStatus) int {
	n := 0
	for _, c := range r.Checks {
		if c.Status == status {
			n++
		}
	}
	return n
}
