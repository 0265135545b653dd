package contextdetect

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/doeshing/vocmd/internal/domain"
)

// Environment variables a host application may export to describe its UI state.
const (
	EnvRoute         = "VOCMD_ROUTE"
	EnvActiveElement = "VOCMD_ACTIVE_ELEMENT"
	EnvURL           = "VOCMD_URL"
	EnvActivity      = "VOCMD_ACTIVITY"
)

// BasicCollector samples signals from the local machine: exported UI state,
// the working directory and the clock.
type BasicCollector struct {
	projectMarkers []string
	workDir        func() (string, error)
	now            func() time.Time
}

func NewBasicCollector() *BasicCollector {
	return &BasicCollector{
		projectMarkers: []string{".git", "go.mod", "package.json", "Cargo.toml", "pyproject.toml", "Makefile"},
		workDir:        os.Getwd,
		now:            time.Now,
	}
}

// Collect returns one signal per observable value, in a stable order.
func (c *BasicCollector) Collect() []domain.Signal {
	var signals []domain.Signal
	add := func(kind domain.SignalKind, value string) {
		if value != "" {
			signals = append(signals, domain.Signal{Kind: kind, Value: value})
		}
	}
	add(domain.SignalTimeOfDay, strconv.Itoa(c.now().Hour()))
	add(domain.SignalRoute, os.Getenv(EnvRoute))
	add(domain.SignalURL, os.Getenv(EnvURL))
	add(domain.SignalActiveElement, os.Getenv(EnvActiveElement))

	activity := os.Getenv(EnvActivity)
	if activity == "" && c.inProject() {
		activity = "coding"
	}
	add(domain.SignalActivity, activity)
	return signals
}

func (c *BasicCollector) inProject() bool {
	wd, err := c.workDir()
	if err != nil {
		return false
	}
	for _, marker := range c.projectMarkers {
		if _, err := os.Stat(filepath.Join(wd, marker)); err == nil {
			return true
		}
	}
	return false
}
