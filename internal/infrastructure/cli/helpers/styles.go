package helpers

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/doeshing/vocmd/internal/domain"
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("87"))
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	WarnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	CommandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
)

// RiskStyle colors a risk level by severity.
func RiskStyle(level domain.RiskLevel) lipgloss.Style {
	switch level {
	case domain.RiskCritical, domain.RiskHigh:
		return ErrorStyle
	case domain.RiskMedium:
		return WarnStyle
	default:
		return MutedStyle
	}
}

// OutcomeStyle colors a dispatcher outcome.
func OutcomeStyle(outcome domain.Outcome) lipgloss.Style {
	switch outcome {
	case domain.OutcomeExecuted:
		return SuccessStyle
	case domain.OutcomePendingConfirmation, domain.OutcomeNotUnderstood, domain.OutcomeUnavailable:
		return WarnStyle
	default:
		return ErrorStyle
	}
}

// HealthStyle colors a doctor check status.
func HealthStyle(status domain.HealthStatus) lipgloss.Style {
	switch status {
	case domain.HealthOK:
		return SuccessStyle
	case domain.HealthWarn:
		return WarnStyle
	default:
		return ErrorStyle
	}
}
