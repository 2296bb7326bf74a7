package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorNeonGreen  = lipgloss.Color("#00FF99") // Approve / Success
	colorNeonPurple = lipgloss.Color("#874BFD") // Header / Border
	colorTextMain   = lipgloss.Color("#E2E8F0") // Main Text
	colorTextSub    = lipgloss.Color("#64748B") // Subtext
	colorDanger     = lipgloss.Color("#FF0055") // Reject
	colorWarning    = lipgloss.Color("#F59E0B") // Pending

	subtle    = lipgloss.NewStyle().Foreground(colorTextSub)
	dimStyle  = lipgloss.NewStyle().Foreground(colorTextSub)
	highlight = lipgloss.NewStyle().Foreground(colorNeonPurple).Bold(true)
	special   = lipgloss.NewStyle().Foreground(colorNeonGreen).Bold(true)
	danger    = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	warning   = lipgloss.NewStyle().Foreground(colorWarning)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorNeonPurple).
			Bold(true).
			Padding(0, 1)

	listSelectedStyle = lipgloss.NewStyle().
				Foreground(colorTextMain).
				Background(lipgloss.Color("#331832")).
				Bold(true)

	listNormalStyle = lipgloss.NewStyle().
			Foreground(colorTextSub)

	iconApproved = lipgloss.NewStyle().Foreground(colorNeonGreen).SetString("[APPROVED]")
	iconRejected = lipgloss.NewStyle().Foreground(colorDanger).SetString("[REJECTED]")
	iconPending  = lipgloss.NewStyle().Foreground(colorWarning).SetString("[PENDING]")

	detailsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorNeonGreen).
			Padding(1, 2).
			MarginTop(1)

	detailsHeaderStyle = lipgloss.NewStyle().
				Foreground(colorNeonPurple).
				Bold(true).
				Underline(true).
				MarginBottom(1)
)
