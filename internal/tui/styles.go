package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor   = lipgloss.Color("#A78BFA")
	secondaryColor = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#F87171")
	mutedColor     = lipgloss.Color("#9CA3AF")
	textColor      = lipgloss.Color("#F9FAFB")
	borderColor    = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	badgeStyle = lipgloss.NewStyle().Bold(true).Foreground(textColor).Padding(0, 1)

	readyBadge  = badgeStyle.Background(secondaryColor)
	failedBadge = badgeStyle.Background(errorColor)

	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	logBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(borderColor).Padding(0, 1)
)
