package tui

import "github.com/charmbracelet/lipgloss"

var (
	baseFg    = lipgloss.Color("#E6E6E6")
	baseDimFg = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	accentFg  = lipgloss.Color("#7C3AED")
	borderCol = lipgloss.Color("#243141")
	warnFg    = lipgloss.Color("#F59E0B")
	errFg     = lipgloss.Color("#EF4444")
	okFg      = lipgloss.Color("#10B981")

	appStyle   = lipgloss.NewStyle().Foreground(baseFg)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(borderCol).Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(baseDimFg)
	popupStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(errFg).Padding(0, 1)

	loadingStyle = lipgloss.NewStyle().Foreground(accentFg)
	staleStyle   = lipgloss.NewStyle().Foreground(warnFg)
	failedStyle  = lipgloss.NewStyle().Foreground(errFg).Bold(true)
	readyStyle   = lipgloss.NewStyle().Foreground(okFg)

	handleStyle       = lipgloss.NewStyle().Foreground(accentFg)
	activeHandleStyle = lipgloss.NewStyle().Foreground(warnFg).Bold(true)
	originStyle       = lipgloss.NewStyle().Foreground(okFg).Bold(true)
	hoverStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
)
