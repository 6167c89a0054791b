package tui

import "github.com/charmbracelet/lipgloss"

// Color palette (Tokyonight theme)
var (
	colorBorder = lipgloss.Color("#414868")
	colorMuted  = lipgloss.Color("#565f89")
	colorSubtle = lipgloss.Color("#787c99")
	colorText   = lipgloss.Color("#a9b1d6")

	colorPrimary = lipgloss.Color("#7aa2f7")
	colorSuccess = lipgloss.Color("#9ece6a")
	colorWarning = lipgloss.Color("#e0af68")
	colorAccent  = lipgloss.Color("#7dcfff")
	colorRose    = lipgloss.Color("#f7768e")
)

var (
	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	contentStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)

	normalStyle = lipgloss.NewStyle().
			Foreground(colorText)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	enabledStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	disabledStyle = lipgloss.NewStyle().
			Foreground(colorRose).
			Bold(true)

	eventStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	keyHelpStyle = lipgloss.NewStyle().
			Foreground(colorSubtle)
)
