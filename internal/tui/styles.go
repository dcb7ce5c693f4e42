package tui

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	colorPrimary  = lipgloss.Color("#63B3ED")
	colorAccent   = lipgloss.Color("#BEE3F8")
	colorSurface  = lipgloss.Color("#2D3748")
	colorText     = lipgloss.Color("#FAFAFA")
	colorMuted    = lipgloss.Color("#A0AEC0")
	colorSuccess  = lipgloss.Color("#68D391")
	colorError    = lipgloss.Color("#FC8181")
	colorExcluded = lipgloss.Color("#718096")
)

var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			Background(colorSurface).
			Padding(0, 2).
			MarginBottom(1)

	styleArea = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	styleFan = lipgloss.NewStyle().
			Foreground(colorText)

	styleExcluded = lipgloss.NewStyle().
			Foreground(colorExcluded).
			Strikethrough(true)

	styleCursor = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleOn = lipgloss.NewStyle().
		Foreground(colorSuccess)

	styleOff = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleHelp = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	styleError = lipgloss.NewStyle().
			Foreground(colorError)

	styleStatus = lipgloss.NewStyle().
			Foreground(colorSuccess)
)
