// Package ui renders the product brand identifier form in the terminal.
package ui

import "github.com/charmbracelet/lipgloss"

// Palette taken from the web form this replaces
var (
	Background  = lipgloss.Color("#1a202c")
	Foreground  = lipgloss.Color("#e2e8f0")
	Muted       = lipgloss.Color("#718096")
	Lime        = lipgloss.Color("#32CD32")
	Cyan        = lipgloss.Color("#00FFFF")
	Yellow      = lipgloss.Color("#D69E2E")
	White       = lipgloss.Color("#ffffff")
	Destructive = lipgloss.Color("#e53935")
)

// Styles holds every style the form uses
type Styles struct {
	Heading      lipgloss.Style
	Divider      lipgloss.Style
	Helper       lipgloss.Style
	Input        lipgloss.Style
	InputFocused lipgloss.Style
	Validation   lipgloss.Style
	CleanButton  lipgloss.Style
	Loading      lipgloss.Style
	Hint         lipgloss.Style
	Spinner      lipgloss.Style
	Badge        lipgloss.Style
	Result       lipgloss.Style
	Error        lipgloss.Style
	Help         lipgloss.Style
}

// DefaultStyles returns the form styles
func DefaultStyles() Styles {
	return Styles{
		Heading: lipgloss.NewStyle().
			Bold(true).
			Foreground(Foreground).
			MarginBottom(1),
		Divider: lipgloss.NewStyle().
			Foreground(Muted),
		Helper: lipgloss.NewStyle().
			Bold(true).
			Foreground(Muted),
		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Muted).
			Padding(0, 1),
		InputFocused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Lime).
			Padding(0, 1),
		Validation: lipgloss.NewStyle().
			Foreground(Yellow),
		CleanButton: lipgloss.NewStyle().
			Foreground(Background).
			Background(Cyan).
			Padding(0, 1),
		Loading: lipgloss.NewStyle().
			Bold(true).
			Foreground(White).
			Background(Yellow).
			Padding(0, 2),
		Hint: lipgloss.NewStyle().
			Foreground(Background).
			Background(Yellow).
			Padding(0, 2),
		Spinner: lipgloss.NewStyle().
			Foreground(Yellow),
		Badge: lipgloss.NewStyle().
			Bold(true).
			Foreground(Background).
			Background(White).
			Padding(0, 1).
			MarginRight(2),
		Result: lipgloss.NewStyle().
			Foreground(Foreground),
		Error: lipgloss.NewStyle().
			Foreground(Destructive),
		Help: lipgloss.NewStyle().
			Faint(true),
	}
}
