package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - available, ranged
	ErrorColor   = lipgloss.Color("#FF5555") // Red - unavailable, failures
	WarningColor = lipgloss.Color("#FFA500") // Orange - unranged
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(PrimaryColor).
			Bold(true).
			Padding(0, 1)

	KeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(12)

	ValueStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	OKStyle = lipgloss.NewStyle().
		Foreground(SuccessColor).
		Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	PendingStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	MutedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)
)

// SectionStyle returns the bordered box used for each monitor section.
func SectionStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width-2).
		Padding(0, 1)
}

// GetTerminalSize returns the current terminal width and height, with the
// width clamped to the supported range.
func GetTerminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth, 24
	}
	return clampWidth(width), height
}

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func clampWidth(width int) int {
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}
