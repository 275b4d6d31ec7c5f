package main

import (
	"github.com/charmbracelet/lipgloss"

	"gauntlet/internal/verdict"
)

// Semantic styles for terminal output.
var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// statusMarker maps a per-test status to its marker and style.
func statusMarker(status string) (string, lipgloss.Style) {
	switch status {
	case verdict.TestPassed:
		return "✓", successStyle
	case verdict.TestFailed:
		return "✗", failStyle
	case verdict.TestErrored:
		return "!", failStyle
	case verdict.TestTimedOut:
		return "✗", warnStyle
	case verdict.TestSkipped:
		return "-", dimStyle
	default:
		return "?", warnStyle
	}
}
