// Package tui provides the interactive terminal views of word2pdf: a
// directory picker and a conversion progress screen.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#1F3A68", Dark: "#7AA2F7"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	ColorSuccess = lipgloss.Color("#8BC34A")
	ColorWarning = lipgloss.Color("#FFC107")
	ColorError   = lipgloss.Color("#E53935")
)

// Styles groups the lipgloss styles used by the views.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
	Help    lipgloss.Style
}

// DefaultStyles returns the standard styles. NO_COLOR disables colour.
func DefaultStyles() Styles {
	if os.Getenv("NO_COLOR") != "" {
		plain := lipgloss.NewStyle()
		return Styles{
			Title: plain.Bold(true), Label: plain, Muted: plain,
			Success: plain, Warning: plain, Error: plain,
			Box: plain.Padding(0, 1), Help: plain,
		}
	}
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary),
		Label:   lipgloss.NewStyle().Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(ColorMuted),
		Success: lipgloss.NewStyle().Foreground(ColorSuccess),
		Warning: lipgloss.NewStyle().Foreground(ColorWarning),
		Error:   lipgloss.NewStyle().Foreground(ColorError),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1),
		Help: lipgloss.NewStyle().Foreground(ColorMuted).Italic(true),
	}
}
