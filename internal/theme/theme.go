// Package theme holds the lipgloss palette and styles shared by every view.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/sitebook/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps a bordered content area.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// DimmedStyle renders secondary text.
var DimmedStyle = lipgloss.NewStyle().Foreground(ColorGray)

// ErrorStyle renders error text in the status bar.
var ErrorStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)

// SuccessStyle renders confirmation text in the status bar.
var SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)

// StatStyle renders a dashboard figure.
var StatStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorWhite).Padding(0, 2, 0, 0)

// ClientStatusStyle returns a color-coded style for a client status.
func ClientStatusStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch status {
	case model.ClientStatusActive:
		return base.Foreground(ColorGreen)
	case model.ClientStatusPending:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// InvoiceStatusStyle returns a color-coded style for an invoice status.
// pastDue highlights unpaid invoices whose due date has passed.
func InvoiceStatusStyle(status string, pastDue bool) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	if pastDue {
		return base.Foreground(ColorRed)
	}

	switch status {
	case model.InvoiceStatusDraft:
		return base.Foreground(ColorGray)
	case model.InvoiceStatusSent:
		return base.Foreground(ColorBlue)
	case model.InvoiceStatusPaid:
		return base.Foreground(ColorGreen)
	case model.InvoiceStatusOverdue:
		return base.Foreground(ColorOrange)
	default:
		return base.Foreground(ColorGray)
	}
}
