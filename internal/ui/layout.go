package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/sitebook/internal/theme"
)

// Stat is one labelled figure on the dashboard line.
type Stat struct {
	Label string
	Value string
	Alert bool
}

// Layout manages the terminal layout dimensions: a title bar, a
// dashboard line, the content area and a status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    2,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the title bar with the refresh status on the
// right and the dashboard figures underneath.
func (l Layout) RenderHeader(title, syncStatus string, stats []Stat) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(syncStatus)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(statusRendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	bar := lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
	return lipgloss.JoinVertical(lipgloss.Left, bar, RenderStats(stats))
}

// RenderStats renders the dashboard figures on one line.
func RenderStats(stats []Stat) string {
	parts := make([]string, 0, len(stats))
	for _, s := range stats {
		value := theme.StatStyle.Render(s.Value)
		if s.Alert {
			value = theme.StatStyle.Foreground(theme.ColorRed).Render(s.Value)
		}
		parts = append(parts, theme.DimmedStyle.Render(s.Label+" ")+value)
	}
	return " " + strings.Join(parts, " ")
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}
