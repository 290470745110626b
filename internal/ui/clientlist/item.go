package clientlist

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/nhle/sitebook/internal/model"
	"github.com/nhle/sitebook/internal/report"
	"github.com/nhle/sitebook/internal/theme"
)

// Row is a client with its unbilled totals.
type Row struct {
	Client         model.Client
	UnbilledHours  decimal.Decimal
	UnbilledAmount decimal.Decimal
	Currency       string
}

// FilterValue returns the string used for filtering.
func (r Row) FilterValue() string { return r.Client.Name }

// Title returns the client name for the list.
func (r Row) Title() string { return r.Client.Name }

// Description returns a short summary line for the list.
func (r Row) Description() string {
	return fmt.Sprintf("%s | %s h unbilled", r.Client.Status, report.FormatHours(r.UnbilledHours))
}

// ItemDelegate implements list.ItemDelegate for rendering client rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

var (
	listItemStyle     = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				Bold(true).
				Foreground(theme.ColorBlue).
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(theme.ColorBlue)
)

// Render draws a single client line as fixed-width columns.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	row, ok := item.(Row)
	if !ok {
		return
	}

	status := theme.ClientStatusStyle(row.Client.Status).Render(fmt.Sprintf("%-9s", row.Client.Status))
	rate := report.FormatMoney(row.Currency, row.Client.HourlyRate) + "/h"

	unbilled := theme.DimmedStyle.Render("-")
	if row.UnbilledHours.IsPositive() {
		unbilled = fmt.Sprintf("%sh  %s",
			report.FormatHours(row.UnbilledHours),
			report.FormatMoney(row.Currency, row.UnbilledAmount),
		)
	}

	line := fmt.Sprintf("%-28s %s %14s   %s",
		truncate(row.Client.Name, 28), status, rate, unbilled)

	if index == m.Index() {
		line = selectedItemStyle.Render(line)
	} else {
		line = listItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
