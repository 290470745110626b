// Package help renders the keyboard reference, grouped by screen.
package help

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/sitebook/internal/keys"
	"github.com/nhle/sitebook/internal/theme"
)

// Commands lists what the ":" palette accepts.
const Commands = "refresh | new client | log time | invoice [notes] | timesheet [YYYY-MM] | quit"

type section struct {
	title    string
	bindings []key.Binding
}

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{keys: k, help: h, width: width, height: height}
}

func (m Model) sections() []section {
	k := m.keys
	return []section{
		{"Clients", []key.Binding{k.Up, k.Down, k.Select, k.Search, k.NewClient, k.EditClient, k.LogTime}},
		{"Client invoices", []key.Binding{k.NewInvoice, k.Status, k.Export, k.Email, k.Delete, k.Timesheet, k.LogTime, k.EditClient}},
		{"Everywhere", []key.Binding{k.Refresh, k.Command, k.Help, k.Back, k.Quit}},
	}
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)

	blocks := []string{titleStyle.MarginBottom(1).Render("Keyboard Shortcuts")}
	for _, s := range m.sections() {
		blocks = append(blocks,
			theme.HeaderStyle.Render(s.title),
			m.help.FullHelpView([][]key.Binding{s.bindings}),
			"",
		)
	}
	blocks = append(blocks, theme.DimmedStyle.Render("Commands: "+Commands))

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, blocks...))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
