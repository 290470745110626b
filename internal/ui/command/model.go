package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/sitebook/internal/theme"
)

// CommandMsg is emitted when the user executes a command. Name is the
// command with any argument removed.
type CommandMsg struct {
	Name string
	Arg  string
}

// known lists the multi-word commands so that Parse can split off the
// argument.
var known = []string{
	"refresh",
	"quit",
	"new client",
	"log time",
	"invoice",
	"timesheet",
}

// Parse splits a command line into a known command and its argument.
// Unknown input is returned whole as Name.
func Parse(line string) CommandMsg {
	line = strings.Join(strings.Fields(line), " ")
	for _, name := range known {
		if line == name {
			return CommandMsg{Name: name}
		}
		if strings.HasPrefix(line, name+" ") {
			return CommandMsg{Name: name, Arg: strings.TrimPrefix(line, name+" ")}
		}
	}
	return CommandMsg{Name: line}
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line != "" {
				return m, func() tea.Msg {
					return Parse(line)
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	content := lipgloss.JoinVertical(lipgloss.Left, title, input)

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
