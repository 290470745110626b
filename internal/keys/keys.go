package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Search
	Search key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding

	// Manual refresh
	Refresh key.Binding

	// Client actions
	NewClient  key.Binding
	EditClient key.Binding
	LogTime    key.Binding

	// Invoice actions
	NewInvoice key.Binding
	Status     key.Binding
	Delete     key.Binding
	Export     key.Binding
	Email      key.Binding
	Timesheet  key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open client"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		NewClient: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new client"),
		),
		EditClient: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit client"),
		),
		LogTime: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "log time"),
		),
		NewInvoice: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "invoice unbilled"),
		),
		Status: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "set status"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Export: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "export pdf"),
		),
		Email: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "email invoice"),
		),
		Timesheet: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "timesheet pdf"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Back,
		k.Quit, k.Help, k.Search,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Quit},
		{k.Search, k.Command, k.Help, k.Refresh},
		{k.NewClient, k.EditClient, k.LogTime, k.Timesheet},
		{k.NewInvoice, k.Status, k.Delete, k.Export, k.Email},
	}
}
