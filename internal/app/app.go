// Package app is the root Bubble Tea model. It routes between views and
// turns their requests into ledger and document operations.
package app

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/sitebook/internal/keys"
	"github.com/nhle/sitebook/internal/ledger"
	"github.com/nhle/sitebook/internal/model"
	"github.com/nhle/sitebook/internal/report"
	appsync "github.com/nhle/sitebook/internal/sync"
	"github.com/nhle/sitebook/internal/theme"
	"github.com/nhle/sitebook/internal/ui"
	"github.com/nhle/sitebook/internal/ui/clientform"
	"github.com/nhle/sitebook/internal/ui/clientlist"
	"github.com/nhle/sitebook/internal/ui/command"
	"github.com/nhle/sitebook/internal/ui/entryform"
	helpview "github.com/nhle/sitebook/internal/ui/help"
	"github.com/nhle/sitebook/internal/ui/invoicelist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewClients ViewState = iota
	ViewClient
	ViewClientForm
	ViewEntryForm
	ViewHelp
	ViewCommand
)

// Model is the root Bubble Tea model that manages view routing,
// layout, and access to the ledger.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	repo         *ledger.Repository
	docs         *Documents
	poller       *appsync.Poller
	billing      model.BillingConfig
	now          func() time.Time
	keys         *keys.KeyMap
	clientList   clientlist.Model
	detail       invoicelist.Model
	clientForm   clientform.Model
	entryForm    entryform.Model
	helpView     helpview.Model
	commandView  command.Model
	ready        bool
	statusMsg    string
	statusErr    bool
}

// New creates the root model. The repository should already be loaded.
func New(repo *ledger.Repository, docs *Documents, poller *appsync.Poller, billing model.BillingConfig) Model {
	k := keys.DefaultKeyMap()
	m := Model{
		currentView: ViewClients,
		repo:        repo,
		docs:        docs,
		poller:      poller,
		billing:     billing,
		now:         time.Now,
		keys:        k,
		clientList:  clientlist.New(k, 80, 24),
		detail:      invoicelist.New(k, billing.Currency, 80, 24),
		clientForm:  clientform.New(80, 24),
		entryForm:   entryform.New(80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
	}
	m.syncViews()
	return m
}

// Init starts the background refresh.
func (m Model) Init() tea.Cmd {
	return m.poller.Start()
}

// syncViews pushes the repository's current state into the views.
func (m *Model) syncViews() {
	snap := m.repo.Snapshot()

	rows := make([]clientlist.Row, len(snap.Clients))
	for i, c := range snap.Clients {
		rows[i] = clientlist.Row{
			Client:         c,
			UnbilledHours:  snap.TotalUnbilledHours(c.ID),
			UnbilledAmount: snap.TotalUnbilledAmount(c.ID),
			Currency:       m.billing.Currency,
		}
	}
	m.clientList.SetRows(rows)

	if id := m.detail.ClientID(); id != "" {
		client, ok := snap.Client(id)
		if !ok {
			if m.currentView == ViewClient {
				m.currentView = ViewClients
			}
			return
		}
		names := make(map[string]string, len(snap.Projects))
		for _, p := range snap.Projects {
			names[p.ID] = p.Name
		}
		m.detail.SetData(client, snap.InvoicesByClient(id), snap.UnbilledTimesheets(id), names, m.now())
	}
}

func (m *Model) openClient(id string) {
	snap := m.repo.Snapshot()
	client, ok := snap.Client(id)
	if !ok {
		return
	}
	m.detail.SetData(client, nil, nil, nil, m.now())
	m.syncViews()
	m.currentView = ViewClient
}

func (m *Model) startClientForm(id string) tea.Cmd {
	m.previousView = m.currentView
	m.currentView = ViewClientForm
	if id == "" {
		return m.clientForm.StartCreate()
	}
	client, ok := m.repo.Snapshot().Client(id)
	if !ok {
		m.currentView = m.previousView
		return nil
	}
	return m.clientForm.StartEdit(client)
}

func (m *Model) startEntryForm(id string) tea.Cmd {
	snap := m.repo.Snapshot()
	client, ok := snap.Client(id)
	if !ok {
		return nil
	}
	m.previousView = m.currentView
	m.currentView = ViewEntryForm
	return m.entryForm.Start(client, snap.ProjectsByClient(id), m.now())
}

// focusClientID is the client the user is looking at: the open client,
// or the highlighted row in the list.
func (m Model) focusClientID() string {
	if m.currentView == ViewClient {
		return m.detail.ClientID()
	}
	if row, ok := m.clientList.SelectedClient(); ok {
		return row.Client.ID
	}
	return ""
}

func (m *Model) back() {
	m.currentView = m.previousView
	if m.currentView == ViewClientForm || m.currentView == ViewEntryForm {
		m.currentView = ViewClients
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.clientList.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.clientForm.SetSize(w, h)
		m.entryForm.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case appsync.RefreshedMsg:
		m.syncViews()
		if msg.Error != nil {
			m.setStatus("", fmt.Errorf("refresh: %w", msg.Error))
		}
		return m, m.poller.WaitForNextResult()

	case opResultMsg:
		m.setStatus(msg.status, msg.err)
		m.syncViews()
		return m, nil

	case clientlist.SelectedClientMsg:
		m.openClient(msg.ClientID)
		return m, nil

	case invoicelist.CloseMsg:
		m.currentView = ViewClients
		return m, nil

	case invoicelist.LogTimeMsg:
		return m, m.startEntryForm(msg.ClientID)

	case invoicelist.EditClientMsg:
		return m, m.startClientForm(msg.ClientID)

	case invoicelist.CreateInvoiceMsg:
		return m, m.createInvoice(msg)

	case invoicelist.SetStatusMsg:
		return m, m.setInvoiceStatus(msg)

	case invoicelist.DeleteInvoiceMsg:
		return m, m.deleteInvoice(msg)

	case invoicelist.ExportInvoiceMsg:
		return m, m.exportInvoice(msg)

	case invoicelist.EmailInvoiceMsg:
		return m, m.emailInvoice(msg)

	case invoicelist.ExportTimesheetMsg:
		return m, m.exportTimesheet(msg)

	case clientform.ClientSubmittedMsg:
		m.back()
		return m, m.saveClient(msg)

	case clientform.CancelMsg:
		m.back()
		return m, nil

	case entryform.EntrySubmittedMsg:
		m.back()
		return m, m.logTime(msg)

	case entryform.CancelMsg:
		m.back()
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(msg)

	case tea.KeyMsg:
		if !m.capturesInput() {
			m.statusMsg = ""
		}
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
	}

	if err, ok := entryform.IsErr(msg); ok {
		m.back()
		m.setStatus("", err)
		return m, nil
	}

	return m.updateActiveView(msg)
}

// capturesInput reports whether the active view is taking text input, in
// which case single-letter shortcuts go to it.
func (m Model) capturesInput() bool {
	switch m.currentView {
	case ViewClientForm, ViewEntryForm, ViewCommand:
		return true
	case ViewClient:
		return m.detail.Editing()
	case ViewClients:
		return m.clientList.Searching()
	}
	return false
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		m.poller.Stop()
		return tea.Quit, true
	}
	if m.capturesInput() {
		if m.currentView == ViewCommand && msg.String() == "esc" {
			m.currentView = m.previousView
			return nil, true
		}
		return nil, false
	}

	switch msg.String() {
	case "q":
		if m.currentView == ViewClients {
			m.poller.Stop()
			return tea.Quit, true
		}

	case "?":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case ":":
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m.commandView.Focus(), true

	case "esc":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}

	case "r":
		if m.currentView == ViewClients || m.currentView == ViewClient {
			m.setStatus("Refreshing...", nil)
			return m.poller.Refresh(), true
		}

	case "n":
		if m.currentView == ViewClients {
			return m.startClientForm(""), true
		}

	case "e":
		if m.currentView == ViewClients {
			if id := m.focusClientID(); id != "" {
				return m.startClientForm(id), true
			}
		}

	case "t":
		if m.currentView == ViewClients {
			if id := m.focusClientID(); id != "" {
				return m.startEntryForm(id), true
			}
		}
	}
	return nil, false
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(cmd command.CommandMsg) tea.Cmd {
	switch cmd.Name {
	case "refresh":
		m.setStatus("Refreshing...", nil)
		return m.poller.Refresh()
	case "quit":
		m.poller.Stop()
		return tea.Quit
	case "new client":
		return m.startClientForm("")
	case "log time", "invoice", "timesheet":
	default:
		m.setStatus("", fmt.Errorf("unknown command %q", cmd.Name))
		return nil
	}

	id := m.focusClientID()
	if id == "" {
		m.setStatus("", fmt.Errorf("%s: select a client first", cmd.Name))
		return nil
	}
	switch cmd.Name {
	case "log time":
		return m.startEntryForm(id)
	case "invoice":
		m.openClient(id)
		return m.detail.StartInvoice(cmd.Arg)
	default:
		m.openClient(id)
		month := cmd.Arg
		if month == "" {
			month = m.now().Format(PeriodLayout)
		}
		if err := invoicelist.ValidateMonth(month); err != nil {
			m.setStatus("", fmt.Errorf("timesheet: %w", err))
			return nil
		}
		return m.exportTimesheet(invoicelist.ExportTimesheetMsg{ClientID: id, Month: month})
	}
}

func (m *Model) setStatus(status string, err error) {
	if err != nil {
		m.statusMsg = err.Error()
		m.statusErr = true
	} else {
		m.statusMsg = status
		m.statusErr = false
	}
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewClients:
		m.clientList, cmd = m.clientList.Update(msg)
	case ViewClient:
		m.detail, cmd = m.detail.Update(msg)
	case ViewClientForm:
		m.clientForm, cmd = m.clientForm.Update(msg)
	case ViewEntryForm:
		m.entryForm, cmd = m.entryForm.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("SiteBook", m.syncStatus(), m.stats())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewClients:
		return m.clientList.View()
	case ViewClient:
		return m.detail.View()
	case ViewClientForm:
		return m.clientForm.View()
	case ViewEntryForm:
		return m.entryForm.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// stats returns the dashboard figures shown under the title bar.
func (m Model) stats() []ui.Stat {
	d := m.repo.Dashboard(m.now())
	cur := m.billing.Currency
	return []ui.Stat{
		{Label: "active", Value: fmt.Sprint(d.ActiveClients)},
		{Label: "unbilled", Value: report.FormatHours(d.UnbilledHours) + "h " + report.FormatMoney(cur, d.UnbilledAmount)},
		{Label: "outstanding", Value: report.FormatMoney(cur, d.OutstandingAmount)},
		{Label: "paid", Value: report.FormatMoney(cur, d.PaidAmount)},
		{Label: "past due", Value: fmt.Sprint(d.PastDueInvoices), Alert: d.PastDueInvoices > 0},
	}
}

// syncStatus describes the background refresh state.
func (m Model) syncStatus() string {
	st := m.poller.Status()
	switch st.State {
	case appsync.SyncRunning:
		return "refreshing"
	case appsync.SyncError:
		return "⚠ offline, showing last data"
	}
	if st.LastSync.IsZero() {
		return "loaded"
	}
	return "updated " + st.LastSync.Format("15:04")
}

// keyHints returns keyboard shortcut hints, or the last status message.
func (m Model) keyHints() string {
	if m.statusMsg != "" && (m.currentView == ViewClients || m.currentView == ViewClient) {
		if m.statusErr {
			return theme.ErrorStyle.Render(m.statusMsg)
		}
		return theme.SuccessStyle.Render(m.statusMsg)
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewClientForm, ViewEntryForm:
		return "enter next | esc cancel"
	case ViewClient:
		return "t log time | i invoice | s status | x pdf | m email | d delete | T timesheet | esc back"
	default:
		return "q quit | ? help | n new | e edit | t log time | enter open | / search | : command"
	}
}
