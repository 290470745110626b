package invoicelist

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/nhle/sitebook/internal/keys"
	"github.com/nhle/sitebook/internal/model"
	"github.com/nhle/sitebook/internal/report"
	"github.com/nhle/sitebook/internal/theme"
)

// CloseMsg signals the parent to return to the client list.
type CloseMsg struct{}

// SetStatusMsg asks for an invoice status change.
type SetStatusMsg struct {
	InvoiceID string
	Status    string
}

// DeleteInvoiceMsg asks for an invoice to be deleted.
type DeleteInvoiceMsg struct{ InvoiceID string }

// ExportInvoiceMsg asks for an invoice PDF to be rendered and archived.
type ExportInvoiceMsg struct{ InvoiceID string }

// EmailInvoiceMsg asks for an invoice to be mailed to the client.
type EmailInvoiceMsg struct{ InvoiceID string }

// CreateInvoiceMsg asks for an invoice over the chosen entries.
type CreateInvoiceMsg struct {
	ClientID string
	EntryIDs []string
	Notes    string
}

// ExportTimesheetMsg asks for a month's timesheet PDF.
type ExportTimesheetMsg struct {
	ClientID string
	Month    string
}

// LogTimeMsg asks the parent to open the time-entry form.
type LogTimeMsg struct{ ClientID string }

// EditClientMsg asks the parent to open the client form.
type EditClientMsg struct{ ClientID string }

type mode int

const (
	modeList mode = iota
	modeStatus
	modeConfirmDelete
	modeInvoice
	modeTimesheet
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

type formBindings struct {
	status   string
	confirm  bool
	entryIDs []string
	notes    string
	month    string
}

// Model shows one client's invoices and unbilled time.
type Model struct {
	mode         mode
	keys         *keys.KeyMap
	client       model.Client
	invoices     []model.Invoice
	unbilled     []model.TimesheetEntry
	projectNames map[string]string
	currency     string
	now          time.Time
	selectedIdx  int
	form         *huh.Form
	fb           *formBindings
	statusMsg    string
	width        int
	height       int
}

// New creates a new invoice list model.
func New(k *keys.KeyMap, currency string, width, height int) Model {
	return Model{
		mode:     modeList,
		keys:     k,
		currency: currency,
		fb:       &formBindings{},
		width:    width,
		height:   height,
	}
}

// SetData replaces the displayed client data. The selection is kept
// in range.
func (m *Model) SetData(client model.Client, invoices []model.Invoice, unbilled []model.TimesheetEntry, projectNames map[string]string, now time.Time) {
	if client.ID != m.client.ID {
		m.selectedIdx = 0
		m.mode = modeList
		m.statusMsg = ""
	}
	m.client = client
	m.invoices = invoices
	m.unbilled = unbilled
	m.projectNames = projectNames
	m.now = now
	if m.selectedIdx >= len(m.invoices) {
		m.selectedIdx = max(len(m.invoices)-1, 0)
	}
}

// ClientID returns the client being shown.
func (m Model) ClientID() string {
	return m.client.ID
}

// Editing reports whether a form has focus.
func (m Model) Editing() bool {
	return m.mode != modeList
}

// StartTimesheet opens the month prompt, prefilled with month.
func (m *Model) StartTimesheet(month string) tea.Cmd {
	m.fb.month = month
	m.form = m.buildTimesheetForm()
	m.mode = modeTimesheet
	return m.form.Init()
}

// StartInvoice opens the entry picker with every unbilled entry chosen.
func (m *Model) StartInvoice(notes string) tea.Cmd {
	if len(m.unbilled) == 0 {
		m.statusMsg = "Nothing to invoice: no unbilled time"
		return nil
	}
	m.fb.entryIDs = make([]string, len(m.unbilled))
	for i, e := range m.unbilled {
		m.fb.entryIDs[i] = e.ID
	}
	m.fb.notes = notes
	m.form = m.buildInvoiceForm()
	m.mode = modeInvoice
	return m.form.Init()
}

func (m Model) selected() (model.Invoice, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.invoices) {
		return model.Invoice{}, false
	}
	return m.invoices[m.selectedIdx], true
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.mode != modeList {
		return m.updateForm(msg)
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleListKey(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	clientID := m.client.ID

	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(msg, m.keys.Down):
		if len(m.invoices) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.invoices)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.invoices) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.invoices) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.LogTime):
		return m, func() tea.Msg { return LogTimeMsg{ClientID: clientID} }

	case key.Matches(msg, m.keys.EditClient):
		return m, func() tea.Msg { return EditClientMsg{ClientID: clientID} }

	case key.Matches(msg, m.keys.NewInvoice):
		return m, m.StartInvoice("")

	case key.Matches(msg, m.keys.Timesheet):
		return m, m.StartTimesheet(m.now.Format("2006-01"))
	}

	inv, ok := m.selected()
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Status):
		m.fb.status = inv.Status
		m.form = m.buildStatusForm()
		m.mode = modeStatus
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Delete):
		m.fb.confirm = false
		m.form = m.buildConfirmForm(inv)
		m.mode = modeConfirmDelete
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Export):
		return m, func() tea.Msg { return ExportInvoiceMsg{InvoiceID: inv.ID} }

	case key.Matches(msg, m.keys.Email):
		return m, func() tea.Msg { return EmailInvoiceMsg{InvoiceID: inv.ID} }
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		m.mode = modeList
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateAborted:
		m.mode = modeList
		return m, nil
	case huh.StateCompleted:
		done := m.submit()
		m.mode = modeList
		return m, done
	}
	return m, cmd
}

// submit turns the completed form into the matching request message.
func (m Model) submit() tea.Cmd {
	fb := *m.fb
	clientID := m.client.ID
	inv, _ := m.selected()

	switch m.mode {
	case modeStatus:
		if fb.status == inv.Status {
			return nil
		}
		return func() tea.Msg { return SetStatusMsg{InvoiceID: inv.ID, Status: fb.status} }
	case modeConfirmDelete:
		if !fb.confirm {
			return nil
		}
		return func() tea.Msg { return DeleteInvoiceMsg{InvoiceID: inv.ID} }
	case modeInvoice:
		ids := append([]string(nil), fb.entryIDs...)
		return func() tea.Msg {
			return CreateInvoiceMsg{ClientID: clientID, EntryIDs: ids, Notes: strings.TrimSpace(fb.notes)}
		}
	case modeTimesheet:
		return func() tea.Msg { return ExportTimesheetMsg{ClientID: clientID, Month: fb.month} }
	}
	return nil
}

func (m Model) buildStatusForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Invoice status").
				Options(
					huh.NewOption("Draft", model.InvoiceStatusDraft),
					huh.NewOption("Sent", model.InvoiceStatusSent),
					huh.NewOption("Paid", model.InvoiceStatusPaid),
					huh.NewOption("Overdue", model.InvoiceStatusOverdue),
				).
				Value(&m.fb.status),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) buildConfirmForm(inv model.Invoice) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete invoice %s?", inv.InvoiceNumber)).
				Description("Its time entries become unbilled again.").
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) buildInvoiceForm() *huh.Form {
	opts := make([]huh.Option[string], len(m.unbilled))
	for i, e := range m.unbilled {
		label := fmt.Sprintf("%s  %-18s %5sh  %s",
			e.Date.Format("Jan 02"),
			m.projectNames[e.ProjectID],
			report.FormatHours(e.Hours),
			report.FormatMoney(m.currency, e.Amount()),
		)
		if e.Description != "" {
			label += "  " + e.Description
		}
		opts[i] = huh.NewOption(label, e.ID).Selected(true)
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Entries to invoice").
				Options(opts...).
				Value(&m.fb.entryIDs).
				Validate(func(ids []string) error {
					if len(ids) == 0 {
						return fmt.Errorf("choose at least one entry")
					}
					return nil
				}),
			huh.NewText().
				Title("Notes").
				Placeholder("Printed on the invoice (optional)").
				Value(&m.fb.notes),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) buildTimesheetForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Timesheet month").
				Placeholder("YYYY-MM").
				Value(&m.fb.month).
				Validate(ValidateMonth),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

// ValidateMonth accepts YYYY-MM.
func ValidateMonth(s string) error {
	if !monthPattern.MatchString(strings.TrimSpace(s)) {
		return fmt.Errorf("use YYYY-MM")
	}
	return nil
}

// View renders the client's invoices and unbilled time.
func (m Model) View() string {
	if m.mode != modeList && m.form != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.form.View())
	}

	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	b.WriteString(titleStyle.Render(m.client.Name))
	b.WriteString("  ")
	b.WriteString(theme.ClientStatusStyle(m.client.Status).Render(m.client.Status))
	if m.client.Email != "" {
		b.WriteString(theme.DimmedStyle.Render("  " + m.client.Email))
	}
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Invoices"))
	b.WriteString("\n")
	if len(m.invoices) == 0 {
		b.WriteString(theme.DimmedStyle.Italic(true).Render("  No invoices yet. Press 'i' to invoice unbilled time."))
		b.WriteString("\n")
	}
	for i, inv := range m.invoices {
		line := m.invoiceLine(inv)
		if i == m.selectedIdx {
			line = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue).Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Unbilled time"))
	b.WriteString("\n")
	if len(m.unbilled) == 0 {
		b.WriteString(theme.DimmedStyle.Italic(true).Render("  All time is billed. Press 't' to log time."))
		b.WriteString("\n")
	}
	hours, amount := decimal.Zero, decimal.Zero
	for _, e := range m.unbilled {
		hours = hours.Add(e.Hours)
		amount = amount.Add(e.Amount())
		fmt.Fprintf(&b, "  %s  %-20s %6sh  %12s  %s\n",
			e.Date.Format("2006-01-02"),
			m.projectNames[e.ProjectID],
			report.FormatHours(e.Hours),
			report.FormatMoney(m.currency, e.Amount()),
			e.Description,
		)
	}
	if len(m.unbilled) > 0 {
		fmt.Fprintf(&b, "  %s\n", theme.DimmedStyle.Render(fmt.Sprintf("total %sh  %s",
			report.FormatHours(hours), report.FormatMoney(m.currency, amount))))
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Italic(true).Render(m.statusMsg))
	}

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

func (m Model) invoiceLine(inv model.Invoice) string {
	pastDue := inv.IsPastDue(m.now)
	status := inv.Status
	if pastDue && status != model.InvoiceStatusOverdue {
		status += "!"
	}
	return fmt.Sprintf("%-14s %s  due %s  %12s  %s",
		inv.InvoiceNumber,
		inv.Date.Format("2006-01-02"),
		inv.DueDate.Format("2006-01-02"),
		report.FormatMoney(m.currency, inv.Amount),
		theme.InvoiceStatusStyle(inv.Status, pastDue).Render(status),
	)
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}
