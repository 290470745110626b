package clientform

import (
	"fmt"
	"net/mail"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/nhle/sitebook/internal/model"
	"github.com/nhle/sitebook/internal/theme"
)

// ClientSubmittedMsg is dispatched when the form completes. ID is empty
// for a new client.
type ClientSubmittedMsg struct {
	ID     string
	Client model.Client
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	name    string
	email   string
	phone   string
	address string
	status  string
	rate    string
}

// Model is the Bubble Tea model for the client create/edit form.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	editMode bool
	editID   string
	width    int
	height   int
}

// New creates a new client form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{status: model.ClientStatusActive},
		width:  width,
		height: height,
	}
}

// StartCreate initializes the form for a new client.
func (m *Model) StartCreate() tea.Cmd {
	m.editMode = false
	m.editID = ""
	*m.fb = formBindings{status: model.ClientStatusActive, rate: "0"}
	m.form = m.buildForm()
	return m.form.Init()
}

// StartEdit initializes the form with an existing client.
func (m *Model) StartEdit(c model.Client) tea.Cmd {
	m.editMode = true
	m.editID = c.ID
	*m.fb = formBindings{
		name:    c.Name,
		email:   c.Email,
		phone:   c.Phone,
		address: c.Address,
		status:  c.Status,
		rate:    c.HourlyRate.String(),
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the client form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the client form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Client"
	if m.editMode {
		titleText = "Edit Client"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Placeholder("Client or company name").
				Value(&m.fb.name).
				Validate(validateRequired("Name")),
			huh.NewInput().
				Title("Email").
				Placeholder("accounts@example.com").
				Value(&m.fb.email).
				Validate(validateOptionalEmail),
			huh.NewInput().
				Title("Phone").
				Value(&m.fb.phone),
			huh.NewText().
				Title("Address").
				Placeholder("Billing address").
				Value(&m.fb.address),
			huh.NewSelect[string]().
				Title("Status").
				Options(
					huh.NewOption("Active", model.ClientStatusActive),
					huh.NewOption("Pending", model.ClientStatusPending),
					huh.NewOption("Completed", model.ClientStatusCompleted),
				).
				Value(&m.fb.status),
			huh.NewInput().
				Title("Hourly rate").
				Placeholder("0.00").
				Value(&m.fb.rate).
				Validate(ValidateAmount),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	rate, _ := ParseAmount(m.fb.rate)
	c := model.Client{
		Name:       strings.TrimSpace(m.fb.name),
		Email:      strings.TrimSpace(m.fb.email),
		Phone:      strings.TrimSpace(m.fb.phone),
		Address:    strings.TrimSpace(m.fb.address),
		Status:     m.fb.status,
		HourlyRate: rate,
	}
	id := ""
	if m.editMode {
		id = m.editID
		c.ID = id
	}
	return func() tea.Msg { return ClientSubmittedMsg{ID: id, Client: c} }
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

// Patch returns the fields of updated that differ from current.
func Patch(current, updated model.Client) model.ClientPatch {
	var p model.ClientPatch
	if updated.Name != current.Name {
		p.Name = &updated.Name
	}
	if updated.Email != current.Email {
		p.Email = &updated.Email
	}
	if updated.Phone != current.Phone {
		p.Phone = &updated.Phone
	}
	if updated.Address != current.Address {
		p.Address = &updated.Address
	}
	if updated.Status != current.Status {
		p.Status = &updated.Status
	}
	if !updated.HourlyRate.Equal(current.HourlyRate) {
		p.HourlyRate = &updated.HourlyRate
	}
	return p
}

// ParseAmount parses a non-negative money or hours value. Blank is zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number")
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative")
	}
	return d, nil
}

// ValidateAmount is a huh validator for ParseAmount.
func ValidateAmount(s string) error {
	_, err := ParseAmount(s)
	return err
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("invalid email address")
	}
	return nil
}
