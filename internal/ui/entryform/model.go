package entryform

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/nhle/sitebook/internal/model"
	"github.com/nhle/sitebook/internal/theme"
	"github.com/nhle/sitebook/internal/ui/clientform"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// EntrySubmittedMsg is dispatched when the form completes. When
// NewProjectName is set the project must be created first and
// Entry.ProjectID is empty.
type EntrySubmittedMsg struct {
	ClientID       string
	NewProjectName string
	Entry          model.TimesheetEntry
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

type formBindings struct {
	projectID      string
	newProjectName string
	date           string
	startTime      string
	endTime        string
	hours          string
	rate           string
	description    string
}

// Model is the time-entry form.
type Model struct {
	form       *huh.Form
	fb         *formBindings
	clientID   string
	clientName string
	projects   []model.Project
	width      int
	height     int
}

// New creates a new entry form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start initializes the form for logging time against one of the
// client's projects.
func (m *Model) Start(client model.Client, projects []model.Project, today time.Time) tea.Cmd {
	m.clientID = client.ID
	m.clientName = client.Name
	m.projects = projects
	*m.fb = formBindings{date: today.Format(dateLayout)}
	if len(projects) > 0 {
		m.fb.projectID = projects[0].ID
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the entry form.
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

// View renders the entry form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Log time: "+m.clientName) + "\n" + m.form.View()

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
	opts := make([]huh.Option[string], 0, len(m.projects)+1)
	for _, p := range m.projects {
		opts = append(opts, huh.NewOption(p.Name, p.ID))
	}
	opts = append(opts, huh.NewOption("+ New project", ""))

	fb := m.fb
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Project").
				Options(opts...).
				Value(&fb.projectID),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("New project name").
				Value(&fb.newProjectName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("project name is required")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return fb.projectID != "" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Date").
				Placeholder("YYYY-MM-DD").
				Value(&fb.date).
				Validate(validateDate),
			huh.NewInput().
				Title("Start").
				Placeholder("HH:MM (optional)").
				Value(&fb.startTime).
				Validate(validateOptionalClock),
			huh.NewInput().
				Title("End").
				Placeholder("HH:MM (optional)").
				Value(&fb.endTime).
				Validate(validateOptionalClock),
			huh.NewInput().
				Title("Hours").
				Placeholder("blank to use start and end").
				Value(&fb.hours).
				Validate(clientform.ValidateAmount),
			huh.NewInput().
				Title("Rate").
				Placeholder("blank for the project rate").
				Value(&fb.rate).
				Validate(clientform.ValidateAmount),
			huh.NewText().
				Title("Description").
				Placeholder("What was done").
				Value(&fb.description),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	entry, err := BuildEntry(m.fb.date, m.fb.startTime, m.fb.endTime, m.fb.hours, m.fb.rate, m.fb.description)
	if err != nil {
		return func() tea.Msg { return errMsg{err} }
	}
	entry.ClientID = m.clientID
	entry.ProjectID = m.fb.projectID

	msg := EntrySubmittedMsg{ClientID: m.clientID, Entry: entry}
	if m.fb.projectID == "" {
		msg.NewProjectName = strings.TrimSpace(m.fb.newProjectName)
	}
	return func() tea.Msg { return msg }
}

// errMsg reports a submission the validators could not catch, such as an
// end time before the start time.
type errMsg struct{ err error }

// IsErr reports whether msg is a form submission error.
func IsErr(msg tea.Msg) (error, bool) {
	e, ok := msg.(errMsg)
	if !ok {
		return nil, false
	}
	return e.err, true
}

// BuildEntry converts the raw form fields into an entry. Hours come from
// the hours field, or from start and end when it is blank.
func BuildEntry(date, start, end, hours, rate, description string) (model.TimesheetEntry, error) {
	day, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return model.TimesheetEntry{}, fmt.Errorf("invalid date, use YYYY-MM-DD")
	}
	h, err := clientform.ParseAmount(hours)
	if err != nil {
		return model.TimesheetEntry{}, fmt.Errorf("hours: %w", err)
	}
	r, err := clientform.ParseAmount(rate)
	if err != nil {
		return model.TimesheetEntry{}, fmt.Errorf("rate: %w", err)
	}

	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if h.IsZero() {
		if start == "" || end == "" {
			return model.TimesheetEntry{}, fmt.Errorf("enter hours or both start and end")
		}
		h, err = span(start, end)
		if err != nil {
			return model.TimesheetEntry{}, err
		}
	}

	return model.TimesheetEntry{
		Date:        day,
		StartTime:   start,
		EndTime:     end,
		Hours:       h,
		Rate:        r,
		Description: strings.TrimSpace(description),
	}, nil
}

// span returns the hours between two HH:MM clock times on the same day.
func span(start, end string) (decimal.Decimal, error) {
	s, err := time.Parse(clockLayout, start)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid start time")
	}
	e, err := time.Parse(clockLayout, end)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid end time")
	}
	if !e.After(s) {
		return decimal.Zero, fmt.Errorf("end time must be after start time")
	}
	minutes := decimal.NewFromInt(int64(e.Sub(s) / time.Minute))
	return minutes.Div(decimal.NewFromInt(60)).Round(2), nil
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

func validateDate(s string) error {
	if _, err := time.Parse(dateLayout, strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}

func validateOptionalClock(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := time.Parse(clockLayout, s); err != nil {
		return fmt.Errorf("invalid time, use HH:MM")
	}
	return nil
}
