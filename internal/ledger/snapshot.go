package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhle/sitebook/internal/model"
)

// Snapshot is a read-only view of the four collections at one point in
// time. Snapshots handed out by Repository.Snapshot are deep copies, so
// callers may keep or modify them freely.
type Snapshot struct {
	Clients    []model.Client
	Projects   []model.Project
	Timesheets []model.TimesheetEntry
	Invoices   []model.Invoice
	LoadedAt   time.Time
}

// Dashboard summarises the business at a point in time.
type Dashboard struct {
	ActiveClients     int
	UnbilledHours     decimal.Decimal
	UnbilledAmount    decimal.Decimal
	OutstandingAmount decimal.Decimal
	PaidAmount        decimal.Decimal
	PastDueInvoices   int
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Clients:    append([]model.Client(nil), s.Clients...),
		Projects:   append([]model.Project(nil), s.Projects...),
		Timesheets: make([]model.TimesheetEntry, len(s.Timesheets)),
		Invoices:   make([]model.Invoice, len(s.Invoices)),
		LoadedAt:   s.LoadedAt,
	}
	for i, e := range s.Timesheets {
		out.Timesheets[i] = cloneEntry(e)
	}
	for i, inv := range s.Invoices {
		out.Invoices[i] = cloneInvoice(inv)
	}
	return out
}

func cloneEntry(e model.TimesheetEntry) model.TimesheetEntry {
	e.InvoiceID = cloneID(e.InvoiceID)
	return e
}

func cloneInvoice(inv model.Invoice) model.Invoice {
	items := make([]model.InvoiceItem, len(inv.Items))
	for i, it := range inv.Items {
		it.TimesheetEntryID = cloneID(it.TimesheetEntryID)
		items[i] = it
	}
	inv.Items = items
	return inv
}

func cloneID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// Client returns the client with the given id.
func (s Snapshot) Client(id string) (model.Client, bool) {
	for _, c := range s.Clients {
		if c.ID == id {
			return c, true
		}
	}
	return model.Client{}, false
}

// Project returns the project with the given id.
func (s Snapshot) Project(id string) (model.Project, bool) {
	for _, p := range s.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return model.Project{}, false
}

// Entry returns the timesheet entry with the given id.
func (s Snapshot) Entry(id string) (model.TimesheetEntry, bool) {
	for _, e := range s.Timesheets {
		if e.ID == id {
			return cloneEntry(e), true
		}
	}
	return model.TimesheetEntry{}, false
}

// Invoice returns the invoice with the given id.
func (s Snapshot) Invoice(id string) (model.Invoice, bool) {
	for _, inv := range s.Invoices {
		if inv.ID == id {
			return cloneInvoice(inv), true
		}
	}
	return model.Invoice{}, false
}

// InvoiceByNumber returns the invoice with the given number.
func (s Snapshot) InvoiceByNumber(number string) (model.Invoice, bool) {
	for _, inv := range s.Invoices {
		if inv.InvoiceNumber == number {
			return cloneInvoice(inv), true
		}
	}
	return model.Invoice{}, false
}

// ProjectsByClient returns the client's projects, newest first.
func (s Snapshot) ProjectsByClient(clientID string) []model.Project {
	var out []model.Project
	for _, p := range s.Projects {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	return out
}

// TimesheetsByClient returns all of the client's entries, latest first.
func (s Snapshot) TimesheetsByClient(clientID string) []model.TimesheetEntry {
	var out []model.TimesheetEntry
	for _, e := range s.Timesheets {
		if e.ClientID == clientID {
			out = append(out, cloneEntry(e))
		}
	}
	return out
}

// UnbilledTimesheets returns the client's entries not yet on an invoice.
func (s Snapshot) UnbilledTimesheets(clientID string) []model.TimesheetEntry {
	var out []model.TimesheetEntry
	for _, e := range s.Timesheets {
		if e.ClientID == clientID && !e.Invoiced {
			out = append(out, cloneEntry(e))
		}
	}
	return out
}

// InvoicesByClient returns the client's invoices, newest first.
func (s Snapshot) InvoicesByClient(clientID string) []model.Invoice {
	var out []model.Invoice
	for _, inv := range s.Invoices {
		if inv.ClientID == clientID {
			out = append(out, cloneInvoice(inv))
		}
	}
	return out
}

// TotalUnbilledHours sums the hours of the client's unbilled entries.
func (s Snapshot) TotalUnbilledHours(clientID string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range s.Timesheets {
		if e.ClientID == clientID && !e.Invoiced {
			total = total.Add(e.Hours)
		}
	}
	return total
}

// TotalUnbilledAmount sums the cent-rounded amounts of the client's
// unbilled entries, priced the same way invoice items are.
func (s Snapshot) TotalUnbilledAmount(clientID string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range s.Timesheets {
		if e.ClientID == clientID && !e.Invoiced {
			total = total.Add(e.Amount())
		}
	}
	return total
}

// Dashboard computes the headline figures at now.
func (s Snapshot) Dashboard(now time.Time) Dashboard {
	d := Dashboard{
		UnbilledHours:     decimal.Zero,
		UnbilledAmount:    decimal.Zero,
		OutstandingAmount: decimal.Zero,
		PaidAmount:        decimal.Zero,
	}
	for _, c := range s.Clients {
		if c.Status == model.ClientStatusActive {
			d.ActiveClients++
		}
	}
	for _, e := range s.Timesheets {
		if !e.Invoiced {
			d.UnbilledHours = d.UnbilledHours.Add(e.Hours)
			d.UnbilledAmount = d.UnbilledAmount.Add(e.Amount())
		}
	}
	for _, inv := range s.Invoices {
		switch inv.Status {
		case model.InvoiceStatusSent, model.InvoiceStatusOverdue:
			d.OutstandingAmount = d.OutstandingAmount.Add(inv.Amount)
		case model.InvoiceStatusPaid:
			d.PaidAmount = d.PaidAmount.Add(inv.Amount)
		}
		if inv.IsPastDue(now) {
			d.PastDueInvoices++
		}
	}
	return d
}
