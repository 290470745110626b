package store

import (
	"context"
	"errors"

	"github.com/nhle/sitebook/internal/model"
)

// ErrNotFound is returned when an update or delete targets a missing row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a guarded update finds the row already in
// a state another writer put it in.
var ErrConflict = errors.New("conflicting update")

// ClientFilter controls filtering and sorting for client queries.
type ClientFilter struct {
	Status   *string
	SortBy   string // "created_at" (default), "name", "status"
	SortDesc bool
}

// ProjectFilter controls filtering and sorting for project queries.
type ProjectFilter struct {
	ClientID *string
	Status   *string
	SortBy   string // "created_at" (default), "name", "progress"
	SortDesc bool
}

// TimeEntryFilter controls filtering and sorting for time entry queries.
type TimeEntryFilter struct {
	ClientID  *string
	ProjectID *string
	InvoiceID *string
	Invoiced  *bool
	SortBy    string // "date" (default), "created_at"
	SortDesc  bool
}

// InvoiceFilter controls filtering and sorting for invoice queries.
type InvoiceFilter struct {
	ClientID *string
	Status   *string
	SortBy   string // "created_at" (default), "date", "invoice_number"
	SortDesc bool
}

// Store defines the persistence interface for the four billing tables.
// Every Create and Update returns the row as stored, so callers never
// need to guess at generated ids, timestamps or invoice numbers.
type Store interface {
	// === Clients ===

	GetClients(ctx context.Context, filter ClientFilter) ([]model.Client, error)
	GetClientByID(ctx context.Context, id string) (*model.Client, error)
	CreateClient(ctx context.Context, client model.Client) (*model.Client, error)
	UpdateClient(ctx context.Context, id string, patch model.ClientPatch) (*model.Client, error)
	DeleteClient(ctx context.Context, id string) error

	// === Projects ===

	GetProjects(ctx context.Context, filter ProjectFilter) ([]model.Project, error)
	CreateProject(ctx context.Context, project model.Project) (*model.Project, error)

	// === Time entries ===

	GetTimeEntries(ctx context.Context, filter TimeEntryFilter) ([]model.TimesheetEntry, error)
	CreateTimeEntry(ctx context.Context, entry model.TimesheetEntry) (*model.TimesheetEntry, error)
	UpdateTimeEntry(ctx context.Context, id string, patch model.TimesheetEntryPatch) (*model.TimesheetEntry, error)

	// MarkTimeEntryInvoiced links an unbilled entry to invoiceID. It fails
	// with ErrConflict when the entry is already invoiced.
	MarkTimeEntryInvoiced(ctx context.Context, id, invoiceID string) (*model.TimesheetEntry, error)
	DeleteTimeEntry(ctx context.Context, id string) error

	// === Invoices ===

	GetInvoices(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, error)
	GetInvoiceByID(ctx context.Context, id string) (*model.Invoice, error)

	// CreateInvoice inserts the invoice and its items in one transaction
	// and assigns the next number from the per-year sequence. Any
	// InvoiceNumber on the argument is ignored.
	CreateInvoice(ctx context.Context, invoice model.Invoice) (*model.Invoice, error)
	UpdateInvoice(ctx context.Context, id string, patch model.InvoicePatch) (*model.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error

	Close() error
}
