package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice status constants.
const (
	InvoiceStatusDraft   = "Draft"
	InvoiceStatusSent    = "Sent"
	InvoiceStatusPaid    = "Paid"
	InvoiceStatusOverdue = "Overdue"
)

// Invoice bills a client for an ordered list of items. Amount always
// equals the sum of the item amounts.
type Invoice struct {
	ID            string          `json:"id" db:"id"`
	ClientID      string          `json:"client_id" db:"client_id"`
	InvoiceNumber string          `json:"invoice_number" db:"invoice_number"`
	Date          time.Time       `json:"date" db:"date"`
	DueDate       time.Time       `json:"due_date" db:"due_date"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Status        string          `json:"status" db:"status"`
	Notes         string          `json:"notes" db:"notes"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`

	// Items is loaded from invoice_items, ordered by position.
	Items []InvoiceItem `json:"items" db:"-"`
}

// InvoiceItem is one priced line of an invoice.
type InvoiceItem struct {
	ID               string          `json:"id" db:"id"`
	InvoiceID        string          `json:"invoice_id" db:"invoice_id"`
	Position         int             `json:"position" db:"position"`
	Description      string          `json:"description" db:"description"`
	Hours            decimal.Decimal `json:"hours" db:"hours"`
	Rate             decimal.Decimal `json:"rate" db:"rate"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	TimesheetEntryID *string         `json:"timesheet_entry_id,omitempty" db:"time_entry_id"`
}

// InvoicePatch carries a partial invoice update. Items and amount are
// immutable once the invoice is created.
type InvoicePatch struct {
	Status  *string
	Notes   *string
	DueDate *time.Time
}

// SumItems totals the item amounts.
func SumItems(items []InvoiceItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}

// EntryIDs returns the timesheet entry ids referenced by the items, in order.
func (inv Invoice) EntryIDs() []string {
	ids := make([]string, 0, len(inv.Items))
	for _, it := range inv.Items {
		if it.TimesheetEntryID != nil && *it.TimesheetEntryID != "" {
			ids = append(ids, *it.TimesheetEntryID)
		}
	}
	return ids
}

// IsPastDue reports whether an unpaid invoice is past its due date at now.
// The due date counts as a whole day: the invoice is past due once that
// day has ended.
func (inv Invoice) IsPastDue(now time.Time) bool {
	if inv.Status == InvoiceStatusPaid || inv.Status == InvoiceStatusDraft {
		return false
	}
	return !now.Before(inv.DueDate.AddDate(0, 0, 1))
}

// IsValidInvoiceStatus reports whether s is one of the invoice status constants.
func IsValidInvoiceStatus(s string) bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}
