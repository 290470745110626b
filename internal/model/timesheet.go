package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimesheetEntry is a block of billable work logged against a project.
// Invoiced is true exactly when InvoiceID points at an invoice that has
// an item referencing this entry.
type TimesheetEntry struct {
	ID          string          `json:"id" db:"id"`
	ClientID    string          `json:"client_id" db:"client_id"`
	ProjectID   string          `json:"project_id" db:"project_id"`
	Date        time.Time       `json:"date" db:"date"`
	StartTime   string          `json:"start_time" db:"start_time"`
	EndTime     string          `json:"end_time" db:"end_time"`
	Hours       decimal.Decimal `json:"hours" db:"hours"`
	Rate        decimal.Decimal `json:"rate" db:"rate"`
	Description string          `json:"description" db:"description"`
	Invoiced    bool            `json:"invoiced" db:"invoiced"`
	InvoiceID   *string         `json:"invoice_id,omitempty" db:"invoice_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Amount is the billable value of the entry, rounded to cents.
func (e TimesheetEntry) Amount() decimal.Decimal {
	return LineAmount(e.Hours, e.Rate)
}

// TimesheetEntryPatch carries a partial entry update. Nil fields are left
// unchanged. A non-nil InvoiceID pointing at "" clears the reference.
type TimesheetEntryPatch struct {
	ProjectID   *string
	Date        *time.Time
	StartTime   *string
	EndTime     *string
	Hours       *decimal.Decimal
	Rate        *decimal.Decimal
	Description *string
	Invoiced    *bool
	InvoiceID   *string
}

// LineAmount multiplies hours by rate and rounds half away from zero to cents.
func LineAmount(hours, rate decimal.Decimal) decimal.Decimal {
	return hours.Mul(rate).Round(2)
}
