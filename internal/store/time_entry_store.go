package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nhle/sitebook/internal/model"
)

const timeEntryColumns = "id, client_id, project_id, date, start_time, end_time, hours, rate, description, invoiced, invoice_id, created_at"

// GetTimeEntries retrieves time entries matching the filter, latest work
// date first by default.
func (s *SQLStore) GetTimeEntries(ctx context.Context, filter TimeEntryFilter) ([]model.TimesheetEntry, error) {
	var conditions []string
	var args []interface{}

	if filter.ClientID != nil {
		conditions = append(conditions, "client_id = ?")
		args = append(args, *filter.ClientID)
	}
	if filter.ProjectID != nil {
		conditions = append(conditions, "project_id = ?")
		args = append(args, *filter.ProjectID)
	}
	if filter.InvoiceID != nil {
		conditions = append(conditions, "invoice_id = ?")
		args = append(args, *filter.InvoiceID)
	}
	if filter.Invoiced != nil {
		conditions = append(conditions, "invoiced = ?")
		args = append(args, *filter.Invoiced)
	}

	query := "SELECT " + timeEntryColumns + " FROM time_entries" + whereClause(conditions)
	if filter.SortBy == "" {
		filter.SortDesc = true
	}
	query += orderClause(filter.SortBy, filter.SortDesc, "date", "date", "created_at")

	var entries []model.TimesheetEntry
	if err := s.db.SelectContext(ctx, &entries, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying time entries: %w", err)
	}
	return entries, nil
}

func (s *SQLStore) getTimeEntryByID(ctx context.Context, id string) (*model.TimesheetEntry, error) {
	var entry model.TimesheetEntry
	err := s.db.GetContext(ctx, &entry,
		s.db.Rebind("SELECT "+timeEntryColumns+" FROM time_entries WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("time entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting time entry %s: %w", id, err)
	}
	return &entry, nil
}

// CreateTimeEntry inserts a new time entry and returns the stored row.
func (s *SQLStore) CreateTimeEntry(ctx context.Context, entry model.TimesheetEntry) (*model.TimesheetEntry, error) {
	if entry.ClientID == "" || entry.ProjectID == "" {
		return nil, fmt.Errorf("time entry must reference a client and a project")
	}
	entry.Hours = roundHours(entry.Hours)
	if !entry.Hours.IsPositive() {
		return nil, fmt.Errorf("time entry hours must be positive")
	}
	if entry.Rate.IsNegative() {
		return nil, fmt.Errorf("time entry rate must not be negative")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now()
	}
	entry.Date = dateOnly(entry.Date)
	entry.CreatedAt = time.Now().UTC()

	var created model.TimesheetEntry
	err := s.db.GetContext(ctx, &created, s.db.Rebind(`
		INSERT INTO time_entries (`+timeEntryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+timeEntryColumns),
		entry.ID, entry.ClientID, entry.ProjectID, entry.Date,
		entry.StartTime, entry.EndTime, entry.Hours, entry.Rate,
		entry.Description, entry.Invoiced, nullableID(entry.InvoiceID),
		entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating time entry: %w", err)
	}
	return &created, nil
}

// UpdateTimeEntry applies a partial update and returns the stored row.
func (s *SQLStore) UpdateTimeEntry(ctx context.Context, id string, patch model.TimesheetEntryPatch) (*model.TimesheetEntry, error) {
	var b updateBuilder
	if patch.ProjectID != nil {
		b.set("project_id", *patch.ProjectID)
	}
	if patch.Date != nil {
		b.set("date", dateOnly(*patch.Date))
	}
	if patch.StartTime != nil {
		b.set("start_time", *patch.StartTime)
	}
	if patch.EndTime != nil {
		b.set("end_time", *patch.EndTime)
	}
	if patch.Hours != nil {
		hours := roundHours(*patch.Hours)
		if !hours.IsPositive() {
			return nil, fmt.Errorf("time entry hours must be positive")
		}
		b.set("hours", hours)
	}
	if patch.Rate != nil {
		b.set("rate", *patch.Rate)
	}
	if patch.Description != nil {
		b.set("description", *patch.Description)
	}
	if patch.Invoiced != nil {
		b.set("invoiced", *patch.Invoiced)
	}
	if patch.InvoiceID != nil {
		b.set("invoice_id", nullableID(patch.InvoiceID))
	}
	if b.empty() {
		return s.getTimeEntryByID(ctx, id)
	}

	query := "UPDATE time_entries SET " + strings.Join(b.sets, ", ") +
		" WHERE id = ? RETURNING " + timeEntryColumns

	var updated model.TimesheetEntry
	err := s.db.GetContext(ctx, &updated, s.db.Rebind(query), append(b.args, id)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("time entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("updating time entry %s: %w", id, err)
	}
	return &updated, nil
}

// MarkTimeEntryInvoiced links an unbilled entry to invoiceID. The update
// only matches rows that are still unbilled, so two writers can never bill
// the same entry.
func (s *SQLStore) MarkTimeEntryInvoiced(ctx context.Context, id, invoiceID string) (*model.TimesheetEntry, error) {
	if invoiceID == "" {
		return nil, fmt.Errorf("marking time entry %s: invoice id is required", id)
	}
	var updated model.TimesheetEntry
	err := s.db.GetContext(ctx, &updated, s.db.Rebind(`
		UPDATE time_entries SET invoiced = ?, invoice_id = ?
		WHERE id = ? AND invoiced = ?
		RETURNING `+timeEntryColumns),
		true, invoiceID, id, false,
	)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.getTimeEntryByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("time entry %s is already invoiced: %w", id, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("marking time entry %s: %w", id, err)
	}
	return &updated, nil
}

// DeleteTimeEntry removes a time entry by ID.
func (s *SQLStore) DeleteTimeEntry(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM time_entries WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("deleting time entry %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("time entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// nullableID maps nil and "" to SQL NULL.
func nullableID(id *string) interface{} {
	if id == nil || *id == "" {
		return nil
	}
	return *id
}

// roundHours keeps hours at the two decimal places every backend stores,
// so an entry prices the same on SQLite and Postgres.
func roundHours(h decimal.Decimal) decimal.Decimal {
	return h.Round(2)
}

// dateOnly truncates t to midnight UTC of its calendar day.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
