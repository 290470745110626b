package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/sitebook/internal/model"
)

const (
	invoiceColumns     = "id, client_id, invoice_number, date, due_date, amount, status, notes, created_at"
	invoiceItemColumns = "id, invoice_id, position, description, hours, rate, amount, time_entry_id"
)

// FormatInvoiceNumber renders the per-year sequence value as INV-YYYY-NNNN.
func FormatInvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%04d", year, seq)
}

// GetInvoices retrieves invoices matching the filter, newest first by
// default, with their items attached.
func (s *SQLStore) GetInvoices(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, error) {
	var conditions []string
	var args []interface{}

	if filter.ClientID != nil {
		conditions = append(conditions, "client_id = ?")
		args = append(args, *filter.ClientID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}

	query := "SELECT " + invoiceColumns + " FROM invoices" + whereClause(conditions)
	if filter.SortBy == "" {
		filter.SortDesc = true
	}
	query += orderClause(filter.SortBy, filter.SortDesc, "created_at", "created_at", "date", "invoice_number")

	var invoices []model.Invoice
	if err := s.db.SelectContext(ctx, &invoices, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying invoices: %w", err)
	}

	if err := s.attachItems(ctx, s.db, invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

// GetInvoiceByID retrieves a single invoice with its items.
func (s *SQLStore) GetInvoiceByID(ctx context.Context, id string) (*model.Invoice, error) {
	return s.getInvoice(ctx, s.db, id)
}

// CreateInvoice assigns the next invoice number for the invoice's year and
// inserts the invoice with its items, all in one transaction.
func (s *SQLStore) CreateInvoice(ctx context.Context, invoice model.Invoice) (*model.Invoice, error) {
	if invoice.ClientID == "" {
		return nil, fmt.Errorf("invoice must belong to a client")
	}
	if len(invoice.Items) == 0 {
		return nil, fmt.Errorf("invoice must have at least one item")
	}
	if !invoice.Amount.Equal(model.SumItems(invoice.Items)) {
		return nil, fmt.Errorf("invoice amount %s does not match item total %s",
			invoice.Amount, model.SumItems(invoice.Items))
	}
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	if invoice.Status == "" {
		invoice.Status = model.InvoiceStatusDraft
	}
	invoice.Date = dateOnly(invoice.Date)
	invoice.DueDate = dateOnly(invoice.DueDate)
	invoice.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	year := invoice.Date.Year()
	var seq int64
	err = tx.GetContext(ctx, &seq, tx.Rebind(`
		INSERT INTO invoice_sequences (year, last_value) VALUES (?, 1)
		ON CONFLICT (year) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value`), year)
	if err != nil {
		return nil, fmt.Errorf("allocating invoice number: %w", err)
	}
	invoice.InvoiceNumber = FormatInvoiceNumber(year, seq)

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		invoice.ID, invoice.ClientID, invoice.InvoiceNumber, invoice.Date,
		invoice.DueDate, invoice.Amount, invoice.Status, invoice.Notes,
		invoice.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating invoice %s: %w", invoice.InvoiceNumber, err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO invoice_items (`+invoiceItemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return nil, fmt.Errorf("preparing item insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range invoice.Items {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		_, err := stmt.ExecContext(ctx,
			item.ID, invoice.ID, i+1, item.Description,
			item.Hours, item.Rate, item.Amount, nullableID(item.TimesheetEntryID),
		)
		if err != nil {
			return nil, fmt.Errorf("inserting item %d of invoice %s: %w", i+1, invoice.InvoiceNumber, err)
		}
	}

	created, err := s.getInvoice(ctx, tx, invoice.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing invoice %s: %w", invoice.InvoiceNumber, err)
	}
	return created, nil
}

// UpdateInvoice applies a partial update and returns the stored row.
func (s *SQLStore) UpdateInvoice(ctx context.Context, id string, patch model.InvoicePatch) (*model.Invoice, error) {
	var b updateBuilder
	if patch.Status != nil {
		b.set("status", *patch.Status)
	}
	if patch.Notes != nil {
		b.set("notes", *patch.Notes)
	}
	if patch.DueDate != nil {
		b.set("due_date", dateOnly(*patch.DueDate))
	}
	if b.empty() {
		return s.GetInvoiceByID(ctx, id)
	}

	query := "UPDATE invoices SET " + strings.Join(b.sets, ", ") + " WHERE id = ?"
	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), append(b.args, id)...)
	if err != nil {
		return nil, fmt.Errorf("updating invoice %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, fmt.Errorf("invoice %s: %w", id, ErrNotFound)
	}
	return s.GetInvoiceByID(ctx, id)
}

// DeleteInvoice removes an invoice and its items. Fails while any time
// entry still references the invoice.
func (s *SQLStore) DeleteInvoice(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM invoices WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("deleting invoice %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("invoice %s: %w", id, ErrNotFound)
	}
	return nil
}

// getInvoice loads one invoice with items through q, which may be the
// pool or an open transaction.
func (s *SQLStore) getInvoice(ctx context.Context, q sqlx.ExtContext, id string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := sqlx.GetContext(ctx, q, &invoice,
		q.Rebind("SELECT "+invoiceColumns+" FROM invoices WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting invoice %s: %w", id, err)
	}

	invoices := []model.Invoice{invoice}
	if err := s.attachItems(ctx, q, invoices); err != nil {
		return nil, err
	}
	return &invoices[0], nil
}

// attachItems loads the items of every invoice in one query and assigns
// them in position order.
func (s *SQLStore) attachItems(ctx context.Context, q sqlx.ExtContext, invoices []model.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}

	ids := make([]string, len(invoices))
	byID := make(map[string]int, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
		byID[inv.ID] = i
	}

	query, args, err := sqlx.In(
		"SELECT "+invoiceItemColumns+" FROM invoice_items WHERE invoice_id IN (?) ORDER BY invoice_id, position",
		ids,
	)
	if err != nil {
		return fmt.Errorf("building item query: %w", err)
	}

	var items []model.InvoiceItem
	if err := sqlx.SelectContext(ctx, q, &items, q.Rebind(query), args...); err != nil {
		return fmt.Errorf("querying invoice items: %w", err)
	}

	for _, item := range items {
		idx := byID[item.InvoiceID]
		invoices[idx].Items = append(invoices[idx].Items, item)
	}
	return nil
}
