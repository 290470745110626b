package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nhle/sitebook/internal/invoice"
	"github.com/nhle/sitebook/internal/model"
	"github.com/nhle/sitebook/internal/store"
)

// CreateInvoiceResult is the outcome of CreateInvoice. Skipped lists the
// candidate entries that were left off, with the reason.
type CreateInvoiceResult struct {
	Invoice *model.Invoice
	Skipped []invoice.Skipped
}

// CreateInvoice bills the given entries of a client on a new Draft invoice.
//
// Entries that are missing, belong to another client or are already
// invoiced are skipped and reported in the result, so repeating a call
// with overlapping ids never bills an entry twice. When nothing is left to
// bill the result carries the skips and the error is ErrNoBillableEntries.
//
// The invoice row and its items are written in one transaction; the
// entries are then marked one at a time, each only if it is still unbilled
// in the store. If marking fails, including when another writer billed an
// entry first (store.ErrConflict), the marked entries are unmarked and the
// invoice is deleted, and the returned error is a *SagaError.
func (r *Repository) CreateInvoice(ctx context.Context, clientID string, entryIDs []string, notes string) (result *CreateInvoiceResult, err error) {
	defer r.track(ctx, "create_invoice", time.Now(), &err)
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	client, err := r.lookupClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	// Re-read entries so eligibility reflects the store, not a stale load.
	if err := r.reloadTimesheets(ctx); err != nil {
		r.logger.Printf("ledger: create invoice: using cached timesheets")
	}
	current := r.view()

	draft, skipped := r.assembler.Assemble(client, current.Timesheets, current.Projects, entryIDs, r.now())
	result = &CreateInvoiceResult{Skipped: skipped}
	if draft.Empty() {
		return result, ErrNoBillableEntries
	}
	draft.Notes = notes

	var created *model.Invoice
	saga := NewSaga("create invoice")
	saga.Add("insert invoice",
		func(ctx context.Context) error {
			inv, err := r.store.CreateInvoice(ctx, draft.Invoice())
			if err != nil {
				return err
			}
			created = inv
			return nil
		},
		func(ctx context.Context) error {
			return r.store.DeleteInvoice(ctx, created.ID)
		},
	)
	for _, id := range draft.EntryIDs() {
		id := id
		saga.Add("mark entry "+id,
			func(ctx context.Context) error {
				_, err := r.store.MarkTimeEntryInvoiced(ctx, id, created.ID)
				return err
			},
			func(ctx context.Context) error {
				return r.setInvoiceLink(ctx, id, "")
			},
		)
	}

	runErr := saga.Run(ctx)
	r.reloadAfterInvoiceChange(ctx)
	if runErr != nil {
		return result, runErr
	}

	if fresh, ok := r.view().Invoice(created.ID); ok {
		created = &fresh
	}
	result.Invoice = created
	r.logger.Printf("ledger: created invoice %s for %s: %s over %d items (%d skipped)",
		created.InvoiceNumber, client.Name, created.Amount.StringFixed(2), len(created.Items), len(skipped))
	return result, nil
}

// UpdateInvoice changes an invoice's status, notes or due date.
func (r *Repository) UpdateInvoice(ctx context.Context, id string, patch model.InvoicePatch) (inv *model.Invoice, err error) {
	defer r.track(ctx, "update_invoice", time.Now(), &err)
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if patch.Status != nil && !model.IsValidInvoiceStatus(*patch.Status) {
		return nil, fmt.Errorf("%w: invoice status %q", ErrInvalidStatus, *patch.Status)
	}
	inv, err = r.store.UpdateInvoice(ctx, id, patch)
	if err != nil {
		return nil, notFoundAs(ErrInvoiceNotFound, fmt.Errorf("updating invoice %s: %w", id, err))
	}
	r.reloadInvoices(ctx)
	return inv, nil
}

// DeleteInvoice unbills every entry on the invoice, one at a time, and then
// deletes the invoice. If any step fails the entries already unbilled are
// linked back and the invoice is kept; the error is a *SagaError.
func (r *Repository) DeleteInvoice(ctx context.Context, id string) (err error) {
	defer r.track(ctx, "delete_invoice", time.Now(), &err)
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	inv, err := r.store.GetInvoiceByID(ctx, id)
	if err != nil {
		return notFoundAs(ErrInvoiceNotFound, fmt.Errorf("deleting invoice %s: %w", id, err))
	}

	entryIDs, err := r.linkedEntryIDs(ctx, *inv)
	if err != nil {
		return err
	}

	saga := NewSaga("delete invoice " + inv.InvoiceNumber)
	for _, entryID := range entryIDs {
		entryID := entryID
		saga.Add("unmark entry "+entryID,
			func(ctx context.Context) error {
				err := r.setInvoiceLink(ctx, entryID, "")
				if errors.Is(err, store.ErrNotFound) {
					r.logger.Printf("ledger: entry %s on invoice %s no longer exists", entryID, inv.InvoiceNumber)
					return nil
				}
				return err
			},
			func(ctx context.Context) error {
				return r.setInvoiceLink(ctx, entryID, inv.ID)
			},
		)
	}
	saga.Add("delete invoice row",
		func(ctx context.Context) error {
			return r.store.DeleteInvoice(ctx, inv.ID)
		},
		nil,
	)

	err = saga.Run(ctx)
	r.reloadAfterInvoiceChange(ctx)
	if err != nil {
		return err
	}
	r.logger.Printf("ledger: deleted invoice %s, released %d entries", inv.InvoiceNumber, len(entryIDs))
	return nil
}

// linkedEntryIDs returns the entries that point at inv: those named by its
// items plus any stray entry whose invoice_id references it.
func (r *Repository) linkedEntryIDs(ctx context.Context, inv model.Invoice) ([]string, error) {
	ids := inv.EntryIDs()
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}

	linked, err := r.store.GetTimeEntries(ctx, store.TimeEntryFilter{InvoiceID: &inv.ID})
	if err != nil {
		return nil, fmt.Errorf("listing entries on invoice %s: %w", inv.InvoiceNumber, err)
	}
	var strays []string
	for _, e := range linked {
		if !seen[e.ID] {
			seen[e.ID] = true
			strays = append(strays, e.ID)
		}
	}
	sort.Strings(strays)
	return append(ids, strays...), nil
}

// setInvoiceLink marks an entry as billed on invoiceID, or clears the link
// when invoiceID is empty.
func (r *Repository) setInvoiceLink(ctx context.Context, entryID, invoiceID string) error {
	invoiced := invoiceID != ""
	_, err := r.store.UpdateTimeEntry(ctx, entryID, model.TimesheetEntryPatch{
		Invoiced:  &invoiced,
		InvoiceID: &invoiceID,
	})
	return err
}

// reloadAfterInvoiceChange refreshes invoices and timesheets together.
func (r *Repository) reloadAfterInvoiceChange(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	r.reloadInvoices(ctx)
	r.reloadTimesheets(ctx)
}
