package app

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/sitebook/internal/archive"
	"github.com/nhle/sitebook/internal/ledger"
	"github.com/nhle/sitebook/internal/mailer"
	"github.com/nhle/sitebook/internal/model"
	"github.com/nhle/sitebook/internal/report"
)

// PeriodLayout is the month format accepted for timesheet exports.
const PeriodLayout = "2006-01"

// Documents renders invoices and timesheets, archives them and mails
// them to clients. Archive and mailer are optional.
type Documents struct {
	repo     *ledger.Repository
	renderer *report.Renderer
	billing  model.BillingConfig
	archive  archive.Store
	mailer   *mailer.Mailer
}

// NewDocuments wires the document collaborators. store and m may be nil.
func NewDocuments(repo *ledger.Repository, billing model.BillingConfig, store archive.Store, m *mailer.Mailer) *Documents {
	return &Documents{
		repo:     repo,
		renderer: report.NewRenderer(billing),
		billing:  billing,
		archive:  store,
		mailer:   m,
	}
}

// CanEmail reports whether a mailer is configured.
func (d *Documents) CanEmail() bool {
	return d.mailer.Enabled()
}

// resolveInvoice loads the invoice and copies the client's details into
// a printable document.
func (d *Documents) resolveInvoice(id string) (report.InvoiceDocument, model.Client, error) {
	snap := d.repo.Snapshot()
	inv, ok := snap.Invoice(id)
	if !ok {
		return report.InvoiceDocument{}, model.Client{}, ledger.ErrInvoiceNotFound
	}
	client, ok := snap.Client(inv.ClientID)
	if !ok {
		return report.InvoiceDocument{}, model.Client{}, ledger.ErrClientNotFound
	}
	return report.InvoiceDocument{
		Invoice:       inv,
		ClientName:    client.Name,
		ClientEmail:   client.Email,
		ClientAddress: client.Address,
	}, client, nil
}

// InvoiceByNumber finds an invoice by its printed number.
func (d *Documents) InvoiceByNumber(number string) (model.Invoice, error) {
	inv, ok := d.repo.Snapshot().InvoiceByNumber(number)
	if !ok {
		return model.Invoice{}, fmt.Errorf("%w: %s", ledger.ErrInvoiceNotFound, number)
	}
	return inv, nil
}

// RenderInvoice renders the invoice PDF without storing it.
func (d *Documents) RenderInvoice(id string) (report.Document, error) {
	doc, _, err := d.resolveInvoice(id)
	if err != nil {
		return report.Document{}, err
	}
	return d.renderer.RenderInvoice(doc)
}

// ExportInvoice renders the invoice and stores it in the archive. key is
// empty when archiving is disabled.
func (d *Documents) ExportInvoice(ctx context.Context, id string) (report.Document, string, error) {
	pdf, err := d.RenderInvoice(id)
	if err != nil {
		return report.Document{}, "", err
	}
	key, err := d.store(ctx, archive.InvoiceKey(pdf.Name), pdf)
	return pdf, key, err
}

// ExportTimesheet renders a client's entries for the month given as
// YYYY-MM and stores the PDF.
func (d *Documents) ExportTimesheet(ctx context.Context, clientID, month string) (report.Document, string, error) {
	start, err := time.Parse(PeriodLayout, month)
	if err != nil {
		return report.Document{}, "", fmt.Errorf("period %q: use YYYY-MM", month)
	}
	end := start.AddDate(0, 1, 0)

	snap := d.repo.Snapshot()
	client, ok := snap.Client(clientID)
	if !ok {
		return report.Document{}, "", ledger.ErrClientNotFound
	}

	var entries []model.TimesheetEntry
	for _, e := range snap.TimesheetsByClient(clientID) {
		day := time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(), 0, 0, 0, 0, time.UTC)
		if !day.Before(start) && day.Before(end) {
			entries = append(entries, e)
		}
	}
	names := make(map[string]string, len(snap.Projects))
	for _, p := range snap.Projects {
		names[p.ID] = p.Name
	}

	pdf, err := d.renderer.RenderTimesheet(report.TimesheetDocument{
		Client:       client,
		Period:       start.Format("January 2006"),
		Entries:      entries,
		ProjectNames: names,
	})
	if err != nil {
		return report.Document{}, "", err
	}
	key, err := d.store(ctx, archive.TimesheetKey(clientID, pdf.Name), pdf)
	return pdf, key, err
}

// EmailInvoice mails the invoice PDF to the client and moves a Draft
// invoice to Sent.
func (d *Documents) EmailInvoice(ctx context.Context, id string) error {
	if !d.CanEmail() {
		return mailer.ErrDisabled
	}
	doc, client, err := d.resolveInvoice(id)
	if err != nil {
		return err
	}
	if client.Email == "" {
		return fmt.Errorf("client %s has no email address", client.Name)
	}
	pdf, err := d.renderer.RenderInvoice(doc)
	if err != nil {
		return err
	}
	if _, err := d.store(ctx, archive.InvoiceKey(pdf.Name), pdf); err != nil {
		return err
	}

	msg := mailer.NewInvoiceMessage(d.billing, client, doc.Invoice, pdf)
	if err := d.mailer.Send(ctx, msg); err != nil {
		return err
	}

	if doc.Invoice.Status == model.InvoiceStatusDraft {
		sent := model.InvoiceStatusSent
		if _, err := d.repo.UpdateInvoice(ctx, id, model.InvoicePatch{Status: &sent}); err != nil {
			return fmt.Errorf("invoice sent but status not updated: %w", err)
		}
	}
	return nil
}

func (d *Documents) store(ctx context.Context, key string, doc report.Document) (string, error) {
	if d.archive == nil {
		return "", nil
	}
	info, err := d.archive.Put(ctx, key, doc.Data, doc.ContentType)
	if err != nil {
		return "", fmt.Errorf("archiving %s: %w", doc.Name, err)
	}
	return info.Key, nil
}
