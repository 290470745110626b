package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/sitebook/internal/ledger"
	"github.com/nhle/sitebook/internal/model"
	"github.com/nhle/sitebook/internal/report"
	"github.com/nhle/sitebook/internal/ui/clientform"
	"github.com/nhle/sitebook/internal/ui/entryform"
	"github.com/nhle/sitebook/internal/ui/invoicelist"
)

// opTimeout bounds a single user action against the store.
const opTimeout = 30 * time.Second

// opResultMsg reports the outcome of a user action.
type opResultMsg struct {
	status string
	err    error
}

func run(f func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		status, err := f(ctx)
		return opResultMsg{status: status, err: err}
	}
}

func (m Model) saveClient(msg clientform.ClientSubmittedMsg) tea.Cmd {
	repo := m.repo
	return run(func(ctx context.Context) (string, error) {
		if msg.ID == "" {
			c, err := repo.AddClient(ctx, msg.Client)
			if err != nil {
				return "", err
			}
			return "Added client " + c.Name, nil
		}

		current, ok := repo.Snapshot().Client(msg.ID)
		if !ok {
			return "", ledger.ErrClientNotFound
		}
		patch := clientform.Patch(current, msg.Client)
		c, err := repo.UpdateClient(ctx, msg.ID, patch)
		if err != nil {
			return "", err
		}
		return "Saved client " + c.Name, nil
	})
}

func (m Model) logTime(msg entryform.EntrySubmittedMsg) tea.Cmd {
	repo := m.repo
	return run(func(ctx context.Context) (string, error) {
		entry := msg.Entry
		if msg.NewProjectName != "" {
			p, err := repo.AddProject(ctx, model.Project{
				ClientID: msg.ClientID,
				Name:     msg.NewProjectName,
				Status:   model.ProjectStatusInProgress,
			})
			if err != nil {
				return "", fmt.Errorf("adding project: %w", err)
			}
			entry.ProjectID = p.ID
		}
		e, err := repo.AddTimesheetEntry(ctx, entry)
		if err != nil {
			return "", fmt.Errorf("logging time: %w", err)
		}
		return fmt.Sprintf("Logged %sh on %s", e.Hours.String(), e.Date.Format("Jan 02")), nil
	})
}

func (m Model) createInvoice(msg invoicelist.CreateInvoiceMsg) tea.Cmd {
	repo := m.repo
	currency := m.billing.Currency
	return run(func(ctx context.Context) (string, error) {
		res, err := repo.CreateInvoice(ctx, msg.ClientID, msg.EntryIDs, msg.Notes)
		if errors.Is(err, ledger.ErrNoBillableEntries) && res != nil {
			return "", fmt.Errorf("nothing billable: %d entries skipped", len(res.Skipped))
		}
		if err != nil {
			return "", fmt.Errorf("creating invoice: %w", err)
		}
		status := fmt.Sprintf("Created %s for %s", res.Invoice.InvoiceNumber, report.FormatMoney(currency, res.Invoice.Amount))
		if n := len(res.Skipped); n > 0 {
			status += fmt.Sprintf(" (%d entries skipped)", n)
		}
		return status, nil
	})
}

func (m Model) setInvoiceStatus(msg invoicelist.SetStatusMsg) tea.Cmd {
	repo := m.repo
	return run(func(ctx context.Context) (string, error) {
		status := msg.Status
		inv, err := repo.UpdateInvoice(ctx, msg.InvoiceID, model.InvoicePatch{Status: &status})
		if err != nil {
			return "", fmt.Errorf("updating invoice: %w", err)
		}
		return fmt.Sprintf("%s marked %s", inv.InvoiceNumber, inv.Status), nil
	})
}

func (m Model) deleteInvoice(msg invoicelist.DeleteInvoiceMsg) tea.Cmd {
	repo := m.repo
	return run(func(ctx context.Context) (string, error) {
		number := msg.InvoiceID
		if inv, ok := repo.Snapshot().Invoice(msg.InvoiceID); ok {
			number = inv.InvoiceNumber
		}
		if err := repo.DeleteInvoice(ctx, msg.InvoiceID); err != nil {
			return "", fmt.Errorf("deleting invoice: %w", err)
		}
		return "Deleted " + number + "; its time is unbilled again", nil
	})
}

func (m Model) exportInvoice(msg invoicelist.ExportInvoiceMsg) tea.Cmd {
	docs := m.docs
	return run(func(ctx context.Context) (string, error) {
		pdf, key, err := docs.ExportInvoice(ctx, msg.InvoiceID)
		if err != nil {
			return "", fmt.Errorf("exporting invoice: %w", err)
		}
		return exportedStatus(pdf.Name, key), nil
	})
}

func (m Model) emailInvoice(msg invoicelist.EmailInvoiceMsg) tea.Cmd {
	docs := m.docs
	return run(func(ctx context.Context) (string, error) {
		if err := docs.EmailInvoice(ctx, msg.InvoiceID); err != nil {
			return "", fmt.Errorf("emailing invoice: %w", err)
		}
		return "Invoice emailed", nil
	})
}

func (m Model) exportTimesheet(msg invoicelist.ExportTimesheetMsg) tea.Cmd {
	docs := m.docs
	return run(func(ctx context.Context) (string, error) {
		pdf, key, err := docs.ExportTimesheet(ctx, msg.ClientID, msg.Month)
		if err != nil {
			return "", fmt.Errorf("exporting timesheet: %w", err)
		}
		return exportedStatus(pdf.Name, key), nil
	})
}

func exportedStatus(name, key string) string {
	if key == "" {
		return "Rendered " + name + " (archive disabled, nothing saved)"
	}
	return "Saved " + key
}
