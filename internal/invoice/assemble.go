// Package invoice turns unbilled timesheet entries into a priced invoice
// draft. It never touches the store.
package invoice

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhle/sitebook/internal/model"
)

// DefaultDueDays is the payment term applied when none is configured.
const DefaultDueDays = 30

// SkipReason explains why a candidate entry was left off an invoice.
type SkipReason string

const (
	ReasonMissing         SkipReason = "missing"
	ReasonOtherClient     SkipReason = "other_client"
	ReasonAlreadyInvoiced SkipReason = "already_invoiced"
)

// Skipped records a candidate entry id that was not billed.
type Skipped struct {
	EntryID string     `json:"entry_id"`
	Reason  SkipReason `json:"reason"`
}

// Draft is an invoice ready to be persisted. The store assigns the id and
// the invoice number.
type Draft struct {
	ClientID string
	Date     time.Time
	DueDate  time.Time
	Amount   decimal.Decimal
	Notes    string
	Items    []model.InvoiceItem
}

// Empty reports whether the draft has nothing to bill.
func (d Draft) Empty() bool {
	return len(d.Items) == 0
}

// EntryIDs returns the ids of the entries the draft consumes, in item order.
func (d Draft) EntryIDs() []string {
	return d.Invoice().EntryIDs()
}

// Invoice converts the draft to a Draft-status invoice for the store.
func (d Draft) Invoice() model.Invoice {
	items := make([]model.InvoiceItem, len(d.Items))
	copy(items, d.Items)
	return model.Invoice{
		ClientID: d.ClientID,
		Date:     d.Date,
		DueDate:  d.DueDate,
		Amount:   d.Amount,
		Status:   model.InvoiceStatusDraft,
		Notes:    d.Notes,
		Items:    items,
	}
}

// Assembler prices entries into invoice drafts.
type Assembler struct {
	// DueDays is the number of calendar days between the invoice date and
	// its due date. Zero or negative means DefaultDueDays.
	DueDays int
}

// Assemble builds a draft for client from the candidate entry ids using
// the default payment term.
func Assemble(client model.Client, entries []model.TimesheetEntry, projects []model.Project, candidateIDs []string, now time.Time) (Draft, []Skipped) {
	return Assembler{}.Assemble(client, entries, projects, candidateIDs, now)
}

// Assemble builds a draft for client from the candidate entry ids.
//
// Candidates that do not exist, belong to another client or are already
// invoiced are reported as Skipped rather than failing the whole draft.
// Duplicate ids are billed once. Items follow candidate order, each priced
// at hours x rate rounded to cents; the draft amount is their exact sum.
func (a Assembler) Assemble(client model.Client, entries []model.TimesheetEntry, projects []model.Project, candidateIDs []string, now time.Time) (Draft, []Skipped) {
	byID := make(map[string]model.TimesheetEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	projectNames := make(map[string]string, len(projects))
	for _, p := range projects {
		projectNames[p.ID] = p.Name
	}

	dueDays := a.DueDays
	if dueDays <= 0 {
		dueDays = DefaultDueDays
	}

	draft := Draft{
		ClientID: client.ID,
		Date:     now,
		DueDate:  now.AddDate(0, 0, dueDays),
		Amount:   decimal.Zero,
	}

	var skipped []Skipped
	seen := make(map[string]bool, len(candidateIDs))
	for _, id := range candidateIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		e, ok := byID[id]
		switch {
		case !ok:
			skipped = append(skipped, Skipped{EntryID: id, Reason: ReasonMissing})
			continue
		case e.ClientID != client.ID:
			skipped = append(skipped, Skipped{EntryID: id, Reason: ReasonOtherClient})
			continue
		case e.Invoiced:
			skipped = append(skipped, Skipped{EntryID: id, Reason: ReasonAlreadyInvoiced})
			continue
		}

		entryID := e.ID
		item := model.InvoiceItem{
			Position:         len(draft.Items) + 1,
			Description:      ItemDescription(projectNames[e.ProjectID], e.Description),
			Hours:            e.Hours,
			Rate:             e.Rate,
			Amount:           model.LineAmount(e.Hours, e.Rate),
			TimesheetEntryID: &entryID,
		}
		draft.Items = append(draft.Items, item)
		draft.Amount = draft.Amount.Add(item.Amount)
	}

	return draft, skipped
}

// ItemDescription renders "{project} - {description}", dropping whichever
// half is blank.
func ItemDescription(project, description string) string {
	project = strings.TrimSpace(project)
	description = strings.TrimSpace(description)
	switch {
	case project == "":
		return description
	case description == "":
		return project
	}
	return project + " - " + description
}
