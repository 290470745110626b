package invoice

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/sitebook/internal/model"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func entry(id, clientID, hours, rate string) model.TimesheetEntry {
	return model.TimesheetEntry{
		ID:          id,
		ClientID:    clientID,
		ProjectID:   "p1",
		Hours:       dec(hours),
		Rate:        dec(rate),
		Description: "work " + id,
	}
}

func TestAssembleTwoEntries(t *testing.T) {
	client := model.Client{ID: "c1", Name: "Acme"}
	entries := []model.TimesheetEntry{
		entry("e1", "c1", "2", "50"),
		entry("e2", "c1", "3", "50"),
	}
	projects := []model.Project{{ID: "p1", Name: "Deck"}}

	draft, skipped := Assemble(client, entries, projects, []string{"e1", "e2"}, now)
	assert.Empty(t, skipped)
	require.Len(t, draft.Items, 2)
	assert.True(t, dec("250").Equal(draft.Amount), "amount %s", draft.Amount)
	assert.Equal(t, "Deck - work e1", draft.Items[0].Description)
	assert.Equal(t, 1, draft.Items[0].Position)
	assert.Equal(t, 2, draft.Items[1].Position)
	assert.Equal(t, []string{"e1", "e2"}, draft.EntryIDs())
	assert.Equal(t, "c1", draft.ClientID)
}

func TestAssembleDueDate(t *testing.T) {
	client := model.Client{ID: "c1"}
	entries := []model.TimesheetEntry{entry("e1", "c1", "1", "10")}

	draft, _ := Assemble(client, entries, nil, []string{"e1"}, now)
	assert.Equal(t, now.AddDate(0, 0, 30), draft.DueDate)

	draft, _ = Assembler{DueDays: 14}.Assemble(client, entries, nil, []string{"e1"}, now)
	assert.Equal(t, now.AddDate(0, 0, 14), draft.DueDate)
}

func TestAssembleSkipsIneligibleEntries(t *testing.T) {
	client := model.Client{ID: "c1"}
	invoiced := entry("e2", "c1", "1", "10")
	invoiced.Invoiced = true
	entries := []model.TimesheetEntry{
		entry("e1", "c1", "1", "10"),
		invoiced,
		entry("e3", "c2", "1", "10"),
	}

	draft, skipped := Assemble(client, entries, nil, []string{"e1", "e2", "e3", "ghost", "e1"}, now)
	assert.Equal(t, []string{"e1"}, draft.EntryIDs())
	assert.Equal(t, []Skipped{
		{EntryID: "e2", Reason: ReasonAlreadyInvoiced},
		{EntryID: "e3", Reason: ReasonOtherClient},
		{EntryID: "ghost", Reason: ReasonMissing},
	}, skipped)
}

func TestAssembleNothingBillable(t *testing.T) {
	draft, skipped := Assemble(model.Client{ID: "c1"}, nil, nil, []string{"x"}, now)
	assert.True(t, draft.Empty())
	assert.True(t, draft.Amount.IsZero())
	assert.Len(t, skipped, 1)
}

func TestAssembleRoundsEachItemToCents(t *testing.T) {
	client := model.Client{ID: "c1"}
	entries := []model.TimesheetEntry{
		entry("e1", "c1", "0.333", "10"),
		entry("e2", "c1", "0.333", "10"),
		entry("e3", "c1", "0.333", "10"),
	}

	draft, _ := Assemble(client, entries, nil, []string{"e1", "e2", "e3"}, now)
	for _, it := range draft.Items {
		assert.True(t, dec("3.33").Equal(it.Amount), "item %s", it.Amount)
	}
	assert.True(t, dec("9.99").Equal(draft.Amount))
	assert.True(t, model.SumItems(draft.Items).Equal(draft.Amount))
}

func TestDraftInvoice(t *testing.T) {
	client := model.Client{ID: "c1"}
	entries := []model.TimesheetEntry{entry("e1", "c1", "1.5", "80")}

	draft, _ := Assemble(client, entries, nil, []string{"e1"}, now)
	draft.Notes = "thanks"
	inv := draft.Invoice()
	assert.Equal(t, model.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, "thanks", inv.Notes)
	assert.True(t, dec("120").Equal(inv.Amount))
	assert.Empty(t, inv.InvoiceNumber)
}

func TestItemDescription(t *testing.T) {
	assert.Equal(t, "Deck - Framing", ItemDescription("Deck", "Framing"))
	assert.Equal(t, "Framing", ItemDescription("", "Framing"))
	assert.Equal(t, "Deck", ItemDescription("Deck", " "))
}
