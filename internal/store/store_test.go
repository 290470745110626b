package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/sitebook/internal/model"
	"github.com/nhle/sitebook/internal/store"
	"github.com/nhle/sitebook/tests/testutil"
)

func strPtr(s string) *string { return &s }

func TestClientCRUD(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	created, err := s.CreateClient(ctx, model.Client{
		Name:       "Harbour Homes",
		Email:      "office@harbour.test",
		Phone:      "555-0101",
		Address:    "1 Quay St",
		HourlyRate: testutil.Dec(t, "85.50"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.ClientStatusActive, created.Status)
	assert.Equal(t, "Harbour Homes", created.Name)
	assert.Equal(t, "555-0101", created.Phone)
	testutil.EqualDecimal(t, "85.50", created.HourlyRate)
	assert.False(t, created.CreatedAt.IsZero())

	updated, err := s.UpdateClient(ctx, created.ID, model.ClientPatch{
		Status: strPtr(model.ClientStatusPending),
	})
	require.NoError(t, err)
	assert.Equal(t, model.ClientStatusPending, updated.Status)
	assert.Equal(t, "office@harbour.test", updated.Email)

	clients, err := s.GetClients(ctx, store.ClientFilter{})
	require.NoError(t, err)
	require.Len(t, clients, 1)

	require.NoError(t, s.DeleteClient(ctx, created.ID))
	_, err = s.GetClientByID(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClientValidation(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.CreateClient(ctx, model.Client{Name: "  "})
	assert.Error(t, err)

	_, err = s.CreateClient(ctx, model.Client{Name: "Bad", Status: "Archived"})
	assert.Error(t, err, "status CHECK constraint should reject unknown statuses")
}

func TestMissingRowsReturnErrNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateClient(ctx, "nope", model.ClientPatch{Name: strPtr("x")})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteClient(ctx, "nope"), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTimeEntry(ctx, "nope"), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteInvoice(ctx, "nope"), store.ErrNotFound)

	_, err = s.UpdateInvoice(ctx, "nope", model.InvoicePatch{Notes: strPtr("x")})
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetInvoiceByID(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteClientWithProjectsFails(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "acme", "50")
	testutil.SeedProject(t, s, c.ID, "Deck", "0")

	err := s.DeleteClient(ctx, c.ID)
	require.Error(t, err)
	assert.False(t, errors.Is(err, store.ErrNotFound))
}

func TestProjectDefaultsAndFilter(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	a := testutil.SeedClient(t, s, "a", "50")
	b := testutil.SeedClient(t, s, "b", "60")

	p, err := s.CreateProject(ctx, model.Project{ClientID: a.ID, Name: "Kitchen", Progress: 140})
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusPlanning, p.Status)
	assert.Equal(t, 100, p.Progress)

	testutil.SeedProject(t, s, b.ID, "Roof", "0")

	projects, err := s.GetProjects(ctx, store.ProjectFilter{ClientID: &a.ID})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Kitchen", projects[0].Name)

	_, err = s.CreateProject(ctx, model.Project{ClientID: "missing", Name: "Orphan"})
	assert.Error(t, err, "foreign key should reject unknown client")
}

func TestTimeEntryCRUD(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "acme", "50")
	p := testutil.SeedProject(t, s, c.ID, "Deck", "0")

	day := time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)
	e, err := s.CreateTimeEntry(ctx, model.TimesheetEntry{
		ClientID:    c.ID,
		ProjectID:   p.ID,
		Date:        day,
		StartTime:   "08:00",
		EndTime:     "10:30",
		Hours:       testutil.Dec(t, "2.5"),
		Rate:        testutil.Dec(t, "50"),
		Description: "Framing",
	})
	require.NoError(t, err)
	assert.True(t, e.Date.Equal(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)), "date truncated to the day, got %s", e.Date)
	assert.False(t, e.Invoiced)
	assert.Nil(t, e.InvoiceID)
	testutil.EqualDecimal(t, "125", e.Amount())

	hours := testutil.Dec(t, "3")
	updated, err := s.UpdateTimeEntry(ctx, e.ID, model.TimesheetEntryPatch{Hours: &hours})
	require.NoError(t, err)
	testutil.EqualDecimal(t, "3", updated.Hours)
	assert.Equal(t, "Framing", updated.Description)

	zero := testutil.Dec(t, "0")
	_, err = s.UpdateTimeEntry(ctx, e.ID, model.TimesheetEntryPatch{Hours: &zero})
	assert.Error(t, err)

	unbilled := false
	entries, err := s.GetTimeEntries(ctx, store.TimeEntryFilter{ClientID: &c.ID, Invoiced: &unbilled})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, s.DeleteTimeEntry(ctx, e.ID))
	entries, err = s.GetTimeEntries(ctx, store.TimeEntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTimeEntriesOrderedByDateDesc(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "acme", "50")
	p := testutil.SeedProject(t, s, c.ID, "Deck", "0")

	for _, d := range []int{3, 1, 2} {
		_, err := s.CreateTimeEntry(ctx, model.TimesheetEntry{
			ClientID:  c.ID,
			ProjectID: p.ID,
			Date:      time.Date(2026, 5, d, 0, 0, 0, 0, time.UTC),
			Hours:     testutil.Dec(t, "1"),
			Rate:      testutil.Dec(t, "50"),
		})
		require.NoError(t, err)
	}

	entries, err := s.GetTimeEntries(ctx, store.TimeEntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 3, entries[0].Date.Day())
	assert.Equal(t, 2, entries[1].Date.Day())
	assert.Equal(t, 1, entries[2].Date.Day())
}

func newInvoice(t *testing.T, clientID string, date time.Time, entryIDs ...string) model.Invoice {
	t.Helper()
	inv := model.Invoice{
		ClientID: clientID,
		Date:     date,
		DueDate:  date.AddDate(0, 0, 30),
	}
	for _, id := range entryIDs {
		id := id
		inv.Items = append(inv.Items, model.InvoiceItem{
			Description:      "Deck - work",
			Hours:            testutil.Dec(t, "2"),
			Rate:             testutil.Dec(t, "50"),
			Amount:           testutil.Dec(t, "100"),
			TimesheetEntryID: &id,
		})
	}
	if len(entryIDs) == 0 {
		inv.Items = []model.InvoiceItem{{
			Description: "Call-out fee",
			Hours:       testutil.Dec(t, "1"),
			Rate:        testutil.Dec(t, "100"),
			Amount:      testutil.Dec(t, "100"),
		}}
	}
	inv.Amount = model.SumItems(inv.Items)
	return inv
}

func TestCreateInvoiceAssignsSequentialNumbers(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "acme", "50")
	date := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	first, err := s.CreateInvoice(ctx, newInvoice(t, c.ID, date))
	require.NoError(t, err)
	second, err := s.CreateInvoice(ctx, newInvoice(t, c.ID, date))
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0001", first.InvoiceNumber)
	assert.Equal(t, "INV-2026-0002", second.InvoiceNumber)

	// Deleting an invoice never frees its number.
	require.NoError(t, s.DeleteInvoice(ctx, second.ID))
	third, err := s.CreateInvoice(ctx, newInvoice(t, c.ID, date))
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0003", third.InvoiceNumber)

	// Each year has its own sequence.
	next, err := s.CreateInvoice(ctx, newInvoice(t, c.ID, date.AddDate(1, 0, 0)))
	require.NoError(t, err)
	assert.Equal(t, "INV-2027-0001", next.InvoiceNumber)
}

func TestCreateInvoiceIgnoresCallerNumber(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "acme", "50")
	inv := newInvoice(t, c.ID, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	inv.InvoiceNumber = "INV-1999-9999"

	created, err := s.CreateInvoice(ctx, inv)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0001", created.InvoiceNumber)
}

func TestCreateInvoiceStoresItemsInOrder(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "acme", "50")
	p := testutil.SeedProject(t, s, c.ID, "Deck", "0")

	var ids []string
	for i := 0; i < 3; i++ {
		e, err := s.CreateTimeEntry(ctx, model.TimesheetEntry{
			ClientID: c.ID, ProjectID: p.ID,
			Hours: testutil.Dec(t, "2"), Rate: testutil.Dec(t, "50"),
		})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	created, err := s.CreateInvoice(ctx, newInvoice(t, c.ID, time.Now(), ids...))
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusDraft, created.Status)
	testutil.EqualDecimal(t, "300", created.Amount)
	require.Len(t, created.Items, 3)
	assert.Equal(t, ids, created.EntryIDs())
	for i, it := range created.Items {
		assert.Equal(t, i+1, it.Position)
	}

	all, err := s.GetInvoices(ctx, store.InvoiceFilter{ClientID: &c.ID})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, ids, all[0].EntryIDs())
}

func TestCreateInvoiceRejectsMismatchedAmount(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "acme", "50")
	inv := newInvoice(t, c.ID, time.Now())
	inv.Amount = testutil.Dec(t, "99.99")

	_, err := s.CreateInvoice(ctx, inv)
	assert.Error(t, err)

	invoices, err := s.GetInvoices(ctx, store.InvoiceFilter{})
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestDeleteInvoiceBlockedWhileEntriesReferenceIt(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "acme", "50")
	p := testutil.SeedProject(t, s, c.ID, "Deck", "0")
	e, err := s.CreateTimeEntry(ctx, model.TimesheetEntry{
		ClientID: c.ID, ProjectID: p.ID,
		Hours: testutil.Dec(t, "2"), Rate: testutil.Dec(t, "50"),
	})
	require.NoError(t, err)

	inv, err := s.CreateInvoice(ctx, newInvoice(t, c.ID, time.Now(), e.ID))
	require.NoError(t, err)

	invoiced := true
	_, err = s.UpdateTimeEntry(ctx, e.ID, model.TimesheetEntryPatch{Invoiced: &invoiced, InvoiceID: &inv.ID})
	require.NoError(t, err)

	assert.Error(t, s.DeleteInvoice(ctx, inv.ID))

	notInvoiced := false
	cleared, err := s.UpdateTimeEntry(ctx, e.ID, model.TimesheetEntryPatch{Invoiced: &notInvoiced, InvoiceID: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.InvoiceID)

	require.NoError(t, s.DeleteInvoice(ctx, inv.ID))
}

func TestUpdateInvoice(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "acme", "50")
	inv, err := s.CreateInvoice(ctx, newInvoice(t, c.ID, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	updated, err := s.UpdateInvoice(ctx, inv.ID, model.InvoicePatch{
		Status:  strPtr(model.InvoiceStatusSent),
		Notes:   strPtr("net 60"),
		DueDate: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusSent, updated.Status)
	assert.Equal(t, "net 60", updated.Notes)
	assert.True(t, updated.DueDate.Equal(due))
	assert.Len(t, updated.Items, 1)

	_, err = s.UpdateInvoice(ctx, inv.ID, model.InvoicePatch{Status: strPtr("Lost")})
	assert.Error(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	path := t.TempDir() + "/sitebook.db"
	ctx := context.Background()

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	_, err = s.CreateClient(ctx, model.Client{Name: "persisted"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	clients, err := s.GetClients(ctx, store.ClientFilter{})
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "persisted", clients[0].Name)
}

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-2026-0042", store.FormatInvoiceNumber(2026, 42))
	assert.Equal(t, "INV-2026-12345", store.FormatInvoiceNumber(2026, 12345))
}

func TestPing(t *testing.T) {
	s := testutil.NewTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestMarkTimeEntryInvoicedOnlyBillsOnce(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "acme", "50")
	p := testutil.SeedProject(t, s, c.ID, "Deck", "0")
	e, err := s.CreateTimeEntry(ctx, model.TimesheetEntry{
		ClientID: c.ID, ProjectID: p.ID,
		Hours: testutil.Dec(t, "2"), Rate: testutil.Dec(t, "50"),
	})
	require.NoError(t, err)

	date := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	first, err := s.CreateInvoice(ctx, newInvoice(t, c.ID, date))
	require.NoError(t, err)
	second, err := s.CreateInvoice(ctx, newInvoice(t, c.ID, date))
	require.NoError(t, err)

	marked, err := s.MarkTimeEntryInvoiced(ctx, e.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, marked.Invoiced)
	require.NotNil(t, marked.InvoiceID)
	assert.Equal(t, first.ID, *marked.InvoiceID)

	_, err = s.MarkTimeEntryInvoiced(ctx, e.ID, second.ID)
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.MarkTimeEntryInvoiced(ctx, "missing", second.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	entries, err := s.GetTimeEntries(ctx, store.TimeEntryFilter{InvoiceID: &first.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1, "entry stays on the first invoice")
}

func TestTimeEntryHoursStoredToTwoPlaces(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "acme", "50")
	p := testutil.SeedProject(t, s, c.ID, "Deck", "0")
	e, err := s.CreateTimeEntry(ctx, model.TimesheetEntry{
		ClientID: c.ID, ProjectID: p.ID,
		Hours: testutil.Dec(t, "1.333"), Rate: testutil.Dec(t, "90"),
	})
	require.NoError(t, err)
	testutil.EqualDecimal(t, "1.33", e.Hours)
	testutil.EqualDecimal(t, "119.7", e.Amount())

	hours := testutil.Dec(t, "0.125")
	updated, err := s.UpdateTimeEntry(ctx, e.ID, model.TimesheetEntryPatch{Hours: &hours})
	require.NoError(t, err)
	testutil.EqualDecimal(t, "0.13", updated.Hours)

	tiny := testutil.Dec(t, "0.004")
	_, err = s.UpdateTimeEntry(ctx, e.ID, model.TimesheetEntryPatch{Hours: &tiny})
	assert.Error(t, err, "rounds to zero hours")
}
