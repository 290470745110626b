package ledger_test

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/sitebook/internal/invoice"
	"github.com/nhle/sitebook/internal/ledger"
	"github.com/nhle/sitebook/internal/model"
	"github.com/nhle/sitebook/internal/store"
	"github.com/nhle/sitebook/tests/testutil"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// faultStore wraps a real store and fails chosen calls.
type faultStore struct {
	store.Store

	mu    sync.Mutex
	calls map[string]int
	fail  map[string]func(call int) error
}

func newFaultStore(s store.Store) *faultStore {
	return &faultStore{
		Store: s,
		calls: make(map[string]int),
		fail:  make(map[string]func(int) error),
	}
}

// failOn makes the nth call (1-based) of op return err.
func (f *faultStore) failOn(op string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op] = 0
	f.fail[op] = func(call int) error {
		if call == n {
			return err
		}
		return nil
	}
}

// failAlways makes every call of op return err.
func (f *faultStore) failAlways(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op] = 0
	f.fail[op] = func(int) error { return err }
}

func (f *faultStore) hit(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if fn, ok := f.fail[op]; ok {
		return fn(f.calls[op])
	}
	return nil
}

func (f *faultStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *faultStore) GetClients(ctx context.Context, filter store.ClientFilter) ([]model.Client, error) {
	if err := f.hit("GetClients"); err != nil {
		return nil, err
	}
	return f.Store.GetClients(ctx, filter)
}

func (f *faultStore) GetProjects(ctx context.Context, filter store.ProjectFilter) ([]model.Project, error) {
	if err := f.hit("GetProjects"); err != nil {
		return nil, err
	}
	return f.Store.GetProjects(ctx, filter)
}

func (f *faultStore) UpdateTimeEntry(ctx context.Context, id string, patch model.TimesheetEntryPatch) (*model.TimesheetEntry, error) {
	if err := f.hit("UpdateTimeEntry"); err != nil {
		return nil, err
	}
	return f.Store.UpdateTimeEntry(ctx, id, patch)
}

func (f *faultStore) MarkTimeEntryInvoiced(ctx context.Context, id, invoiceID string) (*model.TimesheetEntry, error) {
	if err := f.hit("MarkTimeEntryInvoiced"); err != nil {
		return nil, err
	}
	return f.Store.MarkTimeEntryInvoiced(ctx, id, invoiceID)
}

func (f *faultStore) DeleteInvoice(ctx context.Context, id string) error {
	if err := f.hit("DeleteInvoice"); err != nil {
		return err
	}
	return f.Store.DeleteInvoice(ctx, id)
}

type captureMetrics struct {
	mu  sync.Mutex
	ops map[string][]bool
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ops == nil {
		c.ops = make(map[string][]bool)
	}
	c.ops[op] = append(c.ops[op], success)
}

func (c *captureMetrics) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.ops[op] {
		if s == success {
			return true
		}
	}
	return false
}

type fixture struct {
	repo    *ledger.Repository
	store   *faultStore
	logs    *bytes.Buffer
	metrics *captureMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := newFaultStore(testutil.NewTestStore(t))
	logs := &bytes.Buffer{}
	metrics := &captureMetrics{}
	repo := ledger.New(fs,
		ledger.WithLogger(log.New(logs, "", 0)),
		ledger.WithMetricsRecorder(metrics),
		ledger.WithClock(func() time.Time { return fixedNow }),
		ledger.WithReadBackOff(func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
		}),
	)
	require.NoError(t, repo.LoadAll(context.Background()))
	return &fixture{repo: repo, store: fs, logs: logs, metrics: metrics}
}

func (f *fixture) client(t *testing.T, name, rate string) *model.Client {
	t.Helper()
	c, err := f.repo.AddClient(context.Background(), model.Client{Name: name, HourlyRate: testutil.Dec(t, rate)})
	require.NoError(t, err)
	return c
}

func (f *fixture) project(t *testing.T, clientID, name string) *model.Project {
	t.Helper()
	p, err := f.repo.AddProject(context.Background(), model.Project{ClientID: clientID, Name: name})
	require.NoError(t, err)
	return p
}

func (f *fixture) entry(t *testing.T, projectID, hours, rate string) *model.TimesheetEntry {
	t.Helper()
	e, err := f.repo.AddTimesheetEntry(context.Background(), model.TimesheetEntry{
		ProjectID:   projectID,
		Hours:       testutil.Dec(t, hours),
		Rate:        testutil.Dec(t, rate),
		Description: "work",
	})
	require.NoError(t, err)
	return e
}

// assertInvoiceLinks checks that an entry is invoiced exactly when a
// surviving invoice has an item for it, and that InvoiceID points there.
func assertInvoiceLinks(t *testing.T, snap ledger.Snapshot) {
	t.Helper()
	billedOn := make(map[string]string)
	for _, inv := range snap.Invoices {
		for _, id := range inv.EntryIDs() {
			_, dup := billedOn[id]
			assert.False(t, dup, "entry %s billed twice", id)
			billedOn[id] = inv.ID
		}
	}
	for _, e := range snap.Timesheets {
		invID, billed := billedOn[e.ID]
		assert.Equal(t, billed, e.Invoiced, "entry %s invoiced flag", e.ID)
		if billed {
			require.NotNil(t, e.InvoiceID, "entry %s invoice id", e.ID)
			assert.Equal(t, invID, *e.InvoiceID)
		} else {
			assert.Nil(t, e.InvoiceID, "entry %s invoice id", e.ID)
		}
	}
}

func ids(entries ...*model.TimesheetEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestAddClientRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	data := model.Client{
		Name:       "Harbour Homes",
		Email:      "office@harbour.test",
		Phone:      "555-0101",
		Address:    "1 Quay St",
		Status:     model.ClientStatusPending,
		HourlyRate: testutil.Dec(t, "72.50"),
	}
	created, err := f.repo.AddClient(ctx, data)
	require.NoError(t, err)

	clients := f.repo.Clients()
	require.Len(t, clients, 1)
	got := clients[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, data.Name, got.Name)
	assert.Equal(t, data.Email, got.Email)
	assert.Equal(t, data.Phone, got.Phone)
	assert.Equal(t, data.Address, got.Address)
	assert.Equal(t, data.Status, got.Status)
	testutil.EqualDecimal(t, "72.50", got.HourlyRate)
	assert.True(t, f.metrics.has("add_client", true))
}

func TestAddClientRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	_, err := f.repo.AddClient(context.Background(), model.Client{Name: "x", Status: "Archived"})
	assert.ErrorIs(t, err, ledger.ErrInvalidStatus)
	assert.True(t, f.metrics.has("add_client", false))
}

func TestUpdateAndDeleteClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "acme", "50")

	name := "Acme Builders"
	_, err := f.repo.UpdateClient(ctx, c.ID, model.ClientPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, f.repo.Clients()[0].Name)

	require.NoError(t, f.repo.DeleteClient(ctx, c.ID))
	assert.Empty(t, f.repo.Clients())

	err = f.repo.DeleteClient(ctx, c.ID)
	assert.ErrorIs(t, err, ledger.ErrClientNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRatesInherit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "acme", "50")

	p := f.project(t, c.ID, "Deck")
	testutil.EqualDecimal(t, "50", p.HourlyRate, "project inherits client rate")

	custom, err := f.repo.AddProject(ctx, model.Project{ClientID: c.ID, Name: "Roof", HourlyRate: testutil.Dec(t, "65")})
	require.NoError(t, err)

	e, err := f.repo.AddTimesheetEntry(ctx, model.TimesheetEntry{ProjectID: custom.ID, Hours: testutil.Dec(t, "1")})
	require.NoError(t, err)
	testutil.EqualDecimal(t, "65", e.Rate)
	assert.Equal(t, c.ID, e.ClientID, "client taken from project")
	assert.True(t, e.Date.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
}

func TestAddTimesheetEntryValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.client(t, "a", "50")
	b := f.client(t, "b", "50")
	p := f.project(t, a.ID, "Deck")

	_, err := f.repo.AddTimesheetEntry(ctx, model.TimesheetEntry{ClientID: b.ID, ProjectID: p.ID, Hours: testutil.Dec(t, "1")})
	assert.ErrorIs(t, err, ledger.ErrProjectClientMismatch)

	_, err = f.repo.AddTimesheetEntry(ctx, model.TimesheetEntry{ProjectID: "nope", Hours: testutil.Dec(t, "1")})
	assert.ErrorIs(t, err, ledger.ErrProjectNotFound)

	_, err = f.repo.AddTimesheetEntry(ctx, model.TimesheetEntry{ProjectID: p.ID, Hours: testutil.Dec(t, "1"), Invoiced: true})
	assert.ErrorIs(t, err, ledger.ErrInvoiceLinkManaged)

	_, err = f.repo.AddProject(ctx, model.Project{ClientID: "nope", Name: "x"})
	assert.ErrorIs(t, err, ledger.ErrClientNotFound)
}

func TestCreateInvoiceTwoEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "acme", "50")
	p := f.project(t, c.ID, "Deck")
	e1 := f.entry(t, p.ID, "2", "50")
	e2 := f.entry(t, p.ID, "3", "50")

	res, err := f.repo.CreateInvoice(ctx, c.ID, ids(e1, e2), "first stage")
	require.NoError(t, err)
	require.NotNil(t, res.Invoice)
	assert.Empty(t, res.Skipped)

	inv := res.Invoice
	testutil.EqualDecimal(t, "250", inv.Amount)
	assert.True(t, model.SumItems(inv.Items).Equal(inv.Amount))
	assert.Equal(t, model.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, "INV-2026-0001", inv.InvoiceNumber)
	assert.Equal(t, "first stage", inv.Notes)
	assert.True(t, inv.DueDate.Equal(time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC)), "due %s", inv.DueDate)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, "Deck - work", inv.Items[0].Description)

	for _, e := range f.repo.TimesheetsByClient(c.ID) {
		assert.True(t, e.Invoiced)
	}
	assert.Empty(t, f.repo.UnbilledTimesheets(c.ID))
	assert.Len(t, f.repo.InvoicesByClient(c.ID), 1)
	assertInvoiceLinks(t, f.repo.Snapshot())
}

func TestCreateInvoiceNeverDoubleBills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "acme", "50")
	p := f.project(t, c.ID, "Deck")
	e1 := f.entry(t, p.ID, "1", "50")
	e2 := f.entry(t, p.ID, "1", "50")
	e3 := f.entry(t, p.ID, "1", "50")

	_, err := f.repo.CreateInvoice(ctx, c.ID, ids(e1, e2), "")
	require.NoError(t, err)

	res, err := f.repo.CreateInvoice(ctx, c.ID, ids(e2, e3), "")
	require.NoError(t, err)
	assert.Equal(t, []string{e3.ID}, res.Invoice.EntryIDs())
	assert.Equal(t, []invoice.Skipped{{EntryID: e2.ID, Reason: invoice.ReasonAlreadyInvoiced}}, res.Skipped)
	assert.Equal(t, "INV-2026-0002", res.Invoice.InvoiceNumber)

	res, err = f.repo.CreateInvoice(ctx, c.ID, ids(e1, e2, e3), "")
	assert.ErrorIs(t, err, ledger.ErrNoBillableEntries)
	require.NotNil(t, res)
	assert.Nil(t, res.Invoice)
	assert.Len(t, res.Skipped, 3)

	assert.Len(t, f.repo.Invoices(), 2)
	assertInvoiceLinks(t, f.repo.Snapshot())
}

func TestCreateInvoiceConcurrentCallsBillOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "acme", "50")
	p := f.project(t, c.ID, "Deck")
	e1 := f.entry(t, p.ID, "1", "50")
	e2 := f.entry(t, p.ID, "2", "50")

	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, refused int
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.repo.CreateInvoice(ctx, c.ID, ids(e1, e2), "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ledger.ErrNoBillableEntries):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 3, refused)
	assertInvoiceLinks(t, f.repo.Snapshot())
}

func TestCreateInvoiceSkipsForeignAndMissingEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.client(t, "a", "50")
	b := f.client(t, "b", "50")
	pa := f.project(t, a.ID, "Deck")
	pb := f.project(t, b.ID, "Roof")
	ea := f.entry(t, pa.ID, "1", "50")
	eb := f.entry(t, pb.ID, "1", "50")

	res, err := f.repo.CreateInvoice(ctx, a.ID, []string{ea.ID, eb.ID, "ghost"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{ea.ID}, res.Invoice.EntryIDs())
	assert.ElementsMatch(t, []invoice.Skipped{
		{EntryID: eb.ID, Reason: invoice.ReasonOtherClient},
		{EntryID: "ghost", Reason: invoice.ReasonMissing},
	}, res.Skipped)
	assert.Len(t, f.repo.UnbilledTimesheets(b.ID), 1)
}

func TestCreateInvoiceUnknownClient(t *testing.T) {
	f := newFixture(t)
	_, err := f.repo.CreateInvoice(context.Background(), "nope", []string{"x"}, "")
	assert.ErrorIs(t, err, ledger.ErrClientNotFound)
	assert.True(t, f.metrics.has("create_invoice", false))
}

func TestCreateInvoiceRollsBackWhenMarkingFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "acme", "50")
	p := f.project(t, c.ID, "Deck")
	e1 := f.entry(t, p.ID, "1", "50")
	e2 := f.entry(t, p.ID, "1", "50")
	e3 := f.entry(t, p.ID, "1", "50")

	boom := errors.New("connection reset")
	f.store.failOn("MarkTimeEntryInvoiced", 2, boom)

	_, err := f.repo.CreateInvoice(ctx, c.ID, ids(e1, e2, e3), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var sagaErr *ledger.SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.True(t, sagaErr.RolledBack())
	assert.Equal(t, "mark entry "+e2.ID, sagaErr.Step)

	assert.Empty(t, f.repo.Invoices(), "invoice row removed")
	assert.Len(t, f.repo.UnbilledTimesheets(c.ID), 3, "marked prefix unmarked")
	assertInvoiceLinks(t, f.repo.Snapshot())

	// Retrying the whole operation succeeds once the store recovers.
	res, err := f.repo.CreateInvoice(ctx, c.ID, ids(e1, e2, e3), "")
	require.NoError(t, err)
	testutil.EqualDecimal(t, "150", res.Invoice.Amount)
	assertInvoiceLinks(t, f.repo.Snapshot())
}

func TestDeleteInvoiceReleasesOnlyItsEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "acme", "50")
	p := f.project(t, c.ID, "Deck")
	e1 := f.entry(t, p.ID, "1", "50")
	e2 := f.entry(t, p.ID, "2", "50")
	e3 := f.entry(t, p.ID, "3", "50")

	first, err := f.repo.CreateInvoice(ctx, c.ID, ids(e1, e2), "")
	require.NoError(t, err)
	_, err = f.repo.CreateInvoice(ctx, c.ID, ids(e3), "")
	require.NoError(t, err)

	require.NoError(t, f.repo.DeleteInvoice(ctx, first.Invoice.ID))

	unbilled := f.repo.UnbilledTimesheets(c.ID)
	var got []string
	for _, e := range unbilled {
		got = append(got, e.ID)
	}
	assert.ElementsMatch(t, ids(e1, e2), got)
	assert.Len(t, f.repo.Invoices(), 1)
	assertInvoiceLinks(t, f.repo.Snapshot())

	err = f.repo.DeleteInvoice(ctx, first.Invoice.ID)
	assert.ErrorIs(t, err, ledger.ErrInvoiceNotFound)
}

func TestDeleteInvoiceRelinksWhenDeleteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "acme", "50")
	p := f.project(t, c.ID, "Deck")
	e1 := f.entry(t, p.ID, "1", "50")
	e2 := f.entry(t, p.ID, "2", "50")

	res, err := f.repo.CreateInvoice(ctx, c.ID, ids(e1, e2), "")
	require.NoError(t, err)

	f.store.failAlways("DeleteInvoice", errors.New("permission denied"))
	err = f.repo.DeleteInvoice(ctx, res.Invoice.ID)
	var sagaErr *ledger.SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, "delete invoice row", sagaErr.Step)
	assert.True(t, sagaErr.RolledBack())

	assert.Len(t, f.repo.Invoices(), 1)
	assert.Empty(t, f.repo.UnbilledTimesheets(c.ID))
	assertInvoiceLinks(t, f.repo.Snapshot())
}

func TestTimesheetEntryGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "acme", "50")
	p := f.project(t, c.ID, "Deck")
	e1 := f.entry(t, p.ID, "1", "50")
	e2 := f.entry(t, p.ID, "1", "50")

	_, err := f.repo.CreateInvoice(ctx, c.ID, ids(e1), "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.repo.DeleteTimesheetEntry(ctx, e1.ID), ledger.ErrEntryInvoiced)

	hours := testutil.Dec(t, "5")
	_, err = f.repo.UpdateTimesheetEntry(ctx, e1.ID, model.TimesheetEntryPatch{Hours: &hours})
	assert.ErrorIs(t, err, ledger.ErrEntryInvoiced)

	desc := "Framing, second floor"
	updated, err := f.repo.UpdateTimesheetEntry(ctx, e1.ID, model.TimesheetEntryPatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)

	empty := ""
	_, err = f.repo.UpdateTimesheetEntry(ctx, e1.ID, model.TimesheetEntryPatch{InvoiceID: &empty})
	assert.ErrorIs(t, err, ledger.ErrInvoiceLinkManaged)

	require.NoError(t, f.repo.DeleteTimesheetEntry(ctx, e2.ID))
	assert.Len(t, f.repo.TimesheetsByClient(c.ID), 1)
	assertInvoiceLinks(t, f.repo.Snapshot())
}

func TestUpdateInvoiceStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "acme", "50")
	p := f.project(t, c.ID, "Deck")
	e := f.entry(t, p.ID, "1", "50")

	res, err := f.repo.CreateInvoice(ctx, c.ID, ids(e), "")
	require.NoError(t, err)

	sent := model.InvoiceStatusSent
	updated, err := f.repo.UpdateInvoice(ctx, res.Invoice.ID, model.InvoicePatch{Status: &sent})
	require.NoError(t, err)
	assert.Equal(t, sent, updated.Status)
	assert.Equal(t, sent, f.repo.Invoices()[0].Status)

	bogus := "Lost"
	_, err = f.repo.UpdateInvoice(ctx, res.Invoice.ID, model.InvoicePatch{Status: &bogus})
	assert.ErrorIs(t, err, ledger.ErrInvalidStatus)

	_, err = f.repo.UpdateInvoice(ctx, "nope", model.InvoicePatch{Status: &sent})
	assert.ErrorIs(t, err, ledger.ErrInvoiceNotFound)
}

func TestTotalUnbilledAmount(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "acme", "80")
	p := f.project(t, c.ID, "Deck")
	f.entry(t, p.ID, "1.5", "80")

	testutil.EqualDecimal(t, "120", f.repo.TotalUnbilledAmount(c.ID))
	testutil.EqualDecimal(t, "1.5", f.repo.TotalUnbilledHours(c.ID))
	assert.Len(t, f.repo.ProjectsByClient(c.ID), 1)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.client(t, "a", "50")
	b := f.client(t, "b", "50")
	pending := model.ClientStatusPending
	_, err := f.repo.UpdateClient(ctx, b.ID, model.ClientPatch{Status: &pending})
	require.NoError(t, err)

	p := f.project(t, a.ID, "Deck")
	e1 := f.entry(t, p.ID, "2", "50")
	e2 := f.entry(t, p.ID, "1", "40")
	f.entry(t, p.ID, "1.5", "80")

	sent := model.InvoiceStatusSent
	paid := model.InvoiceStatusPaid
	r1, err := f.repo.CreateInvoice(ctx, a.ID, ids(e1), "")
	require.NoError(t, err)
	_, err = f.repo.UpdateInvoice(ctx, r1.Invoice.ID, model.InvoicePatch{Status: &sent})
	require.NoError(t, err)
	r2, err := f.repo.CreateInvoice(ctx, a.ID, ids(e2), "")
	require.NoError(t, err)
	_, err = f.repo.UpdateInvoice(ctx, r2.Invoice.ID, model.InvoicePatch{Status: &paid})
	require.NoError(t, err)

	d := f.repo.Dashboard(fixedNow.AddDate(0, 2, 0))
	assert.Equal(t, 1, d.ActiveClients)
	testutil.EqualDecimal(t, "1.5", d.UnbilledHours)
	testutil.EqualDecimal(t, "120", d.UnbilledAmount)
	testutil.EqualDecimal(t, "100", d.OutstandingAmount)
	testutil.EqualDecimal(t, "40", d.PaidAmount)
	assert.Equal(t, 1, d.PastDueInvoices)

	assert.Equal(t, 0, f.repo.Dashboard(fixedNow).PastDueInvoices)
}

func TestSnapshotsAreCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "acme", "50")
	p := f.project(t, c.ID, "Deck")
	e := f.entry(t, p.ID, "1", "50")
	_, err := f.repo.CreateInvoice(ctx, c.ID, ids(e), "")
	require.NoError(t, err)

	snap := f.repo.Snapshot()
	snap.Clients[0].Name = "mutated"
	*snap.Timesheets[0].InvoiceID = "mutated"
	snap.Invoices[0].Items[0].Description = "mutated"

	entries := f.repo.TimesheetsByClient(c.ID)
	*entries[0].InvoiceID = "mutated again"

	assert.Equal(t, "acme", f.repo.Clients()[0].Name)
	assert.NotEqual(t, "mutated", f.repo.Invoices()[0].Items[0].Description)
	assertInvoiceLinks(t, f.repo.Snapshot())
}

func TestLoadAllFailsSoft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "acme", "50")
	f.project(t, c.ID, "Deck")

	f.store.failAlways("GetProjects", errors.New("relation \"projects\" does not exist"))

	// A write made behind the repository's back shows up for the healthy
	// collections only.
	_, err := f.store.Store.CreateClient(ctx, model.Client{Name: "second"})
	require.NoError(t, err)
	_, err = f.store.Store.CreateProject(ctx, model.Project{ClientID: c.ID, Name: "Roof"})
	require.NoError(t, err)

	err = f.repo.LoadAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading projects")

	assert.Len(t, f.repo.Clients(), 2)
	assert.Len(t, f.repo.Projects(), 1, "failed collection keeps its previous value")
	assert.Equal(t, 1, f.store.count("GetProjects"), "permanent errors are not retried")
	assert.Contains(t, f.logs.String(), "loading projects")
	assert.True(t, f.metrics.has("load_all", false))
}

func TestLoadAllRetriesTransientErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client(t, "acme", "50")

	f.store.failOn("GetClients", 1, fmt.Errorf("querying clients: %w", driver.ErrBadConn))
	require.NoError(t, f.repo.LoadAll(ctx))
	assert.Equal(t, 2, f.store.count("GetClients"))
	assert.Len(t, f.repo.Clients(), 1)
	assert.Contains(t, f.logs.String(), "retrying")
	assert.False(t, f.repo.Snapshot().LoadedAt.IsZero())
}
