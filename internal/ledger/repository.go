// Package ledger holds the in-memory view of clients, projects, timesheets
// and invoices, and mediates every read and write against the store.
//
// Mutations write through to the store first and then reload the affected
// collections; memory is never edited directly. Invoice creation and
// deletion run as sagas so a failure partway through is rolled back.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/nhle/sitebook/internal/invoice"
	"github.com/nhle/sitebook/internal/model"
	"github.com/nhle/sitebook/internal/store"
)

// MetricsRecorder receives one observation per repository operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, op string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger. Defaults to log.Default().
func WithLogger(l *log.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(r *Repository) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithClock overrides the time source used for invoice dates.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithDueDays sets the payment term applied to new invoices.
func WithDueDays(days int) Option {
	return func(r *Repository) {
		r.assembler.DueDays = days
	}
}

// WithReadBackOff sets the retry policy for transient read failures. The
// factory is called once per fetch.
func WithReadBackOff(newBackOff func() backoff.BackOff) Option {
	return func(r *Repository) {
		if newBackOff != nil {
			r.newBackOff = newBackOff
		}
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	return b
}

// Repository is the single owner of the loaded collections.
type Repository struct {
	store      store.Store
	logger     *log.Logger
	metrics    MetricsRecorder
	assembler  invoice.Assembler
	now        func() time.Time
	newBackOff func() backoff.BackOff

	// writeMu serializes mutations so compound operations never interleave.
	writeMu sync.Mutex

	// mu guards state and gen. Reloads swap whole slices; a slice is never
	// modified after it is published.
	mu    sync.RWMutex
	state Snapshot

	// gen advances each time a mutation reloads after writing. A load
	// applies its rows only if gen has not moved since its fetch began.
	gen uint64
}

// New creates a repository over s. Call LoadAll to populate it.
func New(s store.Store, opts ...Option) *Repository {
	r := &Repository{
		store:      s,
		logger:     log.Default(),
		metrics:    noopMetrics{},
		now:        time.Now,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns a deep copy of the current collections.
func (r *Repository) Snapshot() Snapshot {
	return r.view().clone()
}

// view returns the current state without copying. Callers must not modify
// the slices.
func (r *Repository) view() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Clients returns a copy of the loaded clients, newest first.
func (r *Repository) Clients() []model.Client {
	return append([]model.Client(nil), r.view().Clients...)
}

// Projects returns a copy of the loaded projects, newest first.
func (r *Repository) Projects() []model.Project {
	return append([]model.Project(nil), r.view().Projects...)
}

// Timesheets returns a copy of the loaded entries, latest work date first.
func (r *Repository) Timesheets() []model.TimesheetEntry {
	src := r.view().Timesheets
	out := make([]model.TimesheetEntry, len(src))
	for i, e := range src {
		out[i] = cloneEntry(e)
	}
	return out
}

// Invoices returns a copy of the loaded invoices, newest first.
func (r *Repository) Invoices() []model.Invoice {
	src := r.view().Invoices
	out := make([]model.Invoice, len(src))
	for i, inv := range src {
		out[i] = cloneInvoice(inv)
	}
	return out
}

func (r *Repository) TimesheetsByClient(clientID string) []model.TimesheetEntry {
	return r.view().TimesheetsByClient(clientID)
}

func (r *Repository) InvoicesByClient(clientID string) []model.Invoice {
	return r.view().InvoicesByClient(clientID)
}

func (r *Repository) UnbilledTimesheets(clientID string) []model.TimesheetEntry {
	return r.view().UnbilledTimesheets(clientID)
}

func (r *Repository) ProjectsByClient(clientID string) []model.Project {
	return r.view().ProjectsByClient(clientID)
}

func (r *Repository) TotalUnbilledHours(clientID string) decimal.Decimal {
	return r.view().TotalUnbilledHours(clientID)
}

func (r *Repository) TotalUnbilledAmount(clientID string) decimal.Decimal {
	return r.view().TotalUnbilledAmount(clientID)
}

func (r *Repository) Dashboard(now time.Time) Dashboard {
	return r.view().Dashboard(now)
}

// track records the outcome of an operation. Use it deferred with a
// pointer to the named error result.
func (r *Repository) track(ctx context.Context, op string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	r.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		r.logger.Printf("ledger: %s: %v", op, err)
	}
}

// === Loading ===

// LoadAll fetches all four collections in parallel. Each fetch is
// isolated: one that fails is logged and leaves its collection as it was
// while the others still apply. Transient read errors are retried with
// backoff first. Rows fetched before a concurrent mutation finished are
// discarded, so a slow load never undoes a fresher reload. The returned
// error joins the failures and is informational; the repository stays
// usable.
func (r *Repository) LoadAll(ctx context.Context) (err error) {
	defer r.track(ctx, "load_all", time.Now(), &err)

	gen := r.generation()
	loaders := []func(context.Context, uint64) error{
		r.loadClients,
		r.loadProjects,
		r.loadTimesheets,
		r.loadInvoices,
	}

	errs := make([]error, len(loaders))
	var wg sync.WaitGroup
	for i, load := range loaders {
		wg.Add(1)
		go func(i int, load func(context.Context, uint64) error) {
			defer wg.Done()
			errs[i] = load(ctx, gen)
		}(i, load)
	}
	wg.Wait()

	r.mu.Lock()
	r.state.LoadedAt = r.now()
	r.mu.Unlock()

	return errors.Join(errs...)
}

func (r *Repository) generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen
}

// bump starts a new generation. Mutations call it, through the reload
// helpers, after their writes reach the store.
func (r *Repository) bump() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	return r.gen
}

// apply publishes loaded rows unless a mutation has reloaded since gen.
func (r *Repository) apply(gen uint64, what string, set func(*Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		r.logger.Printf("ledger: discarding stale %s load", what)
		return
	}
	set(&r.state)
}

// fetch runs get, retrying transient failures with the configured backoff.
func fetch[T any](ctx context.Context, r *Repository, what string, get func(context.Context) ([]T, error)) ([]T, error) {
	var rows []T
	op := func() error {
		out, err := get(ctx)
		if err != nil {
			if store.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		rows = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Printf("ledger: loading %s failed, retrying in %s: %v", what, wait, err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(r.newBackOff(), ctx), notify); err != nil {
		return nil, fmt.Errorf("loading %s: %w", what, err)
	}
	return rows, nil
}

func (r *Repository) reloadClients(ctx context.Context) error {
	return r.loadClients(ctx, r.bump())
}

func (r *Repository) loadClients(ctx context.Context, gen uint64) error {
	rows, err := fetch(ctx, r, "clients", func(ctx context.Context) ([]model.Client, error) {
		return r.store.GetClients(ctx, store.ClientFilter{SortBy: "created_at", SortDesc: true})
	})
	if err != nil {
		r.logger.Printf("ledger: %v", err)
		return err
	}
	r.apply(gen, "clients", func(s *Snapshot) { s.Clients = rows })
	return nil
}

func (r *Repository) reloadProjects(ctx context.Context) error {
	return r.loadProjects(ctx, r.bump())
}

func (r *Repository) loadProjects(ctx context.Context, gen uint64) error {
	rows, err := fetch(ctx, r, "projects", func(ctx context.Context) ([]model.Project, error) {
		return r.store.GetProjects(ctx, store.ProjectFilter{SortBy: "created_at", SortDesc: true})
	})
	if err != nil {
		r.logger.Printf("ledger: %v", err)
		return err
	}
	r.apply(gen, "projects", func(s *Snapshot) { s.Projects = rows })
	return nil
}

func (r *Repository) reloadTimesheets(ctx context.Context) error {
	return r.loadTimesheets(ctx, r.bump())
}

func (r *Repository) loadTimesheets(ctx context.Context, gen uint64) error {
	rows, err := fetch(ctx, r, "timesheets", func(ctx context.Context) ([]model.TimesheetEntry, error) {
		return r.store.GetTimeEntries(ctx, store.TimeEntryFilter{SortBy: "date", SortDesc: true})
	})
	if err != nil {
		r.logger.Printf("ledger: %v", err)
		return err
	}
	r.apply(gen, "timesheets", func(s *Snapshot) { s.Timesheets = rows })
	return nil
}

func (r *Repository) reloadInvoices(ctx context.Context) error {
	return r.loadInvoices(ctx, r.bump())
}

func (r *Repository) loadInvoices(ctx context.Context, gen uint64) error {
	rows, err := fetch(ctx, r, "invoices", func(ctx context.Context) ([]model.Invoice, error) {
		return r.store.GetInvoices(ctx, store.InvoiceFilter{SortBy: "created_at", SortDesc: true})
	})
	if err != nil {
		r.logger.Printf("ledger: %v", err)
		return err
	}
	r.apply(gen, "invoices", func(s *Snapshot) { s.Invoices = rows })
	return nil
}

// === Clients ===

// AddClient stores a new client and returns the stored row.
func (r *Repository) AddClient(ctx context.Context, data model.Client) (client *model.Client, err error) {
	defer r.track(ctx, "add_client", time.Now(), &err)
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if data.Status != "" && !model.IsValidClientStatus(data.Status) {
		return nil, fmt.Errorf("%w: client status %q", ErrInvalidStatus, data.Status)
	}
	client, err = r.store.CreateClient(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("adding client: %w", err)
	}
	r.reloadClients(ctx)
	return client, nil
}

// UpdateClient applies patch to the client and returns the stored row.
func (r *Repository) UpdateClient(ctx context.Context, id string, patch model.ClientPatch) (client *model.Client, err error) {
	defer r.track(ctx, "update_client", time.Now(), &err)
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if patch.Status != nil && !model.IsValidClientStatus(*patch.Status) {
		return nil, fmt.Errorf("%w: client status %q", ErrInvalidStatus, *patch.Status)
	}
	client, err = r.store.UpdateClient(ctx, id, patch)
	if err != nil {
		return nil, notFoundAs(ErrClientNotFound, fmt.Errorf("updating client %s: %w", id, err))
	}
	r.reloadClients(ctx)
	return client, nil
}

// DeleteClient removes the client. The store refuses while projects,
// entries or invoices still reference it.
func (r *Repository) DeleteClient(ctx context.Context, id string) (err error) {
	defer r.track(ctx, "delete_client", time.Now(), &err)
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err = r.store.DeleteClient(ctx, id); err != nil {
		return notFoundAs(ErrClientNotFound, fmt.Errorf("deleting client %s: %w", id, err))
	}
	r.reloadClients(ctx)
	return nil
}

// === Projects ===

// AddProject stores a new project. A zero hourly rate inherits the
// client's rate.
func (r *Repository) AddProject(ctx context.Context, data model.Project) (project *model.Project, err error) {
	defer r.track(ctx, "add_project", time.Now(), &err)
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	client, err := r.lookupClient(ctx, data.ClientID)
	if err != nil {
		return nil, err
	}
	if data.Status != "" && !model.IsValidProjectStatus(data.Status) {
		return nil, fmt.Errorf("%w: project status %q", ErrInvalidStatus, data.Status)
	}
	if data.HourlyRate.IsZero() {
		data.HourlyRate = client.HourlyRate
	}

	project, err = r.store.CreateProject(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("adding project: %w", err)
	}
	r.reloadProjects(ctx)
	return project, nil
}

// === Timesheets ===

// AddTimesheetEntry logs work against a project. The client is taken from
// the project when not given. A zero rate inherits the project's rate, or
// the client's when the project has none.
func (r *Repository) AddTimesheetEntry(ctx context.Context, data model.TimesheetEntry) (entry *model.TimesheetEntry, err error) {
	defer r.track(ctx, "add_timesheet_entry", time.Now(), &err)
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if data.Invoiced || data.InvoiceID != nil {
		return nil, ErrInvoiceLinkManaged
	}

	project, err := r.lookupProject(ctx, data.ProjectID)
	if err != nil {
		return nil, err
	}
	if data.ClientID == "" {
		data.ClientID = project.ClientID
	}
	if data.ClientID != project.ClientID {
		return nil, fmt.Errorf("%w: project %s", ErrProjectClientMismatch, project.Name)
	}
	client, err := r.lookupClient(ctx, data.ClientID)
	if err != nil {
		return nil, err
	}

	if data.Rate.IsZero() {
		data.Rate = project.HourlyRate
		if data.Rate.IsZero() {
			data.Rate = client.HourlyRate
		}
	}
	if data.Date.IsZero() {
		data.Date = r.now()
	}

	entry, err = r.store.CreateTimeEntry(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("adding time entry: %w", err)
	}
	r.reloadTimesheets(ctx)
	return entry, nil
}

// UpdateTimesheetEntry applies patch to an entry. Hours, rate and project
// are frozen once the entry is invoiced, and the invoice link itself can
// only be changed by CreateInvoice and DeleteInvoice.
func (r *Repository) UpdateTimesheetEntry(ctx context.Context, id string, patch model.TimesheetEntryPatch) (entry *model.TimesheetEntry, err error) {
	defer r.track(ctx, "update_timesheet_entry", time.Now(), &err)
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if patch.Invoiced != nil || patch.InvoiceID != nil {
		return nil, ErrInvoiceLinkManaged
	}
	if current, ok := r.view().Entry(id); ok && current.Invoiced &&
		(patch.Hours != nil || patch.Rate != nil || patch.ProjectID != nil) {
		return nil, fmt.Errorf("%w: entry %s is on an invoice", ErrEntryInvoiced, id)
	}
	if patch.ProjectID != nil {
		if _, err := r.lookupProject(ctx, *patch.ProjectID); err != nil {
			return nil, err
		}
	}

	entry, err = r.store.UpdateTimeEntry(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("updating time entry %s: %w", id, err)
	}
	r.reloadTimesheets(ctx)
	return entry, nil
}

// DeleteTimesheetEntry removes an entry that is not on any invoice.
func (r *Repository) DeleteTimesheetEntry(ctx context.Context, id string) (err error) {
	defer r.track(ctx, "delete_timesheet_entry", time.Now(), &err)
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if current, ok := r.view().Entry(id); ok && current.Invoiced {
		return fmt.Errorf("%w: delete invoice first", ErrEntryInvoiced)
	}
	if err = r.store.DeleteTimeEntry(ctx, id); err != nil {
		return fmt.Errorf("deleting time entry %s: %w", id, err)
	}
	r.reloadTimesheets(ctx)
	return nil
}

// === Lookups ===

// lookupClient resolves a client from memory, falling back to the store
// for rows created since the last load.
func (r *Repository) lookupClient(ctx context.Context, id string) (model.Client, error) {
	if id == "" {
		return model.Client{}, ErrClientNotFound
	}
	if c, ok := r.view().Client(id); ok {
		return c, nil
	}
	c, err := r.store.GetClientByID(ctx, id)
	if err != nil {
		return model.Client{}, notFoundAs(ErrClientNotFound, fmt.Errorf("client %s: %w", id, err))
	}
	return *c, nil
}

// lookupProject resolves a project from memory, reloading projects once
// if it is not there.
func (r *Repository) lookupProject(ctx context.Context, id string) (model.Project, error) {
	if id == "" {
		return model.Project{}, ErrProjectNotFound
	}
	if p, ok := r.view().Project(id); ok {
		return p, nil
	}
	if err := r.reloadProjects(ctx); err != nil {
		return model.Project{}, err
	}
	if p, ok := r.view().Project(id); ok {
		return p, nil
	}
	return model.Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
}

// notFoundAs adds sentinel to the chain when err carries store.ErrNotFound.
func notFoundAs(sentinel, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}
