package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nhle/sitebook/internal/model"
	"github.com/nhle/sitebook/internal/store"
)

// NewTestStore creates a SQLStore backed by a fresh database file in the
// test's temp dir, with all migrations applied. It automatically closes the
// store when the test completes.
func NewTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	return OpenTestStore(t, filepath.Join(t.TempDir(), "test.db"))
}

// OpenTestStore opens a SQLStore on the database file at path. Opening the
// same path twice gives two independent writers on one database, like two
// devices sharing a hosted store.
func OpenTestStore(t *testing.T, path string) *store.SQLStore {
	t.Helper()

	s, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Dec parses a decimal literal and fails the test on bad input.
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parsing decimal %q: %v", s, err)
	}
	return d
}

// SeedClient inserts a client with the given hourly rate.
func SeedClient(t *testing.T, s store.Store, name, rate string) *model.Client {
	t.Helper()
	c, err := s.CreateClient(context.Background(), model.Client{
		Name:       name,
		Email:      name + "@example.com",
		HourlyRate: Dec(t, rate),
	})
	if err != nil {
		t.Fatalf("seeding client %s: %v", name, err)
	}
	return c
}

// SeedProject inserts a project for clientID.
func SeedProject(t *testing.T, s store.Store, clientID, name, rate string) *model.Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), model.Project{
		ClientID:   clientID,
		Name:       name,
		HourlyRate: Dec(t, rate),
	})
	if err != nil {
		t.Fatalf("seeding project %s: %v", name, err)
	}
	return p
}

// EqualDecimal fails the test unless got equals the decimal literal want.
func EqualDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !Dec(t, want).Equal(got) {
		t.Errorf("decimal mismatch: want %s, got %s %v", want, got.String(), msgAndArgs)
	}
}
