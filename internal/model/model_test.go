package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLineAmountRoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "8.33", LineAmount(dec("0.333"), dec("25")).StringFixed(2))
	assert.Equal(t, "0.13", LineAmount(dec("0.125"), dec("1")).StringFixed(2))
	assert.Equal(t, "250.00", TimesheetEntry{Hours: dec("5"), Rate: dec("50")}.Amount().StringFixed(2))
}

func TestSumItemsAndEntryIDs(t *testing.T) {
	a, b := "e1", ""
	inv := Invoice{Items: []InvoiceItem{
		{Amount: dec("100.10"), TimesheetEntryID: &a},
		{Amount: dec("0.90"), TimesheetEntryID: &b},
		{Amount: dec("9")},
	}}
	assert.Equal(t, "110.00", SumItems(inv.Items).StringFixed(2))
	assert.Equal(t, []string{"e1"}, inv.EntryIDs())
	assert.True(t, SumItems(nil).IsZero())
}

func TestInvoiceIsPastDue(t *testing.T) {
	due := time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC)
	after := due.Add(24 * time.Hour)

	tests := []struct {
		status string
		now    time.Time
		want   bool
	}{
		{InvoiceStatusSent, after, true},
		{InvoiceStatusOverdue, after, true},
		{InvoiceStatusSent, due, false},
		{InvoiceStatusSent, due.Add(23*time.Hour + 59*time.Minute), false},
		{InvoiceStatusOverdue, due.Add(12 * time.Hour), false},
		{InvoiceStatusPaid, after, false},
		{InvoiceStatusDraft, after, false},
	}
	for _, tt := range tests {
		inv := Invoice{Status: tt.status, DueDate: due}
		assert.Equal(t, tt.want, inv.IsPastDue(tt.now), "%s at %s", tt.status, tt.now)
	}
}

func TestStatusValidation(t *testing.T) {
	assert.True(t, IsValidClientStatus(ClientStatusPending))
	assert.False(t, IsValidClientStatus("active"))
	assert.True(t, IsValidInvoiceStatus(InvoiceStatusOverdue))
	assert.False(t, IsValidInvoiceStatus("Void"))
	assert.Equal(t, 0, ClampProgress(-5))
	assert.Equal(t, 100, ClampProgress(140))
	assert.Equal(t, 40, ClampProgress(40))
}

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "USD", cfg.Billing.Currency)
	assert.Equal(t, "0.15", cfg.Billing.TaxRateDecimal().String())
	assert.Equal(t, 30, cfg.Billing.DueDays)
	assert.Equal(t, "fs", cfg.Archive.Driver)
	assert.Equal(t, 60, cfg.Display.RefreshIntervalSec)
	assert.False(t, cfg.Mail.Enabled())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
billing:
  currency: NZD
  tax_rate: 0.125
  company_name: "Hammer & Sons"
mail:
  from: office@example.com
  smtp_host: smtp.example.com
`), 0o644))
	t.Setenv("SITEBOOK_BILLING_DUE_DAYS", "14")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "NZD", cfg.Billing.Currency)
	assert.Equal(t, "0.125", cfg.Billing.TaxRateDecimal().String())
	assert.Equal(t, "Hammer & Sons", cfg.Billing.CompanyName)
	assert.Equal(t, 14, cfg.Billing.DueDays)
	assert.True(t, cfg.Mail.Enabled())
	assert.Equal(t, "587", cfg.Mail.SMTPPort)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown driver":   "database:\n  driver: mysql\n",
		"postgres no dsn":  "database:\n  driver: postgres\n",
		"tax rate too big": "billing:\n  tax_rate: 1.5\n",
		"bad due days":     "billing:\n  due_days: 0\n",
		"s3 no bucket":     "archive:\n  driver: s3\n",
		"unknown archive":  "archive:\n  driver: ftp\n",
		"malformed yaml":   "billing: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	cfg.Billing.CompanyName = "Northside Builders"
	cfg.Billing.DueDays = 21
	require.NoError(t, SaveConfig(path, cfg))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Northside Builders", got.Billing.CompanyName)
	assert.Equal(t, 21, got.Billing.DueDays)
}
