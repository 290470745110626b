package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/sitebook/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestInvoiceTotalsWithDefaultTax(t *testing.T) {
	totals := InvoiceTotals(dec("100"), dec("0.15"))
	assert.Equal(t, "100.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "15.00", totals.Tax.StringFixed(2))
	assert.Equal(t, "115.00", totals.Total.StringFixed(2))
	assert.Equal(t, "115.00", FormatMoney("", totals.Total))
}

func TestInvoiceTotalsRoundsTax(t *testing.T) {
	totals := InvoiceTotals(dec("33.33"), dec("0.15"))
	assert.Equal(t, "5.00", totals.Tax.StringFixed(2))
	assert.Equal(t, "38.33", totals.Total.StringFixed(2))
}

func TestRendererUsesConfiguredTaxRate(t *testing.T) {
	r := NewRenderer(model.BillingConfig{TaxRate: 0.15, Currency: "NZD"})
	totals := r.Totals(model.Invoice{Amount: dec("100")})
	assert.Equal(t, "NZD 115.00", FormatMoney("NZD", totals.Total))
	assert.Equal(t, "15%", FormatPercent(r.TaxRate()))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1.5", FormatHours(dec("1.50")))
	assert.Equal(t, "USD 7.50", FormatMoney("USD", dec("7.5")))
	assert.Equal(t, "12.5%", FormatPercent(dec("0.125")))
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "INV-2026-0001.pdf", InvoiceFileName("INV-2026-0001"))
	assert.Equal(t, "Harbour-Homes_March-2026.pdf", TimesheetFileName("Harbour Homes", "March 2026"))
	assert.Equal(t, "a-b_c.pdf", TimesheetFileName(" a / b ", "c/"))
}

func TestGroupByDay(t *testing.T) {
	d1 := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	entries := []model.TimesheetEntry{
		{ID: "c", Date: d2, Hours: dec("1"), Rate: dec("50")},
		{ID: "a", Date: d1, Hours: dec("2"), Rate: dec("50")},
		{ID: "b", Date: d1, Hours: dec("1.5"), Rate: dec("80")},
	}

	groups := GroupByDay(entries)
	require.Len(t, groups, 2)
	assert.True(t, groups[0].Day.Equal(d1))
	assert.Equal(t, "a", groups[0].Entries[0].ID)
	assert.Equal(t, "b", groups[0].Entries[1].ID)
	assert.True(t, dec("3.5").Equal(groups[0].Hours))
	assert.True(t, dec("220").Equal(groups[0].Amount))
	assert.True(t, groups[1].Day.Equal(d2))
}

func sampleInvoice() model.Invoice {
	entryID := "e1"
	return model.Invoice{
		InvoiceNumber: "INV-2026-0007",
		Date:          time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC),
		Amount:        dec("250"),
		Status:        model.InvoiceStatusDraft,
		Notes:         "Stage one complete.",
		Items: []model.InvoiceItem{
			{Description: "Deck - Framing", Hours: dec("2"), Rate: dec("50"), Amount: dec("100"), TimesheetEntryID: &entryID},
			{Description: "Deck - Decking", Hours: dec("3"), Rate: dec("50"), Amount: dec("150")},
		},
	}
}

func TestInvoiceRows(t *testing.T) {
	r := NewRenderer(model.BillingConfig{TaxRate: 0.15})
	rows := r.InvoiceRows(sampleInvoice())
	assert.Equal(t, [][]string{
		{"Deck - Framing", "2", "50.00", "100.00"},
		{"Deck - Decking", "3", "50.00", "150.00"},
	}, rows)
}

func TestRenderInvoice(t *testing.T) {
	r := NewRenderer(model.BillingConfig{
		Currency:    "USD",
		TaxRate:     0.15,
		CompanyName: "Nguyen Construction",
	})

	doc, err := r.RenderInvoice(InvoiceDocument{
		Invoice:    sampleInvoice(),
		ClientName: "Harbour Homes",
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0007.pdf", doc.Name)
	assert.Equal(t, ContentTypePDF, doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF")))
}

func TestRenderTimesheet(t *testing.T) {
	r := NewRenderer(model.BillingConfig{Currency: "USD", TaxRate: 0.15})
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	doc, err := r.RenderTimesheet(TimesheetDocument{
		Client: model.Client{Name: "Harbour Homes"},
		Period: "March 2026",
		Entries: []model.TimesheetEntry{
			{ProjectID: "p1", Date: day, StartTime: "08:00", EndTime: "10:00", Hours: dec("2"), Rate: dec("50"), Description: "Framing"},
			{ProjectID: "p1", Date: day.AddDate(0, 0, 1), Hours: dec("1.5"), Rate: dec("80"), Description: "Inspection"},
		},
		ProjectNames: map[string]string{"p1": "Deck"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Harbour-Homes_March-2026.pdf", doc.Name)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF")))
}
