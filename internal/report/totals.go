// Package report renders invoices and timesheets as printable PDFs.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhle/sitebook/internal/model"
)

// ContentTypePDF is the MIME type of every rendered document.
const ContentTypePDF = "application/pdf"

// Document is a rendered file ready to archive, attach or save.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// Totals are the figures printed under an invoice's item table.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// InvoiceTotals adds tax at taxRate (0.15 = 15%) to amount. Tax is rounded
// to cents.
func InvoiceTotals(amount, taxRate decimal.Decimal) Totals {
	tax := amount.Mul(taxRate).Round(2)
	return Totals{
		Subtotal: amount,
		Tax:      tax,
		Total:    amount.Add(tax),
	}
}

// FormatMoney renders an amount with two decimals, prefixed by currency
// when one is set.
func FormatMoney(currency string, amount decimal.Decimal) string {
	if currency == "" {
		return amount.StringFixed(2)
	}
	return currency + " " + amount.StringFixed(2)
}

// FormatHours renders hours without trailing zeros, at most two decimals.
func FormatHours(hours decimal.Decimal) string {
	return hours.Round(2).String()
}

// FormatPercent renders a fraction as a whole or decimal percentage.
func FormatPercent(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).Round(2).String() + "%"
}

// DayGroup is the set of timesheet entries worked on one calendar day.
type DayGroup struct {
	Day     time.Time
	Entries []model.TimesheetEntry
	Hours   decimal.Decimal
	Amount  decimal.Decimal
}

// GroupByDay buckets entries by work date, oldest day first, keeping the
// entries of each day in their original order.
func GroupByDay(entries []model.TimesheetEntry) []DayGroup {
	index := make(map[string]int)
	var groups []DayGroup
	for _, e := range entries {
		key := e.Date.Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			y, m, d := e.Date.Date()
			groups = append(groups, DayGroup{
				Day:    time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
				Hours:  decimal.Zero,
				Amount: decimal.Zero,
			})
			i = len(groups) - 1
			index[key] = i
		}
		g := &groups[i]
		g.Entries = append(g.Entries, e)
		g.Hours = g.Hours.Add(e.Hours)
		g.Amount = g.Amount.Add(e.Amount())
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Day.Before(groups[b].Day)
	})
	return groups
}

// fileSafe reduces s to characters that are safe in a file name or object
// key.
func fileSafe(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// InvoiceFileName is the document name for an invoice.
func InvoiceFileName(number string) string {
	return fileSafe(number) + ".pdf"
}

// TimesheetFileName is the document name for a client's timesheet.
func TimesheetFileName(clientName, period string) string {
	return fileSafe(clientName) + "_" + fileSafe(period) + ".pdf"
}
