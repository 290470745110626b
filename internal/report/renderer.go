package report

import (
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/pkg/color"
	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/nhle/sitebook/internal/model"
)

const dateLayout = "2006-01-02"

var stripe = &color.Color{Red: 240, Green: 240, Blue: 240}

// Company is the issuer block printed at the top of every document.
type Company struct {
	Name    string
	Address string
	Email   string
}

// InvoiceDocument is a fully resolved invoice: the client's details are
// copied in so the renderer needs no lookups.
type InvoiceDocument struct {
	Invoice       model.Invoice
	ClientName    string
	ClientEmail   string
	ClientAddress string
}

// TimesheetDocument is a client's work over a period. Period is a free-form
// label such as "March 2026" or "Week 12".
type TimesheetDocument struct {
	Client       model.Client
	Period       string
	Entries      []model.TimesheetEntry
	ProjectNames map[string]string
}

// Renderer turns documents into PDFs.
type Renderer struct {
	company  Company
	currency string
	taxRate  decimal.Decimal
}

// NewRenderer creates a renderer from the billing configuration.
func NewRenderer(cfg model.BillingConfig) *Renderer {
	return &Renderer{
		company: Company{
			Name:    cfg.CompanyName,
			Address: cfg.CompanyAddress,
			Email:   cfg.CompanyEmail,
		},
		currency: cfg.Currency,
		taxRate:  cfg.TaxRateDecimal(),
	}
}

// TaxRate returns the rate applied to invoice subtotals.
func (r *Renderer) TaxRate() decimal.Decimal {
	return r.taxRate
}

// Totals computes the printed totals for inv.
func (r *Renderer) Totals(inv model.Invoice) Totals {
	return InvoiceTotals(inv.Amount, r.taxRate)
}

func (r *Renderer) newDocument(title, subtitle string) pdf.Maroto {
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetPageMargins(20, 10, 20)

	m.RegisterHeader(func() {
		m.Row(12, func() {
			m.Col(8, func() {
				m.Text(r.company.Name, props.Text{
					Top:   3,
					Style: consts.Bold,
					Size:  14,
				})
			})
			m.Col(4, func() {
				m.Text(title, props.Text{
					Top:   3,
					Style: consts.Bold,
					Align: consts.Right,
					Size:  16,
				})
			})
		})
		m.Row(6, func() {
			m.Col(8, func() {
				m.Text(joinNonEmpty(" | ", r.company.Address, r.company.Email), props.Text{Size: 9})
			})
			m.Col(4, func() {
				m.Text(subtitle, props.Text{Align: consts.Right, Size: 10})
			})
		})
		m.Row(6, func() {})
	})
	return m
}

func tableProps(grid []uint) props.TableList {
	return props.TableList{
		HeaderProp: props.TableListContent{
			Size:      10,
			GridSizes: grid,
		},
		ContentProp: props.TableListContent{
			Size:      10,
			GridSizes: grid,
		},
		Align:                consts.Left,
		AlternatedBackground: stripe,
		HeaderContentSpace:   1,
		Line:                 false,
	}
}

func summaryRow(m pdf.Maroto, label, value string, bold bool) {
	style := consts.Normal
	if bold {
		style = consts.Bold
	}
	m.Row(7, func() {
		m.Col(9, func() {
			m.Text(label, props.Text{Style: style, Align: consts.Right, Size: 10})
		})
		m.Col(3, func() {
			m.Text(value, props.Text{Style: style, Align: consts.Right, Size: 10})
		})
	})
}

// InvoiceRows returns the item table of an invoice, one row per item.
func (r *Renderer) InvoiceRows(inv model.Invoice) [][]string {
	rows := make([][]string, 0, len(inv.Items))
	for _, it := range inv.Items {
		rows = append(rows, []string{
			it.Description,
			FormatHours(it.Hours),
			FormatMoney(r.currency, it.Rate),
			FormatMoney(r.currency, it.Amount),
		})
	}
	return rows
}

// RenderInvoice renders an invoice with its items, subtotal, tax and total.
func (r *Renderer) RenderInvoice(doc InvoiceDocument) (Document, error) {
	inv := doc.Invoice
	m := r.newDocument("INVOICE", inv.InvoiceNumber)

	m.Row(6, func() {
		m.Col(6, func() {
			m.Text("Bill to", props.Text{Style: consts.Bold, Size: 10})
		})
		m.Col(6, func() {
			m.Text("Date: "+inv.Date.Format(dateLayout), props.Text{Align: consts.Right, Size: 10})
		})
	})
	m.Row(6, func() {
		m.Col(6, func() {
			m.Text(doc.ClientName, props.Text{Size: 10})
		})
		m.Col(6, func() {
			m.Text("Due: "+inv.DueDate.Format(dateLayout), props.Text{Align: consts.Right, Size: 10})
		})
	})
	m.Row(6, func() {
		m.Col(6, func() {
			m.Text(joinNonEmpty(" | ", doc.ClientAddress, doc.ClientEmail), props.Text{Size: 9})
		})
		m.Col(6, func() {
			m.Text("Status: "+inv.Status, props.Text{Align: consts.Right, Size: 10})
		})
	})
	m.Row(8, func() {})

	m.TableList(
		[]string{"Description", "Hours", "Rate", "Amount"},
		r.InvoiceRows(inv),
		tableProps([]uint{6, 2, 2, 2}),
	)
	m.Row(4, func() {})

	totals := r.Totals(inv)
	summaryRow(m, "Subtotal", FormatMoney(r.currency, totals.Subtotal), false)
	summaryRow(m, "Tax ("+FormatPercent(r.taxRate)+")", FormatMoney(r.currency, totals.Tax), false)
	summaryRow(m, "Total", FormatMoney(r.currency, totals.Total), true)

	if strings.TrimSpace(inv.Notes) != "" {
		m.Row(10, func() {})
		m.Row(6, func() {
			m.Col(12, func() {
				m.Text("Notes", props.Text{Style: consts.Bold, Size: 10})
			})
		})
		m.Row(12, func() {
			m.Col(12, func() {
				m.Text(inv.Notes, props.Text{Size: 10})
			})
		})
	}

	buf, err := m.Output()
	if err != nil {
		return Document{}, fmt.Errorf("rendering invoice %s: %w", inv.InvoiceNumber, err)
	}
	return Document{
		Name:        InvoiceFileName(inv.InvoiceNumber),
		ContentType: ContentTypePDF,
		Data:        buf.Bytes(),
	}, nil
}

// RenderTimesheet renders a client's entries grouped per day with daily
// subtotals and a grand total.
func (r *Renderer) RenderTimesheet(doc TimesheetDocument) (Document, error) {
	m := r.newDocument("TIMESHEET", doc.Period)

	m.Row(8, func() {
		m.Col(12, func() {
			m.Text(doc.Client.Name, props.Text{Top: 2, Style: consts.Bold, Size: 12})
		})
	})

	total := decimal.Zero
	totalHours := decimal.Zero
	for _, g := range GroupByDay(doc.Entries) {
		total = total.Add(g.Amount)
		totalHours = totalHours.Add(g.Hours)

		day := g.Day.Format("Monday, 2 January 2006")
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text(day, props.Text{Top: 5, Style: consts.Bold, Size: 11})
			})
		})

		rows := make([][]string, 0, len(g.Entries))
		for _, e := range g.Entries {
			rows = append(rows, []string{
				doc.ProjectNames[e.ProjectID],
				e.Description,
				joinNonEmpty("-", e.StartTime, e.EndTime),
				FormatHours(e.Hours),
				FormatMoney(r.currency, e.Amount()),
			})
		}
		m.TableList(
			[]string{"Project", "Description", "Time", "Hours", "Amount"},
			rows,
			tableProps([]uint{3, 4, 2, 1, 2}),
		)

		subtotal := fmt.Sprintf("%s h  %s", FormatHours(g.Hours), FormatMoney(r.currency, g.Amount))
		m.Row(7, func() {
			m.Col(12, func() {
				m.Text(subtotal, props.Text{Style: consts.Bold, Align: consts.Right, Size: 9})
			})
		})
	}

	m.Row(6, func() {})
	summaryRow(m, "Total hours", FormatHours(totalHours), false)
	summaryRow(m, "Total", FormatMoney(r.currency, total), true)

	buf, err := m.Output()
	if err != nil {
		return Document{}, fmt.Errorf("rendering timesheet for %s: %w", doc.Client.Name, err)
	}
	return Document{
		Name:        TimesheetFileName(doc.Client.Name, doc.Period),
		ContentType: ContentTypePDF,
		Data:        buf.Bytes(),
	}, nil
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
