// Package mailer sends rendered documents by email and files a copy in
// the sender's Sent mailbox.
package mailer

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/sitebook/internal/model"
	"github.com/nhle/sitebook/internal/report"
)

// Message is an outgoing email with optional attachments.
type Message struct {
	To          []string
	Subject     string
	TextBody    string
	Attachments []report.Document
}

// Attachment describes an attachment found in a parsed message.
type Attachment struct {
	Filename string
	Size     int64
	MIMEType string
}

// NewInvoiceMessage addresses an invoice PDF to the client.
func NewInvoiceMessage(billing model.BillingConfig, client model.Client, inv model.Invoice, doc report.Document) Message {
	totals := report.InvoiceTotals(inv.Amount, billing.TaxRateDecimal())
	from := billing.CompanyName
	if from == "" {
		from = "us"
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", client.Name)
	fmt.Fprintf(&body, "Please find attached invoice %s for %s, due %s.\n\n",
		inv.InvoiceNumber,
		report.FormatMoney(billing.Currency, totals.Total),
		inv.DueDate.Format("2 January 2006"),
	)
	if strings.TrimSpace(inv.Notes) != "" {
		fmt.Fprintf(&body, "%s\n\n", inv.Notes)
	}
	fmt.Fprintf(&body, "Thanks for working with %s.\n", from)

	return Message{
		To:          []string{client.Email},
		Subject:     fmt.Sprintf("Invoice %s from %s", inv.InvoiceNumber, from),
		TextBody:    body.String(),
		Attachments: []report.Document{doc},
	}
}

// Compose renders msg as an RFC 5322 message with a text part and one
// attachment part per document.
func Compose(from string, msg Message, now time.Time) ([]byte, error) {
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("message has no recipients")
	}
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parsing sender %q: %w", from, err)
	}
	var to []*mail.Address
	for _, rcpt := range msg.To {
		addr, err := mail.ParseAddress(rcpt)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient %q: %w", rcpt, err)
		}
		to = append(to, addr)
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{fromAddr})
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("creating text part: %w", err)
	}
	var th mail.InlineHeader
	th.Set("Content-Type", "text/plain; charset=utf-8")
	w, err := tw.CreatePart(th)
	if err != nil {
		return nil, fmt.Errorf("creating text part: %w", err)
	}
	if _, err := io.WriteString(w, msg.TextBody); err != nil {
		return nil, fmt.Errorf("writing text part: %w", err)
	}
	w.Close()
	tw.Close()

	for _, doc := range msg.Attachments {
		var ah mail.AttachmentHeader
		ah.Set("Content-Type", doc.ContentType)
		ah.SetFilename(doc.Name)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("creating attachment %s: %w", doc.Name, err)
		}
		if _, err := aw.Write(doc.Data); err != nil {
			return nil, fmt.Errorf("writing attachment %s: %w", doc.Name, err)
		}
		aw.Close()
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse extracts the text body and attachment metadata from a raw
// message.
func Parse(raw []byte) (textBody string, attachments []Attachment, err error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return "", nil, fmt.Errorf("reading message: %w", err)
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return textBody, attachments, fmt.Errorf("reading part: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			if strings.HasPrefix(contentType, "text/plain") {
				textBody = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			attachments = append(attachments, Attachment{
				Filename: filename,
				Size:     int64(len(body)),
				MIMEType: contentType,
			})
		}
	}
	return textBody, attachments, nil
}
