package ledger

import "errors"

var (
	// ErrClientNotFound is returned when an operation names a client that
	// does not exist.
	ErrClientNotFound = errors.New("client not found")

	// ErrProjectNotFound is returned when an entry names an unknown project.
	ErrProjectNotFound = errors.New("project not found")

	// ErrProjectClientMismatch is returned when an entry's project belongs
	// to a different client than the entry.
	ErrProjectClientMismatch = errors.New("project belongs to another client")

	// ErrInvoiceNotFound is returned when an operation names an invoice
	// that does not exist.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrNoBillableEntries is returned by CreateInvoice when none of the
	// candidate entries can be billed. No invoice is created.
	ErrNoBillableEntries = errors.New("no billable entries")

	// ErrEntryInvoiced is returned when deleting or repricing an entry that
	// is already on an invoice.
	ErrEntryInvoiced = errors.New("time entry is invoiced")

	// ErrInvoiceLinkManaged is returned when a caller tries to set an
	// entry's invoice fields directly. Only CreateInvoice and DeleteInvoice
	// may change them.
	ErrInvoiceLinkManaged = errors.New("invoice link is managed by invoice operations")

	// ErrInvalidStatus is returned for a status outside the entity's set.
	ErrInvalidStatus = errors.New("invalid status")
)
