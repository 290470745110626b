package store

// migration holds a single schema migration with its target version and SQL.
// Type placeholders ({{timestamp}}, {{date}}, {{money}}, {{hours}}, {{bool}})
// are rendered per dialect before execution.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS clients (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	email       TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	address     TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'Active'
		CHECK(status IN ('Active', 'Completed', 'Pending')),
	hourly_rate {{money}} NOT NULL DEFAULT '0',
	created_at  {{timestamp}} NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	client_id   TEXT NOT NULL REFERENCES clients(id),
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	progress    INTEGER NOT NULL DEFAULT 0 CHECK(progress BETWEEN 0 AND 100),
	status      TEXT NOT NULL DEFAULT 'Planning'
		CHECK(status IN ('Planning', 'In Progress', 'Nearly Complete', 'Completed')),
	deadline    TEXT NOT NULL DEFAULT '',
	estimate    TEXT NOT NULL DEFAULT '',
	hourly_rate {{money}} NOT NULL DEFAULT '0',
	created_at  {{timestamp}} NOT NULL
);

CREATE TABLE IF NOT EXISTS invoices (
	id             TEXT PRIMARY KEY,
	client_id      TEXT NOT NULL REFERENCES clients(id),
	invoice_number TEXT NOT NULL UNIQUE,
	date           {{date}} NOT NULL,
	due_date       {{date}} NOT NULL,
	amount         {{money}} NOT NULL,
	status         TEXT NOT NULL DEFAULT 'Draft'
		CHECK(status IN ('Draft', 'Sent', 'Paid', 'Overdue')),
	notes          TEXT NOT NULL DEFAULT '',
	created_at     {{timestamp}} NOT NULL
);

CREATE TABLE IF NOT EXISTS time_entries (
	id          TEXT PRIMARY KEY,
	client_id   TEXT NOT NULL REFERENCES clients(id),
	project_id  TEXT NOT NULL REFERENCES projects(id),
	date        {{date}} NOT NULL,
	start_time  TEXT NOT NULL DEFAULT '',
	end_time    TEXT NOT NULL DEFAULT '',
	hours       {{hours}} NOT NULL,
	rate        {{money}} NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	invoiced    {{bool}} NOT NULL DEFAULT FALSE,
	invoice_id  TEXT REFERENCES invoices(id),
	created_at  {{timestamp}} NOT NULL
);

CREATE TABLE IF NOT EXISTS invoice_items (
	id            TEXT PRIMARY KEY,
	invoice_id    TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	description   TEXT NOT NULL,
	hours         {{hours}} NOT NULL,
	rate          {{money}} NOT NULL,
	amount        {{money}} NOT NULL,
	time_entry_id TEXT,
	UNIQUE(invoice_id, position)
);

CREATE INDEX IF NOT EXISTS idx_projects_client_id ON projects(client_id);
CREATE INDEX IF NOT EXISTS idx_time_entries_client_id ON time_entries(client_id);
CREATE INDEX IF NOT EXISTS idx_time_entries_invoice_id ON time_entries(invoice_id);
CREATE INDEX IF NOT EXISTS idx_time_entries_date ON time_entries(date);
CREATE INDEX IF NOT EXISTS idx_invoices_client_id ON invoices(client_id);
CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice_id ON invoice_items(invoice_id);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS invoice_sequences (
	year       INTEGER PRIMARY KEY,
	last_value INTEGER NOT NULL
);
`,
	},
}
