package store

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// driverName maps the dialect to its registered database/sql driver.
func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// columnTypes returns the replacer that renders the portable type
// placeholders used in migrations.
func (d Dialect) columnTypes() *strings.Replacer {
	if d == DialectPostgres {
		return strings.NewReplacer(
			"{{timestamp}}", "TIMESTAMPTZ",
			"{{date}}", "DATE",
			"{{money}}", "NUMERIC(14,2)",
			"{{hours}}", "NUMERIC(10,2)",
			"{{bool}}", "BOOLEAN",
		)
	}
	return strings.NewReplacer(
		"{{timestamp}}", "DATETIME",
		"{{date}}", "DATE",
		"{{money}}", "TEXT",
		"{{hours}}", "TEXT",
		"{{bool}}", "BOOLEAN",
	)
}

// SQLStore implements the Store interface on top of sqlx, against either
// a local SQLite file or a hosted Postgres database.
type SQLStore struct {
	db      *sqlx.DB
	dialect Dialect
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath with WAL
// mode and foreign keys enabled, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	dsn := "file:" + dbPath +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sqlx.Open(DialectSQLite.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// SQLite allows one writer at a time; a single connection also keeps
	// in-memory databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	return newSQLStore(db, DialectSQLite)
}

// NewPostgresStore connects to a Postgres database through pgx and runs
// any pending schema migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sqlx.Open(DialectPostgres.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return newSQLStore(db, DialectPostgres)
}

func newSQLStore(db *sqlx.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.runMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Dialect reports which backend the store talks to.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Ping checks that the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order, each in its own transaction.
func (s *SQLStore) runMigrations(ctx context.Context) error {
	types := s.dialect.columnTypes()

	if _, err := s.db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)",
	); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	currentVersion := 0
	if err := s.db.GetContext(ctx, &currentVersion,
		"SELECT COALESCE(MAX(version), 0) FROM schema_version",
	); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if err := s.applyMigration(ctx, m, types); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

func (s *SQLStore) applyMigration(ctx context.Context, m migration, types *strings.Replacer) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(types.Replace(m.sql)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO schema_version (version) VALUES (?)"), m.version,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements breaks a migration script on semicolons. Migration SQL
// never contains semicolons inside literals.
func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// updateBuilder collects "column = ?" assignments for partial updates.
type updateBuilder struct {
	sets []string
	args []interface{}
}

func (b *updateBuilder) set(column string, value interface{}) {
	b.sets = append(b.sets, column+" = ?")
	b.args = append(b.args, value)
}

func (b *updateBuilder) empty() bool {
	return len(b.sets) == 0
}

// orderClause validates sortBy against the allowed columns and falls back
// to def.
func orderClause(sortBy string, desc bool, def string, allowed ...string) string {
	column := def
	for _, a := range allowed {
		if sortBy == a {
			column = a
			break
		}
	}
	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	// id breaks ties so equal timestamps still load in a stable order.
	return fmt.Sprintf(" ORDER BY %s %s, id %s", column, direction, direction)
}

// whereClause joins conditions with AND.
func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}
