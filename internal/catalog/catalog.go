package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations upgrade catalogs created by older builds. Entry i moves a
// catalog from user_version i to i+1; schema.sql already holds the latest
// shape, so every statement must be idempotent.
var migrations = []string{
	// v1: tag lookups for tag: selections
	`CREATE INDEX IF NOT EXISTS idx_node_tags_tag ON node_tags(tag)`,
}

var currentSchemaVersion = len(migrations)

// pragma is a connection setting applied on open.
type pragma struct {
	name  string
	value string
}

var pragmas = []pragma{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// Catalog is a node snapshot stored in SQLite.
type Catalog struct {
	db *sql.DB
}

// Open creates or opens the catalog at path and brings its schema up to
// date. Opening an existing catalog leaves its contents untouched.
//
// ":memory:" gives a throwaway catalog that lives until Close.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}

	// One connection: SQLite has a single writer, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &Catalog{db: db}
	if err := c.init(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	return c, nil
}

func (c *Catalog) init(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	for _, p := range pragmas {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	if _, err := c.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return c.migrate(ctx)
}

// migrate runs the migrations past the stored user_version.
func (c *Catalog) migrate(ctx context.Context) error {
	var version int
	if err := c.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if _, err := c.db.ExecContext(ctx, migrations[v]); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if version == currentSchemaVersion {
		return nil
	}
	if _, err := c.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("write user_version: %w", err)
	}
	return nil
}

// Close releases the database. Closing a zero Catalog is a no-op.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the connection for ad hoc queries and tests.
func (c *Catalog) DB() *sql.DB {
	return c.db
}

// verifyPragma reports whether a connection setting reads back as expected.
// Some pragmas report in a different form than they are set (NORMAL reads
// back as 1), so expected is the read-back form.
func (c *Catalog) verifyPragma(ctx context.Context, name, expected string) error {
	var got string
	if err := c.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&got); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if got != expected {
		return fmt.Errorf("%s = %q, want %q", name, got, expected)
	}
	return nil
}
