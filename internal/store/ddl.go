package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

// Dialect selects the SQL flavor of a Store implementation.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

//go:embed schema_postgres.sql
var schemaPostgres string

//go:embed schema_sqlite.sql
var schemaSQLite string

// Migrate applies the schema for the given dialect. Statements are idempotent
// so Migrate is safe to run on every startup.
//
// Timestamps are stored as RFC3339 UTC text in both dialects; the fixed-width
// encoding keeps lexicographic comparison equal to chronological order, so
// range filters work without driver-specific time handling. Booleans are
// stored as 0/1 integers for the same reason.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	var schema string
	switch dialect {
	case DialectPostgres:
		schema = schemaPostgres
	case DialectSQLite:
		schema = schemaSQLite
	default:
		return fmt.Errorf("migrate: unknown dialect %q", dialect)
	}
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
