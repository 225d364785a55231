package sqlstore

import (
	"context"
	"fmt"

	"github.com/openvault/archivist/internal/config"
	"github.com/openvault/archivist/internal/store"
	"github.com/openvault/archivist/internal/store/postgres"
	"github.com/openvault/archivist/internal/store/sqlite"
)

// NewFromConfig opens the configured database, applies the schema and returns
// a ready Store.
func NewFromConfig(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx, db, store.DialectPostgres); err != nil {
			_ = db.Close()
			return nil, err
		}
		return New(db, store.DialectPostgres), nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx, db, store.DialectSQLite); err != nil {
			_ = db.Close()
			return nil, err
		}
		return New(db, store.DialectSQLite), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}
