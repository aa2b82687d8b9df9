package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/apptentive/engagekit/internal/core/config"
	"github.com/apptentive/engagekit/internal/core/db"
)

func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Store.DBURL == "" {
		return nil, fmt.Errorf("--db-url required (or EK_STORE_DB_URL)")
	}
	database, err := db.Open(ctx, cfg.Store.DBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// openStore opens the configured database and refuses to continue while
// migrations are pending.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqlx.DB, *db.ManifestStore, error) {
	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'engagekit migrate up' first", s.ID)
		}
	}

	store, err := db.NewManifestStore(database, db.WithStoreLogger(logger.With("component", "manifest_store")))
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, store, nil
}
