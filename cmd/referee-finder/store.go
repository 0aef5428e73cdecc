package main

import (
	"context"
	"fmt"

	"github.com/helixir/referee-finder/internal/database"
	"github.com/helixir/referee-finder/internal/repository"
)

// openStore connects to PostgreSQL, applies migrations when configured and
// returns the run repository. The caller closes the returned DB.
func (a *app) openStore(ctx context.Context) (*database.DB, repository.RunRepository, error) {
	if !a.cfg.Database.Enabled {
		return nil, nil, fmt.Errorf("database is disabled; set database.enabled or REFEREE_DATABASE_ENABLED")
	}

	db, err := database.New(ctx, &a.cfg.Database, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	if a.cfg.Database.MigrationAutoRun {
		if err := a.migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	return db, repository.NewPgRunRepository(db, a.logger), nil
}

func (a *app) migrate(db *database.DB) error {
	migrator, err := database.NewMigrator(db, a.cfg.Database.MigrationPath, a.logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			a.logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
