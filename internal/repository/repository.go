// Package repository persists referee runs in PostgreSQL.
//
// A run is stored as one row in referee_runs, one row per processed preprint
// in preprint_summaries and one row per suggested referee in referees. All
// rows of a run are written in a single transaction.
//
// Repositories accept a DBTX so they work on a pool or inside an existing
// transaction:
//
//	db, _ := database.New(ctx, &cfg.Database, logger)
//	runs := repository.NewPgRunRepository(db, logger)
//	err := runs.SaveRun(ctx, result)
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/referee-finder/internal/database"
	"github.com/helixir/referee-finder/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// RunRepository stores and loads pipeline runs.
type RunRepository interface {
	// SaveRun stores the run, its summaries and its result map.
	// Returns domain.ErrAlreadyExists if a run with the same id is stored.
	SaveRun(ctx context.Context, run *domain.RunResult) error

	// GetRun loads a stored run.
	// Returns domain.ErrNotFound if no run has the id.
	GetRun(ctx context.Context, id uuid.UUID) (*domain.RunResult, error)
}
