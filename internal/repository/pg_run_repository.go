package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/helixir/referee-finder/internal/database"
	"github.com/helixir/referee-finder/internal/domain"
)

// pgUniqueViolation is the PostgreSQL unique_violation error code.
const pgUniqueViolation = "23505"

// Compile-time interface verification.
var _ RunRepository = (*PgRunRepository)(nil)

// PgRunRepository is a PostgreSQL implementation of RunRepository.
type PgRunRepository struct {
	db     DBTX
	logger zerolog.Logger
}

// NewPgRunRepository creates a new PostgreSQL run repository.
func NewPgRunRepository(db DBTX, logger zerolog.Logger) *PgRunRepository {
	return &PgRunRepository{
		db:     db,
		logger: logger.With().Str("component", "run_repository").Logger(),
	}
}

// SaveRun inserts the run and everything it produced in one transaction.
// A repository built on a pgx.Tx nests a savepoint inside it.
func (r *PgRunRepository) SaveRun(ctx context.Context, run *domain.RunResult) error {
	if run == nil {
		return domain.NewValidationError("run", "run cannot be nil")
	}
	if run.RunID == uuid.Nil {
		return domain.NewValidationError("run_id", "run ID is required")
	}

	var err error
	if b, ok := r.db.(database.TxBeginner); ok {
		err = database.WithTransaction(ctx, b, r.logger, func(tx pgx.Tx) error {
			return saveRun(ctx, tx, run)
		})
	} else {
		err = saveRun(ctx, r.db, run)
	}
	if err != nil {
		return err
	}

	r.logger.Info().
		Str("run_id", run.RunID.String()).
		Int("preprints", len(run.Summaries)).
		Msg("run saved")
	return nil
}

func saveRun(ctx context.Context, db DBTX, run *domain.RunResult) error {
	_, err := db.Exec(ctx, `
		INSERT INTO referee_runs (
			id, started_at, finished_at, cancelled, preprint_count, succeeded_count
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.RunID, run.StartedAt, nullTime(run.FinishedAt), run.Cancelled,
		len(run.Summaries), run.Succeeded(),
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("run %s: %w", run.RunID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, s := range run.Summaries {
		attemptsJSON, err := json.Marshal(s.Attempts)
		if err != nil {
			return fmt.Errorf("failed to marshal attempts: %w", err)
		}

		_, err = db.Exec(ctx, `
			INSERT INTO preprint_summaries (
				run_id, position, record_id, title, outcome, final_state, provider,
				reference_count, qualifying_count, author_count, error, attempts
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			run.RunID, i, nullString(s.RecordID), s.Title, string(s.Outcome), string(s.FinalState),
			nullString(string(s.Provider)),
			s.ReferenceCount, s.QualifyingCount, s.AuthorCount, nullString(s.Error), attemptsJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to insert summary %d: %w", i, err)
		}
	}

	titles := make([]string, 0, len(run.Results))
	for title := range run.Results {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	for _, title := range titles {
		for setPos, set := range run.Results[title] {
			for authorPos, a := range set.Authors {
				_, err := db.Exec(ctx, `
					INSERT INTO referees (
						run_id, preprint_title, set_position, reference_id, reference_title,
						author_position, name, affiliation, external_id
					) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
					run.RunID, title, setPos, string(set.ReferenceID), set.ReferenceTitle,
					authorPos, a.Name, a.Affiliation, nullString(a.ExternalID),
				)
				if err != nil {
					return fmt.Errorf("failed to insert referee: %w", err)
				}
			}
		}
	}

	return nil
}

// GetRun loads a run with its summaries and result map.
func (r *PgRunRepository) GetRun(ctx context.Context, id uuid.UUID) (*domain.RunResult, error) {
	run := &domain.RunResult{RunID: id, Results: make(domain.ResultMap)}

	var finishedAt *time.Time
	err := r.db.QueryRow(ctx, `
		SELECT started_at, finished_at, cancelled
		FROM referee_runs
		WHERE id = $1`, id,
	).Scan(&run.StartedAt, &finishedAt, &run.Cancelled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("run", id.String())
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if finishedAt != nil {
		run.FinishedAt = *finishedAt
	}

	if run.Summaries, err = r.getSummaries(ctx, id); err != nil {
		return nil, err
	}
	if err := r.getReferees(ctx, id, run.Results); err != nil {
		return nil, err
	}

	return run, nil
}

func (r *PgRunRepository) getSummaries(ctx context.Context, runID uuid.UUID) ([]domain.PreprintSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT record_id, title, outcome, final_state, provider,
			reference_count, qualifying_count, author_count, error, attempts
		FROM preprint_summaries
		WHERE run_id = $1
		ORDER BY position`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []domain.PreprintSummary
	for rows.Next() {
		var (
			s                  domain.PreprintSummary
			recordID, provider *string
			errMsg             *string
			outcome, state     string
			attemptsJSON       []byte
		)
		if err := rows.Scan(
			&recordID, &s.Title, &outcome, &state, &provider,
			&s.ReferenceCount, &s.QualifyingCount, &s.AuthorCount, &errMsg, &attemptsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}

		s.RecordID = derefString(recordID)
		s.Outcome = domain.Outcome(outcome)
		s.FinalState = domain.FallbackState(state)
		s.Provider = domain.SourceType(derefString(provider))
		s.Error = derefString(errMsg)
		if len(attemptsJSON) > 0 {
			if err := json.Unmarshal(attemptsJSON, &s.Attempts); err != nil {
				return nil, fmt.Errorf("failed to unmarshal attempts: %w", err)
			}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}

	return summaries, nil
}

func (r *PgRunRepository) getReferees(ctx context.Context, runID uuid.UUID, results domain.ResultMap) error {
	rows, err := r.db.Query(ctx, `
		SELECT preprint_title, set_position, reference_id, reference_title,
			name, affiliation, external_id
		FROM referees
		WHERE run_id = $1
		ORDER BY preprint_title, set_position, author_position`, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to query referees: %w", err)
	}
	defer rows.Close()

	lastTitle, lastSet := "", -1
	for rows.Next() {
		var (
			title, refID, refTitle string
			setPos                 int
			a                      domain.Author
			externalID             *string
		)
		if err := rows.Scan(&title, &setPos, &refID, &refTitle, &a.Name, &a.Affiliation, &externalID); err != nil {
			return fmt.Errorf("failed to scan referee: %w", err)
		}
		a.ExternalID = derefString(externalID)

		if title != lastTitle || setPos != lastSet {
			results[title] = append(results[title], domain.AuthorSet{
				ReferenceID:    domain.CanonicalID(refID),
				ReferenceTitle: refTitle,
			})
			lastTitle, lastSet = title, setPos
		}
		sets := results[title]
		sets[len(sets)-1].Authors = append(sets[len(sets)-1].Authors, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating referees: %w", err)
	}

	return nil
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// nullString converts an empty string to nil for nullable columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nullTime converts the zero time to nil for nullable columns.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
