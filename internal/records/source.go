// Package records reads preprint records from the editorial record store.
//
// Two stores are supported: a local YAML file and an Airtable table. Both
// return every record of a view; Eligible decides which ones the referee
// pipeline should process.
package records

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/referee-finder/internal/domain"
	"github.com/helixir/referee-finder/internal/observability"
)

// Statuses that make a record eligible for referee suggestions.
const (
	StatusToPitch  = "To Pitch(Editorial)"
	StatusSelected = "Selected"
)

// DefaultView is the record store view the editorial team keeps proposals in.
const DefaultView = "Proposals"

// Source lists preprint records from a record store.
type Source interface {
	// List returns every record in view, in store order.
	List(ctx context.Context, view string) ([]domain.PreprintRecord, error)

	// Name identifies the store in logs and metrics.
	Name() string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Eligible reports whether rec should be processed: its status is one of the
// pitch statuses and it carries a methods tag.
func Eligible(rec domain.PreprintRecord) bool {
	if rec.Status != StatusToPitch && rec.Status != StatusSelected {
		return false
	}
	return validate.Struct(rec) == nil
}

// Loader lists records from a Source and keeps the eligible ones.
type Loader struct {
	source  Source
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewLoader creates a Loader. metrics may be nil.
func NewLoader(source Source, logger zerolog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{
		source:  source,
		logger:  logger.With().Str("component", "records").Str("source", source.Name()).Logger(),
		metrics: metrics,
	}
}

// Load lists view and returns the eligible records in store order.
func (l *Loader) Load(ctx context.Context, view string) ([]domain.PreprintRecord, error) {
	all, err := l.source.List(ctx, view)
	if err != nil {
		return nil, fmt.Errorf("list %s records: %w", l.source.Name(), err)
	}

	eligible := make([]domain.PreprintRecord, 0, len(all))
	for _, rec := range all {
		if !Eligible(rec) {
			l.logger.Debug().
				Str("record_id", rec.ID).
				Str("status", rec.Status).
				Msg("skipping ineligible record")
			if l.metrics != nil {
				l.metrics.RecordRecordSkipped("ineligible")
			}
			continue
		}
		eligible = append(eligible, rec)
	}

	if l.metrics != nil {
		l.metrics.RecordRecordsLoaded(l.source.Name(), len(eligible))
	}
	l.logger.Info().
		Str("view", view).
		Int("total", len(all)).
		Int("eligible", len(eligible)).
		Msg("records loaded")

	return eligible, nil
}
