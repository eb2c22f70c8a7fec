package outcome

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"smc-engine/internal/weights"
)

// Repository persists outcomes into the trade_outcomes table the weights
// store reads back.
type Repository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewRepository creates an outcome repository over an existing pool.
func NewRepository(pool *pgxpool.Pool, logger zerolog.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: logger.With().Str("component", "outcome_repo").Logger(),
	}
}

// RecordOutcome implements Recorder.
func (r *Repository) RecordOutcome(ctx context.Context, o weights.Outcome) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO trade_outcomes (setup, session, bias, result, r_multiple)
		 VALUES ($1, $2, $3, $4, $5)`,
		o.Setup, o.Session, o.Bias, o.Result, o.RMultiple)
	if err != nil {
		return fmt.Errorf("failed to insert trade outcome: %w", err)
	}

	r.logger.Debug().
		Str("setup", o.Setup).
		Str("result", o.Result).
		Float64("r_multiple", o.RMultiple).
		Msg("Trade outcome recorded")
	return nil
}
