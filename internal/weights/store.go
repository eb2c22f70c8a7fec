package weights

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Store is a pgx-backed Provider that derives the weights table from the
// recorded trade outcomes.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewStore creates a weights store over an existing connection pool.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{pool: pool, logger: logger.With().Str("component", "weights_store").Logger()}
}

// Migrate creates the trade_outcomes table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS trade_outcomes (
			id          BIGSERIAL PRIMARY KEY,
			setup       TEXT NOT NULL,
			session     TEXT NOT NULL,
			bias        TEXT NOT NULL,
			result      TEXT NOT NULL,
			r_multiple  DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create trade_outcomes table: %w", err)
	}
	return nil
}

// GetOptimizationParams implements Provider by folding all persisted
// outcomes into a weights table.
func (s *Store) GetOptimizationParams(ctx context.Context) (SetupWeights, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT setup, session, bias, result, r_multiple FROM trade_outcomes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.Setup, &o.Session, &o.Bias, &o.Result, &o.RMultiple); err != nil {
			return nil, fmt.Errorf("failed to scan trade outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trade outcomes: %w", err)
	}

	table := FromOutcomes(outcomes)
	s.logger.Debug().Int("outcomes", len(outcomes)).Int("setups", len(table)).Msg("Built setup weights table")
	return table, nil
}
