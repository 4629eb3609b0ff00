package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"txguardmon/internal/model"
)

// Store provides Postgres persistence for synthesized events.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutEventBatch inserts event records. Duplicates by (tx_count_after,
// sequence_index) are skipped so a re-observed tick never double-writes.
func (s *Store) PutEventBatch(events []model.EventRecord) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		failureType := ""
		if !ev.Success {
			failureType = string(ev.FailureType)
		}
		batch.Queue(`
			INSERT INTO inferred_events (
				tx_count_after, sequence_index, success, failure_type, tier_guess, observed_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (tx_count_after, sequence_index) DO NOTHING
		`,
			int64(ev.TxCountAfter),
			ev.SequenceIndex,
			ev.Success,
			failureType,
			int(ev.TierGuess),
			ev.ObservedAt,
		)
	}

	br := s.pool.SendBatch(context.Background(), batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
