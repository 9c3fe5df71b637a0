package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// WithTx executes fn within a RepeatableRead transaction. The transaction is
// rolled back when fn fails. A connection lost before commit is retried from
// the top; a connection lost during commit is reported as unavailable without
// retrying since the outcome is unknown.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return s.do(ctx, "tx", func(ctx context.Context) error {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
		if err != nil {
			return fmt.Errorf("platform/db: begin tx: %w", err)
		}
		defer func() {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}()

		if err := fn(ctx, tx); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			if IsTransient(err) {
				return &commitError{err: err}
			}
			return fmt.Errorf("platform/db: commit tx: %w", err)
		}
		return nil
	})
}

type commitError struct {
	err error
}

func (e *commitError) Error() string { return "platform/db: commit tx: " + e.err.Error() }
func (e *commitError) Unwrap() error { return e.err }
