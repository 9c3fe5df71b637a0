package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/selling-area/internal/platform/db"
)

// IdempotencyStore maintains the processed request ids claimed with
// ClaimInTx.
type IdempotencyStore struct {
	exec Execer
	now  func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(exec Execer) *IdempotencyStore {
	return &IdempotencyStore{exec: exec, now: time.Now}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = fmt.Errorf("%w: request already processed", ErrConflict)

// ClaimInTx records key inside the caller's transaction so the claim commits
// or rolls back together with the work it guards. A key that is already
// claimed returns ErrIdempotencyConflict.
func ClaimInTx(ctx context.Context, q db.Queryer, key, module string, at time.Time) error {
	if key == "" || module == "" {
		return fmt.Errorf("%w: idempotency key and module required", ErrValidation)
	}
	_, err := q.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, at.UTC())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention and reports how many were dropped.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.exec == nil {
		return 0, nil
	}
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: retention must be positive", ErrValidation)
	}
	cutoff := s.now().UTC().Add(-olderThan)
	return s.exec.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
}

// Delete releases a key after a failed attempt so the caller may retry.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.exec == nil {
		return nil
	}
	if key == "" {
		return fmt.Errorf("%w: idempotency key required", ErrValidation)
	}
	_, err := s.exec.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key)
	return err
}
