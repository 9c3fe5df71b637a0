package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable is returned when the database cannot be reached after
// the configured reconnect attempts.
var ErrStoreUnavailable = errors.New("platform/db: store unavailable")

// Queryer is satisfied by *pgxpool.Pool and pgx.Tx.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StoreConfig controls per-call deadlines and reconnect behaviour.
type StoreConfig struct {
	// Timeout bounds a single attempt. Zero disables the per-attempt deadline.
	Timeout time.Duration
	// Retries is the number of extra attempts after a transient failure.
	Retries int
	// Backoff is the pause before each retry.
	Backoff time.Duration
}

// DefaultStoreConfig mirrors the production settings: one reconnect after a
// dropped connection, five second statement deadline.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{Timeout: 5 * time.Second, Retries: 1, Backoff: 200 * time.Millisecond}
}

// Store wraps the pool with deadlines, a reconnect-and-retry policy and a
// uniform unavailable error. It is safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	cfg    StoreConfig
	logger *slog.Logger
}

// NewStore builds a Store over an existing pool.
func NewStore(pool *pgxpool.Pool, cfg StoreConfig, logger *slog.Logger) *Store {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, cfg: cfg, logger: logger}
}

// Pool exposes the underlying pool for components that manage their own statements.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.do(ctx, "ping", func(ctx context.Context) error {
		return s.pool.Ping(ctx)
	})
}

// Read runs fn against the pool. fn may be invoked more than once, so it must
// reset any state it accumulates before scanning.
func (s *Store) Read(ctx context.Context, fn func(context.Context, Queryer) error) error {
	return s.do(ctx, "read", func(ctx context.Context) error {
		return fn(ctx, s.pool)
	})
}

// Exec runs a single statement and returns the number of affected rows.
func (s *Store) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	var affected int64
	err := s.do(ctx, "exec", func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

func (s *Store) do(ctx context.Context, op string, fn func(context.Context) error) error {
	return retry(ctx, s.cfg, func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			s.logger.WarnContext(ctx, "store reconnect attempt", slog.String("op", op), slog.Int("attempt", attempt))
		}
		return fn(ctx)
	})
}

// retry runs fn until it succeeds, fails with a non-transient error, or the
// retry budget is exhausted. Transient exhaustion surfaces as ErrStoreUnavailable.
func retry(ctx context.Context, cfg StoreConfig, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		if attempt > 0 && cfg.Backoff > 0 {
			timer := time.NewTimer(cfg.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}
		err := fn(attemptCtx, attempt)
		cancel()

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		var ce *commitError
		if errors.As(err, &ce) {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, lastErr)
}

// IsTransient reports whether err indicates a dropped or unreachable
// connection (or an attempt deadline) as opposed to a statement failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			return true
		case pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsSerializationFailure reports whether err is a serialization failure or
// deadlock raised by PostgreSQL for a concurrent writer.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsCheckViolation reports whether err is a CHECK constraint violation.
func IsCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}
