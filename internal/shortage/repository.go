package shortage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/selling-area/internal/platform/db"
	"github.com/odyssey-erp/selling-area/internal/shared"
)

// Repository persists shortage records.
type Repository struct {
	store *db.Store
}

// NewRepository constructs the repository.
func NewRepository(store *db.Store) *Repository {
	return &Repository{store: store}
}

// TxRepository is the transactional view used while paying down shortages.
type TxRepository interface {
	ListOpenForUpdate(ctx context.Context, itemID int64) ([]Record, error)
	ApplyPayment(ctx context.Context, p Payment, actor string, at time.Time) error
	ClaimRequest(ctx context.Context, key string, at time.Time) error
}

// WithTx runs fn in a single transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Insert stores a new shortage record.
func (r *Repository) Insert(ctx context.Context, rec Record) (int64, error) {
	var id int64
	err := r.store.Read(ctx, func(ctx context.Context, q db.Queryer) error {
		var err error
		id, err = Insert(ctx, q, rec)
		return err
	})
	return id, err
}

// ListOpen returns unresolved records, optionally for one item, oldest first.
func (r *Repository) ListOpen(ctx context.Context, itemID *int64) ([]Record, error) {
	var out []Record
	err := r.store.Read(ctx, func(ctx context.Context, q db.Queryer) error {
		rows, err := q.Query(ctx, `SELECT `+recordColumns+` FROM shelf_shortages
WHERE resolved = FALSE AND ($1::bigint IS NULL OR item_id = $1)
ORDER BY logged_at, id`, itemID)
		if err != nil {
			return err
		}
		out, err = scanRecords(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("shortage: list open: %w", err)
	}
	return out, nil
}

// Insert writes rec through q so callers can include it in their own transaction.
func Insert(ctx context.Context, q db.Queryer, rec Record) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO shelf_shortages (item_id, quantity, location_id, logged_by, logged_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5) RETURNING id`,
		rec.ItemID, rec.Quantity, rec.LocationID, rec.LoggedBy, rec.LoggedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("shortage: insert: %w", err)
	}
	return id, nil
}

const recordColumns = `id, item_id, quantity, resolved, resolved_qty, resolved_at, COALESCE(resolved_by, ''),
	logged_at, logged_by, COALESCE(location_id, '')`

func scanRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.ItemID, &rec.Quantity, &rec.Resolved, &rec.ResolvedQty,
			&rec.ResolvedAt, &rec.ResolvedBy, &rec.LoggedAt, &rec.LoggedBy, &rec.LocationID); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ClaimRequest records key alongside the payments it guards.
func (r *txRepository) ClaimRequest(ctx context.Context, key string, at time.Time) error {
	return shared.ClaimInTx(ctx, r.tx, key, "shortage", at)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) ListOpenForUpdate(ctx context.Context, itemID int64) ([]Record, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+recordColumns+` FROM shelf_shortages
WHERE item_id = $1 AND resolved = FALSE
ORDER BY logged_at, id
FOR UPDATE`, itemID)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (r *txRepository) ApplyPayment(ctx context.Context, p Payment, actor string, at time.Time) error {
	if p.Settles {
		_, err := r.tx.Exec(ctx, `UPDATE shelf_shortages
SET quantity = 0, resolved = TRUE, resolved_qty = resolved_qty + $2, resolved_at = $3, resolved_by = $4
WHERE id = $1`, p.RecordID, p.Take, at, actor)
		return err
	}
	_, err := r.tx.Exec(ctx, `UPDATE shelf_shortages
SET quantity = quantity - $2, resolved_qty = resolved_qty + $2
WHERE id = $1`, p.RecordID, p.Take)
	return err
}
