package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/selling-area/internal/platform/db"
	"github.com/odyssey-erp/selling-area/internal/shared"
	"github.com/odyssey-erp/selling-area/internal/shortage"
)

// Repository persists batch and shelf ledgers in PostgreSQL.
type Repository struct {
	store *db.Store
}

// NewRepository constructs Repository.
func NewRepository(store *db.Store) *Repository {
	return &Repository{store: store}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	ListBatches(ctx context.Context, itemID int64) ([]Batch, error)
	DecrementBatch(ctx context.Context, batchID int64, qty int) error
	RestockBatch(ctx context.Context, key BatchKey, qty int, at time.Time) error
	ListShelfLayers(ctx context.Context, itemID int64, locationID string) ([]ShelfStock, error)
	UpsertShelf(ctx context.Context, key ShelfKey, qty int, at time.Time) error
	DecrementShelf(ctx context.Context, shelfID int64, qty int) error
	InsertEntry(ctx context.Context, entry ShelfEntry) error
	RecordShortage(ctx context.Context, rec shortage.Record) (int64, error)
	ClaimRequest(ctx context.Context, key string, at time.Time) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return r.store.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ClaimRequest records a request id in the same transaction as the transfer,
// so a rollback releases it.
func (r *txRepository) ClaimRequest(ctx context.Context, key string, at time.Time) error {
	return shared.ClaimInTx(ctx, r.tx, key, "inventory", at)
}

const batchColumns = `id, item_id, expiration_date, unit_cost, storage_location, quantity, received_at`

const batchesByRank = `SELECT ` + batchColumns + `
FROM inventory_batches
WHERE item_id = $1 AND quantity > 0
ORDER BY expiration_date ASC, unit_cost ASC, received_at ASC, storage_location ASC, id ASC`

// ListBatches returns available batches outside a transaction, ranked for allocation.
func (r *Repository) ListBatches(ctx context.Context, itemID int64) ([]Batch, error) {
	var out []Batch
	err := r.store.Read(ctx, func(ctx context.Context, q db.Queryer) error {
		var err error
		out, err = queryBatches(ctx, q, itemID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: list batches: %w", err)
	}
	return out, nil
}

// ListLocationStock lists shelf layers at a location with item names.
func (r *Repository) ListLocationStock(ctx context.Context, locationID string) ([]ShelfStock, error) {
	var out []ShelfStock
	err := r.store.Read(ctx, func(ctx context.Context, q db.Queryer) error {
		out = nil
		rows, err := q.Query(ctx, `SELECT s.id, s.item_id, i.name, s.expiration_date, s.unit_cost, s.location_id, s.quantity, s.last_updated
FROM shelf_stock s
JOIN items i ON i.id = s.item_id
WHERE s.location_id = $1 AND s.quantity > 0
ORDER BY i.name, s.expiration_date, s.unit_cost`, locationID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s ShelfStock
			if err := rows.Scan(&s.ID, &s.ItemID, &s.ItemName, &s.ExpirationDate, &s.UnitCost, &s.LocationID, &s.Quantity, &s.LastUpdated); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: list location stock: %w", err)
	}
	return out, nil
}

// LastLocation returns the location of the newest inbound shelf entry for an item.
func (r *Repository) LastLocation(ctx context.Context, itemID int64) (LastLocation, error) {
	loc := LastLocation{ItemID: itemID}
	err := r.store.Read(ctx, func(ctx context.Context, q db.Queryer) error {
		return q.QueryRow(ctx, `SELECT location_id, created_at
FROM shelf_entries
WHERE item_id = $1 AND quantity > 0
ORDER BY created_at DESC, id DESC
LIMIT 1`, itemID).Scan(&loc.LocationID, &loc.At)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return LastLocation{}, ErrNoShelfHistory
	}
	if err != nil {
		return LastLocation{}, fmt.Errorf("inventory: last location: %w", err)
	}
	return loc, nil
}

func queryBatches(ctx context.Context, q db.Queryer, itemID int64) ([]Batch, error) {
	rows, err := q.Query(ctx, batchesByRank, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.ItemID, &b.ExpirationDate, &b.UnitCost, &b.StorageLocation, &b.Quantity, &b.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *txRepository) ListBatches(ctx context.Context, itemID int64) ([]Batch, error) {
	return queryBatches(ctx, r.tx, itemID)
}

// DecrementBatch subtracts qty only when the batch still holds it.
func (r *txRepository) DecrementBatch(ctx context.Context, batchID int64, qty int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_batches SET quantity = quantity - $2
WHERE id = $1 AND quantity >= $2`, batchID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (r *txRepository) RestockBatch(ctx context.Context, key BatchKey, qty int, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `WITH target AS (
	SELECT id FROM inventory_batches
	WHERE item_id = $1 AND expiration_date = $2 AND unit_cost = $3 AND storage_location = $4
	ORDER BY id
	LIMIT 1
	FOR UPDATE
)
UPDATE inventory_batches b SET quantity = b.quantity + $5
FROM target WHERE b.id = target.id`, key.ItemID, key.ExpirationDate, key.UnitCost, key.StorageLocation, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO inventory_batches (item_id, expiration_date, unit_cost, storage_location, quantity, received_at)
VALUES ($1, $2, $3, $4, $5, $6)`, key.ItemID, key.ExpirationDate, key.UnitCost, key.StorageLocation, qty, at)
	return err
}

func (r *txRepository) ListShelfLayers(ctx context.Context, itemID int64, locationID string) ([]ShelfStock, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, item_id, expiration_date, unit_cost, location_id, quantity, last_updated
FROM shelf_stock
WHERE item_id = $1 AND location_id = $2 AND quantity > 0
ORDER BY expiration_date ASC, unit_cost ASC, id ASC
FOR UPDATE`, itemID, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ShelfStock
	for rows.Next() {
		var s ShelfStock
		if err := rows.Scan(&s.ID, &s.ItemID, &s.ExpirationDate, &s.UnitCost, &s.LocationID, &s.Quantity, &s.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *txRepository) UpsertShelf(ctx context.Context, key ShelfKey, qty int, at time.Time) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO shelf_stock (item_id, expiration_date, unit_cost, location_id, quantity, last_updated)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (item_id, expiration_date, unit_cost, location_id)
DO UPDATE SET quantity = shelf_stock.quantity + EXCLUDED.quantity, last_updated = EXCLUDED.last_updated`,
		key.ItemID, key.ExpirationDate, key.UnitCost, key.LocationID, qty, at)
	return err
}

// DecrementShelf subtracts qty from a shelf layer and drops the row once empty.
func (r *txRepository) DecrementShelf(ctx context.Context, shelfID int64, qty int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE shelf_stock SET quantity = quantity - $2, last_updated = NOW()
WHERE id = $1 AND quantity >= $2`, shelfID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentModification
	}
	_, err = r.tx.Exec(ctx, `DELETE FROM shelf_stock WHERE id = $1 AND quantity = 0`, shelfID)
	return err
}

func (r *txRepository) InsertEntry(ctx context.Context, e ShelfEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO shelf_entries (transfer_id, item_id, expiration_date, unit_cost, quantity, tx_type, created_by, location_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.TransferID, e.ItemID, e.ExpirationDate, e.UnitCost, e.Quantity, string(e.TxType), e.CreatedBy, e.LocationID, e.CreatedAt)
	return err
}

func (r *txRepository) RecordShortage(ctx context.Context, rec shortage.Record) (int64, error) {
	return shortage.Insert(ctx, r.tx, rec)
}
