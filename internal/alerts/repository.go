package alerts

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/selling-area/internal/platform/db"
)

// Repository reads the shelf aggregates behind the alert views.
type Repository struct {
	store *db.Store
}

// NewRepository constructs the repository.
func NewRepository(store *db.Store) *Repository {
	return &Repository{store: store}
}

// ItemLevels returns every item with its total shelf quantity. Items absent
// from the shelf report zero.
func (r *Repository) ItemLevels(ctx context.Context) ([]ItemLevel, error) {
	const query = `SELECT i.id, i.name, COALESCE(i.barcode, ''), COALESCE(SUM(s.quantity), 0)::int,
		i.shelf_threshold, i.shelf_average
	FROM items i
	LEFT JOIN shelf_stock s ON s.item_id = i.id
	GROUP BY i.id, i.name, i.barcode, i.shelf_threshold, i.shelf_average
	ORDER BY i.id`
	var levels []ItemLevel
	err := r.store.Read(ctx, func(ctx context.Context, q db.Queryer) error {
		levels = levels[:0]
		rows, err := q.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var l ItemLevel
			if err := rows.Scan(&l.ItemID, &l.Name, &l.Barcode, &l.ShelfQuantity, &l.Threshold, &l.Average); err != nil {
				return err
			}
			levels = append(levels, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("alerts: item levels: %w", err)
	}
	return levels, nil
}

// ShelfRows returns every shelf layer with positive quantity.
func (r *Repository) ShelfRows(ctx context.Context) ([]ShelfRow, error) {
	const query = `SELECT s.id, s.item_id, i.name, COALESCE(i.barcode, ''), s.location_id,
		s.expiration_date, s.quantity, i.shelf_life
	FROM shelf_stock s
	JOIN items i ON i.id = s.item_id
	WHERE s.quantity > 0
	ORDER BY s.expiration_date, s.item_id, s.location_id, s.id`
	var out []ShelfRow
	err := r.store.Read(ctx, func(ctx context.Context, q db.Queryer) error {
		out = out[:0]
		rows, err := q.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var row ShelfRow
			if err := rows.Scan(&row.ShelfID, &row.ItemID, &row.Name, &row.Barcode, &row.LocationID,
				&row.ExpirationDate, &row.Quantity, &row.ShelfLife); err != nil {
				return err
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("alerts: shelf rows: %w", err)
	}
	return out, nil
}
