package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/selling-area/internal/platform/db"
)

// Repository reads and updates catalog rows.
type Repository struct {
	store *db.Store
}

// NewRepository constructs the repository.
func NewRepository(store *db.Store) *Repository {
	return &Repository{store: store}
}

const itemColumns = `id, name, COALESCE(barcode, ''), COALESCE(family_cat, ''), COALESCE(section_cat, ''),
	COALESCE(department_cat, ''), COALESCE(class_cat, ''), shelf_threshold, shelf_average, shelf_life`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.Barcode, &it.FamilyCat, &it.SectionCat,
		&it.DepartmentCat, &it.ClassCat, &it.ShelfThreshold, &it.ShelfAverage, &it.ShelfLife)
	return it, err
}

// GetItem loads one item by id.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	var item Item
	err := r.store.Read(ctx, func(ctx context.Context, q db.Queryer) error {
		var err error
		item, err = scanItem(q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("catalog: get item %d: %w", id, err)
	}
	return item, nil
}

// GetItemByBarcode loads one item by barcode.
func (r *Repository) GetItemByBarcode(ctx context.Context, barcode string) (Item, error) {
	var item Item
	err := r.store.Read(ctx, func(ctx context.Context, q db.Queryer) error {
		var err error
		item, err = scanItem(q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE barcode = $1`, barcode))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("catalog: get item by barcode: %w", err)
	}
	return item, nil
}

// UpdateShelfSettings overwrites threshold and average for an item.
func (r *Repository) UpdateShelfSettings(ctx context.Context, id int64, settings ShelfSettings) error {
	affected, err := r.store.Exec(ctx, `UPDATE items SET shelf_threshold = $1, shelf_average = $2 WHERE id = $3`,
		settings.Threshold, settings.Average, id)
	if err != nil {
		return fmt.Errorf("catalog: update shelf settings: %w", err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// GetLocation loads a shelf location.
func (r *Repository) GetLocation(ctx context.Context, id string) (Location, error) {
	var loc Location
	err := r.store.Read(ctx, func(ctx context.Context, q db.Queryer) error {
		return q.QueryRow(ctx, `SELECT id, label FROM shelf_locations WHERE id = $1`, id).Scan(&loc.ID, &loc.Label)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, ErrLocationNotFound
	}
	if err != nil {
		return Location{}, fmt.Errorf("catalog: get location: %w", err)
	}
	return loc, nil
}

// ListLocations returns every shelf location ordered by id.
func (r *Repository) ListLocations(ctx context.Context) ([]Location, error) {
	var out []Location
	err := r.store.Read(ctx, func(ctx context.Context, q db.Queryer) error {
		out = out[:0]
		rows, err := q.Query(ctx, `SELECT id, label FROM shelf_locations ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var loc Location
			if err := rows.Scan(&loc.ID, &loc.Label); err != nil {
				return err
			}
			out = append(out, loc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: list locations: %w", err)
	}
	return out, nil
}
