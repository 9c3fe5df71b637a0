// Package catalog serves items and shelf locations, the reference data every
// stock operation validates against.
package catalog

import (
	"fmt"

	"github.com/odyssey-erp/selling-area/internal/shared"
)

// Item is a sellable article with its shelf replenishment policy.
type Item struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Barcode        string `json:"barcode,omitempty"`
	FamilyCat      string `json:"family_cat,omitempty"`
	SectionCat     string `json:"section_cat,omitempty"`
	DepartmentCat  string `json:"department_cat,omitempty"`
	ClassCat       string `json:"class_cat,omitempty"`
	ShelfThreshold *int   `json:"shelf_threshold,omitempty"`
	ShelfAverage   *int   `json:"shelf_average,omitempty"`
	ShelfLife      *int   `json:"shelf_life,omitempty"`
}

// Location is a shelf position on the selling floor.
type Location struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ShelfSettings updates the replenishment policy of an item. Nil clears a value.
type ShelfSettings struct {
	Threshold *int
	Average   *int
}

var (
	ErrItemNotFound     = fmt.Errorf("catalog: item %w", shared.ErrNotFound)
	ErrLocationNotFound = fmt.Errorf("catalog: location %w", shared.ErrNotFound)
	ErrInvalidItemID    = fmt.Errorf("catalog: invalid item id: %w", shared.ErrValidation)
	ErrInvalidSettings  = fmt.Errorf("catalog: shelf settings must be non-negative: %w", shared.ErrValidation)
	ErrBarcodeRequired  = fmt.Errorf("catalog: barcode required: %w", shared.ErrValidation)
)
