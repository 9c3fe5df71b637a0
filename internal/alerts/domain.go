// Package alerts computes low-stock and near-expiry views over the shelf ledger.
package alerts

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/selling-area/internal/shared"
)

// Band is the urgency colour of a near-expiry row.
type Band string

const (
	BandRed    Band = "red"
	BandOrange Band = "orange"
	BandGreen  Band = "green"
	BandNone   Band = ""
)

// DayBands are inclusive upper bounds on days left.
type DayBands struct {
	Red    int `yaml:"red" json:"red"`
	Orange int `yaml:"orange" json:"orange"`
	Green  int `yaml:"green" json:"green"`
}

// Validate requires 0 <= Red < Orange < Green.
func (b DayBands) Validate() error {
	if b.Red >= b.Orange || b.Orange >= b.Green {
		return fmt.Errorf("%w: got red=%d orange=%d green=%d", ErrInvalidDayBands, b.Red, b.Orange, b.Green)
	}
	return nil
}

// FractionBands are inclusive upper bounds on the fraction of shelf life left.
type FractionBands struct {
	Red    float64 `yaml:"red" json:"red"`
	Orange float64 `yaml:"orange" json:"orange"`
	Green  float64 `yaml:"green" json:"green"`
}

// Validate requires 0 <= Red < Orange < Green <= 1.
func (b FractionBands) Validate() error {
	if b.Red < 0 || b.Red >= b.Orange || b.Orange >= b.Green || b.Green > 1 {
		return fmt.Errorf("%w: got red=%.2f orange=%.2f green=%.2f", ErrInvalidFractionBands, b.Red, b.Orange, b.Green)
	}
	return nil
}

// ItemLevel is the total shelf quantity of an item with its policy.
type ItemLevel struct {
	ItemID        int64
	Name          string
	Barcode       string
	ShelfQuantity int
	Threshold     *int
	Average       *int
}

// LowStockFilter parameterises the low-stock view.
type LowStockFilter struct {
	// GlobalThreshold applies to items without their own threshold.
	GlobalThreshold int
	// Limit caps the number of rows, lowest quantity first. Zero means all.
	Limit int
}

// LowStockRow is one item evaluated against its threshold.
type LowStockRow struct {
	ItemID           int64  `json:"item_id"`
	Name             string `json:"name"`
	Barcode          string `json:"barcode,omitempty"`
	ShelfQuantity    int    `json:"shelf_quantity"`
	Threshold        int    `json:"threshold"`
	Average          *int   `json:"average,omitempty"`
	NeededForAverage int    `json:"needed_for_average"`
	ToThreshold      int    `json:"to_threshold"`
	Low              bool   `json:"low"`
}

// ShelfRow is one shelf layer with the item data the views need.
type ShelfRow struct {
	ShelfID        int64     `json:"shelf_id"`
	ItemID         int64     `json:"item_id"`
	Name           string    `json:"name"`
	Barcode        string    `json:"barcode,omitempty"`
	LocationID     string    `json:"location_id"`
	ExpirationDate time.Time `json:"expiration_date"`
	Quantity       int       `json:"quantity"`
	ShelfLife      *int      `json:"shelf_life,omitempty"`
}

// ExpiryRow is a shelf row classified into a band.
type ExpiryRow struct {
	ShelfRow
	DaysLeft     int      `json:"days_left"`
	FractionLeft *float64 `json:"fraction_left,omitempty"`
	Band         Band     `json:"band"`
}

// FractionReport splits rows that could be classified by shelf life from
// rows whose item has no positive shelf life.
type FractionReport struct {
	Rows          []ExpiryRow `json:"rows"`
	NotApplicable []ShelfRow  `json:"not_applicable"`
}

// Dashboard bundles the views shown together.
type Dashboard struct {
	GeneratedAt  time.Time     `json:"generated_at"`
	Today        string        `json:"today"`
	LowStock     []LowStockRow `json:"low_stock"`
	LowShelfRows []ShelfRow    `json:"low_shelf_rows"`
	NearExpiry   []ExpiryRow   `json:"near_expiry"`
	BandCounts   map[Band]int  `json:"band_counts"`
}

var (
	ErrInvalidDayBands      = fmt.Errorf("alerts: day bands must satisfy red < orange < green: %w", shared.ErrValidation)
	ErrInvalidFractionBands = fmt.Errorf("alerts: fraction bands must satisfy 0 <= red < orange < green <= 1: %w", shared.ErrValidation)
	ErrInvalidThreshold     = fmt.Errorf("alerts: threshold must not be negative: %w", shared.ErrValidation)
)
