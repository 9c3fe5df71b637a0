package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/selling-area/internal/shared"
)

// ReturnStorageLocation is the storage location assigned to stock sent back
// from the shelf into inventory.
const ReturnStorageLocation = "ShelfReturn"

// EntryType classifies shelf movement entries.
type EntryType string

const (
	EntryTransferIn EntryType = "TRANSFER_IN"
	EntryMoveOut    EntryType = "MOVE_OUT"
	EntryMoveIn     EntryType = "MOVE_IN"
	EntryReturn     EntryType = "RETURN"
	EntryAdjust     EntryType = "ADJUST"
)

// ShortagePolicy decides what happens to unmet demand after a transfer.
type ShortagePolicy string

const (
	ShortageRecord ShortagePolicy = "record"
	ShortageIgnore ShortagePolicy = "ignore"
)

// BatchKey identifies a batch by its cost layer and storage position.
type BatchKey struct {
	ItemID          int64           `json:"item_id"`
	ExpirationDate  time.Time       `json:"expiration_date"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	StorageLocation string          `json:"storage_location"`
}

// Batch is an inventory layer waiting in storage.
type Batch struct {
	ID int64 `json:"id"`
	BatchKey
	Quantity   int       `json:"quantity"`
	ReceivedAt time.Time `json:"received_at"`
}

// ShelfKey identifies a shelf layer.
type ShelfKey struct {
	ItemID         int64
	ExpirationDate time.Time
	UnitCost       decimal.Decimal
	LocationID     string
}

// ShelfStock is a quantity of one cost layer on one shelf.
type ShelfStock struct {
	ID             int64           `json:"id"`
	ItemID         int64           `json:"item_id"`
	ItemName       string          `json:"item_name,omitempty"`
	ExpirationDate time.Time       `json:"expiration_date"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	LocationID     string          `json:"location_id"`
	Quantity       int             `json:"quantity"`
	LastUpdated    time.Time       `json:"last_updated"`
}

// ShelfEntry is an append-only audit row for shelf movements. Quantity is
// signed: positive adds to the shelf, negative removes from it.
type ShelfEntry struct {
	TransferID     uuid.UUID
	ItemID         int64
	ExpirationDate time.Time
	UnitCost       decimal.Decimal
	Quantity       int
	TxType         EntryType
	CreatedBy      string
	LocationID     string
	CreatedAt      time.Time
}

// PlanLine is one batch consumption inside a plan.
type PlanLine struct {
	Batch    Batch `json:"batch"`
	Quantity int   `json:"quantity"`
}

// Plan is the result of ranking batches and consuming them greedily.
type Plan struct {
	ItemID    int64      `json:"item_id"`
	Requested int        `json:"requested"`
	Lines     []PlanLine `json:"lines"`
	Shortfall int        `json:"shortfall"`
}

// Allocated returns the quantity covered by plan lines.
func (p Plan) Allocated() int {
	total := 0
	for _, l := range p.Lines {
		total += l.Quantity
	}
	return total
}

// Cost returns the total unit cost of the planned lines.
func (p Plan) Cost() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lines {
		total = total.Add(l.Batch.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// TransferRequest moves stock from inventory to a shelf location.
type TransferRequest struct {
	ItemID     int64
	Quantity   int
	LocationID string
	Actor      string
	// RequestID makes the call idempotent when set.
	RequestID string
	// ShortagePolicy overrides the configured default when set.
	ShortagePolicy ShortagePolicy
}

// TransferResult reports the applied plan.
type TransferResult struct {
	TransferID uuid.UUID `json:"transfer_id"`
	Plan       Plan      `json:"plan"`
	Moved      int       `json:"moved"`
	Shortfall  int       `json:"shortfall"`
	ShortageID int64     `json:"shortage_id,omitempty"`
}

// MoveRequest moves shelf stock between two locations.
type MoveRequest struct {
	ItemID       int64
	FromLocation string
	ToLocation   string
	Quantity     int
	Actor        string
}

// ReturnRequest sends shelf stock back to inventory.
type ReturnRequest struct {
	ItemID     int64
	LocationID string
	Quantity   int
	Actor      string
}

// LayerMovement reports quantities taken from one shelf layer.
type LayerMovement struct {
	ExpirationDate time.Time       `json:"expiration_date"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	Quantity       int             `json:"quantity"`
}

// MovementResult is returned by shelf-side operations.
type MovementResult struct {
	TransferID uuid.UUID       `json:"transfer_id"`
	Moved      int             `json:"moved"`
	Layers     []LayerMovement `json:"layers"`
}

// DeclareRequest states the counted quantity of an item on a shelf.
type DeclareRequest struct {
	ItemID     int64
	LocationID string
	Counted    int
	Actor      string
}

// DeclareResult reports how a declaration was reconciled.
type DeclareResult struct {
	Previous int             `json:"previous"`
	Counted  int             `json:"counted"`
	Delta    int             `json:"delta"`
	Transfer *TransferResult `json:"transfer,omitempty"`
	Removed  *MovementResult `json:"removed,omitempty"`
}

// LastLocation is where an item was most recently placed.
type LastLocation struct {
	ItemID     int64     `json:"item_id"`
	LocationID string    `json:"location_id"`
	At         time.Time `json:"at"`
}

var (
	ErrInvalidQuantity        = fmt.Errorf("inventory: quantity must be positive: %w", shared.ErrValidation)
	ErrNegativeCount          = fmt.Errorf("inventory: counted quantity must not be negative: %w", shared.ErrValidation)
	ErrActorRequired          = fmt.Errorf("inventory: actor required: %w", shared.ErrValidation)
	ErrInvalidItem            = fmt.Errorf("inventory: invalid item id: %w", shared.ErrValidation)
	ErrSameLocation           = fmt.Errorf("inventory: source and target location must differ: %w", shared.ErrValidation)
	ErrInvalidPolicy          = fmt.Errorf("inventory: unknown shortage policy: %w", shared.ErrValidation)
	ErrInsufficientShelfStock = fmt.Errorf("inventory: not enough stock on shelf: %w", shared.ErrValidation)
	ErrConcurrentModification = fmt.Errorf("inventory: stock changed by a concurrent writer: %w", shared.ErrConflict)
	ErrDuplicateRequest       = fmt.Errorf("inventory: request already processed: %w", shared.ErrConflict)
	ErrNoShelfHistory         = fmt.Errorf("inventory: item never placed on a shelf: %w", shared.ErrNotFound)
)
