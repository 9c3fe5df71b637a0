// Package shortage tracks demand that could not be served from stock and
// pays it down oldest-first when supply arrives.
package shortage

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/selling-area/internal/shared"
)

// Record is an outstanding or settled shortage. Quantity is what is still owed.
type Record struct {
	ID          int64      `json:"id"`
	ItemID      int64      `json:"item_id"`
	Quantity    int        `json:"quantity"`
	Resolved    bool       `json:"resolved"`
	ResolvedQty int        `json:"resolved_qty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy  string     `json:"resolved_by,omitempty"`
	LoggedAt    time.Time  `json:"logged_at"`
	LoggedBy    string     `json:"logged_by"`
	LocationID  string     `json:"location_id,omitempty"`
}

// LogInput creates a shortage record.
type LogInput struct {
	ItemID     int64
	Quantity   int
	LocationID string
	Actor      string
}

// Payment is one step of paying down outstanding shortages.
type Payment struct {
	RecordID int64
	Take     int
	Settles  bool
}

var (
	ErrInvalidQuantity = fmt.Errorf("shortage: quantity must be positive: %w", shared.ErrValidation)
	ErrNegativeSupply  = fmt.Errorf("shortage: available quantity must not be negative: %w", shared.ErrValidation)
	ErrActorRequired   = fmt.Errorf("shortage: actor required: %w", shared.ErrValidation)
	ErrInvalidItem     = fmt.Errorf("shortage: invalid item id: %w", shared.ErrValidation)
	// ErrDuplicateRequest means a refill request id already paid down shortages.
	ErrDuplicateRequest = fmt.Errorf("shortage: request already processed: %w", shared.ErrConflict)
)

// PayDown walks open records oldest first and returns the payments to apply
// together with the supply left over.
func PayDown(open []Record, available int) ([]Payment, int) {
	remaining := available
	var payments []Payment
	for _, rec := range open {
		if remaining <= 0 {
			break
		}
		if rec.Resolved || rec.Quantity <= 0 {
			continue
		}
		take := min(remaining, rec.Quantity)
		payments = append(payments, Payment{RecordID: rec.ID, Take: take, Settles: take == rec.Quantity})
		remaining -= take
	}
	return payments, remaining
}
