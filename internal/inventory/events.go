package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferPostedEvent is published after a transfer commits.
type TransferPostedEvent struct {
	TransferID uuid.UUID       `json:"transfer_id"`
	ItemID     int64           `json:"item_id"`
	LocationID string          `json:"location_id"`
	Requested  int             `json:"requested"`
	Moved      int             `json:"moved"`
	Shortfall  int             `json:"shortfall"`
	Cost       decimal.Decimal `json:"cost"`
	Actor      string          `json:"actor"`
	PostedAt   time.Time       `json:"posted_at"`
}

// EventPublisher receives committed transfers for downstream consumers.
type EventPublisher interface {
	PublishTransferPosted(ctx context.Context, evt TransferPostedEvent) error
}
