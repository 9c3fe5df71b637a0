// Package refill restocks the shelf: outstanding shortages of an item are
// paid down first and the remainder is transferred from inventory.
package refill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/selling-area/internal/inventory"
	"github.com/odyssey-erp/selling-area/internal/shared"
	"github.com/odyssey-erp/selling-area/internal/shortage"
)

// ShortageResolver pays down open shortages. A non-empty requestID is
// claimed together with the payments.
type ShortageResolver interface {
	ResolveForRequest(ctx context.Context, requestID string, itemID int64, quantityAvailable int, actor string) (int, error)
}

// Transferer moves stock from inventory to the shelf.
type Transferer interface {
	ValidateTransfer(ctx context.Context, req inventory.TransferRequest) error
	PlanAllocation(ctx context.Context, itemID int64, quantity int) (inventory.Plan, error)
	ExecuteTransfer(ctx context.Context, req inventory.TransferRequest) (inventory.TransferResult, error)
}

// RequestReleaser drops a claimed request id so the line can be retried.
type RequestReleaser interface {
	Delete(ctx context.Context, key string) error
}

// Line is one refill instruction.
type Line struct {
	ItemID     int64
	Quantity   int
	LocationID string
	RequestID  string
}

// Result reports what a line did.
type Result struct {
	ItemID             int64                     `json:"item_id"`
	Requested          int                       `json:"requested"`
	AppliedToShortages int                       `json:"applied_to_shortages"`
	Transfer           *inventory.TransferResult `json:"transfer,omitempty"`
	Error              string                    `json:"error,omitempty"`
	Err                error                     `json:"-"`
}

var (
	// ErrNoLines is returned for an empty bulk request.
	ErrNoLines = fmt.Errorf("refill: at least one line required: %w", shared.ErrValidation)
	// ErrInsufficientSupply means inventory cannot cover the requested quantity.
	ErrInsufficientSupply = fmt.Errorf("refill: insufficient inventory: %w", shared.ErrValidation)
)

// Service runs refills.
type Service struct {
	shortages ShortageResolver
	transfers Transferer
	releaser  RequestReleaser
	logger    *slog.Logger
}

// NewService constructs the refill service. releaser may be nil.
func NewService(shortages ShortageResolver, transfers Transferer, releaser RequestReleaser, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{shortages: shortages, transfers: transfers, releaser: releaser, logger: logger}
}

// Refill validates the line, checks inventory can supply the full quantity,
// resolves shortages with it and transfers whatever is left. Shortages already
// paid down stay paid when the transfer afterwards fails; the returned Result
// reports both. A line's RequestID is claimed with the shortage payments, so
// a replay fails with shortage.ErrDuplicateRequest.
func (s *Service) Refill(ctx context.Context, actor string, line Line) (Result, error) {
	line.RequestID = strings.TrimSpace(line.RequestID)
	result := Result{ItemID: line.ItemID, Requested: line.Quantity}
	req := inventory.TransferRequest{
		ItemID:     line.ItemID,
		Quantity:   line.Quantity,
		LocationID: line.LocationID,
		Actor:      actor,
		RequestID:  line.RequestID,
	}
	if err := s.transfers.ValidateTransfer(ctx, req); err != nil {
		return result, err
	}
	plan, err := s.transfers.PlanAllocation(ctx, line.ItemID, line.Quantity)
	if err != nil {
		return result, err
	}
	if plan.Shortfall > 0 {
		return result, fmt.Errorf("%w: %d of %d available", ErrInsufficientSupply, line.Quantity-plan.Shortfall, line.Quantity)
	}

	remaining, err := s.shortages.ResolveForRequest(ctx, line.RequestID, line.ItemID, line.Quantity, actor)
	if err != nil {
		return result, fmt.Errorf("refill: resolve shortages: %w", err)
	}
	result.AppliedToShortages = line.Quantity - remaining
	if remaining == 0 {
		return result, nil
	}

	req.Quantity = remaining
	transfer, err := s.transfers.ExecuteTransfer(ctx, req)
	if err != nil {
		if result.AppliedToShortages > 0 {
			s.logger.WarnContext(ctx, "refill transfer failed after shortages were paid",
				slog.Int64("item_id", line.ItemID),
				slog.Int("applied", result.AppliedToShortages),
				slog.Any("error", err))
		} else {
			s.release(ctx, line.RequestID)
		}
		return result, err
	}
	result.Transfer = &transfer
	return result, nil
}

func (s *Service) release(ctx context.Context, requestID string) {
	if s.releaser == nil || requestID == "" {
		return
	}
	key := shortage.RequestKey(requestID)
	if err := s.releaser.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.WarnContext(ctx, "release refill request failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Bulk runs every line independently. A failed line does not stop the others.
func (s *Service) Bulk(ctx context.Context, actor string, lines []Line) ([]Result, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	if actor == "" {
		return nil, inventory.ErrActorRequired
	}
	results := make([]Result, 0, len(lines))
	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.Refill(ctx, actor, line)
		if err != nil {
			res.Err = err
			res.Error = err.Error()
			s.logger.WarnContext(ctx, "refill line failed", slog.Int("line", i+1), slog.Int64("item_id", line.ItemID), slog.Any("error", err))
		}
		results = append(results, res)
	}
	return results, nil
}

// Failed counts the lines that returned an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil || r.Error != "" {
			n++
		}
	}
	return n
}

// IsClientError reports whether err comes from the caller's input rather
// than the store.
func IsClientError(err error) bool {
	return errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrConflict)
}
