package shortage

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/selling-area/internal/catalog"
	"github.com/odyssey-erp/selling-area/internal/shared"
)

// RepositoryPort abstracts shortage persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, rec Record) (int64, error)
	ListOpen(ctx context.Context, itemID *int64) ([]Record, error)
}

// ItemCatalog resolves the items shortages are logged against.
type ItemCatalog interface {
	GetItem(ctx context.Context, id int64) (catalog.Item, error)
}

// Service logs and resolves shortages.
type Service struct {
	repo   RepositoryPort
	items  ItemCatalog
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the service.
func NewService(repo RepositoryPort, items ItemCatalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, items: items, logger: logger, now: time.Now}
}

// RequestKey is the idempotency key a refill request id is claimed under.
func RequestKey(requestID string) string {
	return "refill:" + requestID
}

// Log records demand that could not be served.
func (s *Service) Log(ctx context.Context, in LogInput) (Record, error) {
	if in.ItemID <= 0 {
		return Record{}, ErrInvalidItem
	}
	if in.Quantity <= 0 {
		return Record{}, ErrInvalidQuantity
	}
	actor := strings.TrimSpace(in.Actor)
	if actor == "" {
		return Record{}, ErrActorRequired
	}
	if err := s.checkItem(ctx, in.ItemID); err != nil {
		return Record{}, err
	}
	rec := Record{
		ItemID:     in.ItemID,
		Quantity:   in.Quantity,
		LocationID: in.LocationID,
		LoggedBy:   actor,
		LoggedAt:   s.now().UTC(),
	}
	id, err := s.repo.Insert(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	rec.ID = id
	return rec, nil
}

// Resolve pays down the item's open shortages oldest first using
// quantityAvailable and returns what is left for the shelf.
func (s *Service) Resolve(ctx context.Context, itemID int64, quantityAvailable int, actor string) (int, error) {
	return s.ResolveForRequest(ctx, "", itemID, quantityAvailable, actor)
}

// ResolveForRequest is Resolve guarded by a request id. The id is claimed in
// the same transaction as the payments, so a replay returns
// ErrDuplicateRequest and pays nothing. An empty id disables the guard.
func (s *Service) ResolveForRequest(ctx context.Context, requestID string, itemID int64, quantityAvailable int, actor string) (int, error) {
	if itemID <= 0 {
		return 0, ErrInvalidItem
	}
	if quantityAvailable < 0 {
		return 0, ErrNegativeSupply
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return 0, ErrActorRequired
	}
	if err := s.checkItem(ctx, itemID); err != nil {
		return 0, err
	}
	requestID = strings.TrimSpace(requestID)
	if quantityAvailable == 0 && requestID == "" {
		return 0, nil
	}

	var remaining int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if requestID != "" {
			if err := tx.ClaimRequest(ctx, RequestKey(requestID), s.now().UTC()); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					return ErrDuplicateRequest
				}
				return err
			}
		}
		open, err := tx.ListOpenForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		var payments []Payment
		payments, remaining = PayDown(open, quantityAvailable)
		at := s.now().UTC()
		for _, p := range payments {
			if err := tx.ApplyPayment(ctx, p, actor, at); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if paid := quantityAvailable - remaining; paid > 0 {
		s.logger.InfoContext(ctx, "shortages paid down",
			slog.Int64("item_id", itemID), slog.Int("paid", paid), slog.Int("remaining", remaining))
	}
	return remaining, nil
}

func (s *Service) checkItem(ctx context.Context, itemID int64) error {
	if s.items == nil {
		return nil
	}
	_, err := s.items.GetItem(ctx, itemID)
	return err
}

// ListOpen returns unresolved shortages, oldest first.
func (s *Service) ListOpen(ctx context.Context, itemID *int64) ([]Record, error) {
	return s.repo.ListOpen(ctx, itemID)
}
