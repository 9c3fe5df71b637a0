package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/selling-area/internal/catalog"
	"github.com/odyssey-erp/selling-area/internal/platform/db"
	"github.com/odyssey-erp/selling-area/internal/shared"
	"github.com/odyssey-erp/selling-area/internal/shortage"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListBatches(ctx context.Context, itemID int64) ([]Batch, error)
	ListLocationStock(ctx context.Context, locationID string) ([]ShelfStock, error)
	LastLocation(ctx context.Context, itemID int64) (LastLocation, error)
}

// CatalogPort resolves items and locations referenced by requests.
type CatalogPort interface {
	GetItem(ctx context.Context, id int64) (catalog.Item, error)
	GetLocation(ctx context.Context, id string) (catalog.Location, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator drops cached aggregates after stock changes.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// MetricsRecorder counts transfer outcomes.
type MetricsRecorder interface {
	ObserveTransfer(outcome string, moved, shortfall int)
}

// Dependencies groups the collaborators of Service. Only Repo and Catalog are required.
type Dependencies struct {
	Repo    RepositoryPort
	Catalog CatalogPort
	Audit   AuditPort
	Events  EventPublisher
	Cache   CacheInvalidator
	Metrics MetricsRecorder
	Logger  *slog.Logger
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// DefaultShortagePolicy applies when a request does not name one.
	DefaultShortagePolicy ShortagePolicy
	// ConflictRetries re-runs a transfer that lost a race this many times.
	ConflictRetries int
}

// Service coordinates allocation and stock movements between the batch and
// shelf ledgers.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	audit   AuditPort
	events  EventPublisher
	cache   CacheInvalidator
	metrics MetricsRecorder
	logger  *slog.Logger
	cfg     ServiceConfig
	now     func() time.Time
}

// NewService builds Service.
func NewService(deps Dependencies, cfg ServiceConfig) *Service {
	if cfg.DefaultShortagePolicy == "" {
		cfg.DefaultShortagePolicy = ShortageRecord
	}
	if cfg.ConflictRetries < 0 {
		cfg.ConflictRetries = 0
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    deps.Repo,
		catalog: deps.Catalog,
		audit:   deps.Audit,
		events:  deps.Events,
		cache:   deps.Cache,
		metrics: deps.Metrics,
		logger:  logger.With(slog.String("component", "inventory")),
		cfg:     cfg,
		now:     time.Now,
	}
}

// PlanAllocation previews which batches a transfer of quantity would consume.
func (s *Service) PlanAllocation(ctx context.Context, itemID int64, quantity int) (Plan, error) {
	if quantity <= 0 {
		return Plan{}, ErrInvalidQuantity
	}
	if err := s.checkItem(ctx, itemID); err != nil {
		return Plan{}, err
	}
	batches, err := s.repo.ListBatches(ctx, itemID)
	if err != nil {
		return Plan{}, err
	}
	plan := Allocate(batches, quantity)
	plan.ItemID = itemID
	return plan, nil
}

// ListBatches returns the item's available batches in allocation order.
func (s *Service) ListBatches(ctx context.Context, itemID int64) ([]Batch, error) {
	if err := s.checkItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListBatches(ctx, itemID)
}

// LocationStock lists the shelf layers held at a location.
func (s *Service) LocationStock(ctx context.Context, locationID string) ([]ShelfStock, error) {
	if _, err := s.catalog.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}
	return s.repo.ListLocationStock(ctx, locationID)
}

// LastLocation reports where the item was most recently shelved.
func (s *Service) LastLocation(ctx context.Context, itemID int64) (LastLocation, error) {
	if err := s.checkItem(ctx, itemID); err != nil {
		return LastLocation{}, err
	}
	return s.repo.LastLocation(ctx, itemID)
}

// ValidateTransfer checks a request without touching stock.
func (s *Service) ValidateTransfer(ctx context.Context, req TransferRequest) error {
	_, err := s.validateTransfer(ctx, req)
	return err
}

// ExecuteTransfer moves up to req.Quantity units from inventory batches to the
// shelf location, consuming batches by earliest expiry then lowest cost. Any
// unmet quantity is reported as Shortfall and recorded according to the
// shortage policy. All ledger writes happen in one transaction.
func (s *Service) ExecuteTransfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	policy, err := s.validateTransfer(ctx, req)
	if err != nil {
		s.observe("rejected", 0, 0)
		return TransferResult{}, err
	}
	req.Actor = strings.TrimSpace(req.Actor)
	req.RequestID = strings.TrimSpace(req.RequestID)

	var result TransferResult
	for attempt := 0; ; attempt++ {
		result, err = s.transferOnce(ctx, req, policy)
		if !errors.Is(err, ErrConcurrentModification) || attempt >= s.cfg.ConflictRetries {
			break
		}
		s.logger.WarnContext(ctx, "transfer lost a race, retrying",
			slog.Int64("item_id", req.ItemID), slog.Int("attempt", attempt+1))
	}
	if err != nil {
		s.observe(failureOutcome(err), 0, 0)
		return TransferResult{}, err
	}

	s.afterTransfer(ctx, req, result)
	return result, nil
}

func (s *Service) transferOnce(ctx context.Context, req TransferRequest, policy ShortagePolicy) (TransferResult, error) {
	result := TransferResult{TransferID: uuid.New()}
	now := s.now().UTC()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if req.RequestID != "" {
			if err := tx.ClaimRequest(ctx, RequestKey(req.RequestID), now); err != nil {
				return err
			}
		}
		plan, shortageID, err := s.applyTransfer(ctx, tx, transferParams{
			TransferID: result.TransferID,
			ItemID:     req.ItemID,
			Quantity:   req.Quantity,
			LocationID: req.LocationID,
			Actor:      req.Actor,
			Policy:     policy,
			At:         now,
		})
		if err != nil {
			return err
		}
		result.Plan = plan
		result.ShortageID = shortageID
		return nil
	})
	if err != nil {
		return TransferResult{}, translateTxError(err)
	}
	result.Moved = result.Plan.Allocated()
	result.Shortfall = result.Plan.Shortfall
	return result, nil
}

type transferParams struct {
	TransferID uuid.UUID
	ItemID     int64
	Quantity   int
	LocationID string
	Actor      string
	Policy     ShortagePolicy
	At         time.Time
}

// applyTransfer re-reads batches inside tx, allocates and writes every plan
// line to both ledgers plus the shelf audit trail.
func (s *Service) applyTransfer(ctx context.Context, tx TxRepository, p transferParams) (Plan, int64, error) {
	batches, err := tx.ListBatches(ctx, p.ItemID)
	if err != nil {
		return Plan{}, 0, err
	}
	plan := Allocate(batches, p.Quantity)
	plan.ItemID = p.ItemID

	for _, line := range plan.Lines {
		if err := tx.DecrementBatch(ctx, line.Batch.ID, line.Quantity); err != nil {
			return Plan{}, 0, err
		}
		key := ShelfKey{
			ItemID:         p.ItemID,
			ExpirationDate: line.Batch.ExpirationDate,
			UnitCost:       line.Batch.UnitCost,
			LocationID:     p.LocationID,
		}
		if err := tx.UpsertShelf(ctx, key, line.Quantity, p.At); err != nil {
			return Plan{}, 0, err
		}
		if err := tx.InsertEntry(ctx, ShelfEntry{
			TransferID:     p.TransferID,
			ItemID:         p.ItemID,
			ExpirationDate: line.Batch.ExpirationDate,
			UnitCost:       line.Batch.UnitCost,
			Quantity:       line.Quantity,
			TxType:         EntryTransferIn,
			CreatedBy:      p.Actor,
			LocationID:     p.LocationID,
			CreatedAt:      p.At,
		}); err != nil {
			return Plan{}, 0, err
		}
	}

	var shortageID int64
	if plan.Shortfall > 0 && p.Policy == ShortageRecord {
		shortageID, err = tx.RecordShortage(ctx, shortage.Record{
			ItemID:     p.ItemID,
			Quantity:   plan.Shortfall,
			LocationID: p.LocationID,
			LoggedBy:   p.Actor,
			LoggedAt:   p.At,
		})
		if err != nil {
			return Plan{}, 0, err
		}
	}
	return plan, shortageID, nil
}

// MoveShelfStock relocates quantity units of an item between two shelves,
// taking the source layers earliest expiry first. The move is all or nothing.
func (s *Service) MoveShelfStock(ctx context.Context, req MoveRequest) (MovementResult, error) {
	if err := s.validateShelfOp(ctx, req.ItemID, req.Quantity, req.Actor, req.FromLocation); err != nil {
		return MovementResult{}, err
	}
	if req.FromLocation == req.ToLocation {
		return MovementResult{}, ErrSameLocation
	}
	if _, err := s.catalog.GetLocation(ctx, req.ToLocation); err != nil {
		return MovementResult{}, err
	}
	actor := strings.TrimSpace(req.Actor)

	result := MovementResult{TransferID: uuid.New()}
	now := s.now().UTC()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		layers, err := tx.ListShelfLayers(ctx, req.ItemID, req.FromLocation)
		if err != nil {
			return err
		}
		moved, err := consumeLayers(ctx, tx, layers, req.Quantity)
		if err != nil {
			return err
		}
		for _, m := range moved {
			key := ShelfKey{ItemID: req.ItemID, ExpirationDate: m.ExpirationDate, UnitCost: m.UnitCost, LocationID: req.ToLocation}
			if err := tx.UpsertShelf(ctx, key, m.Quantity, now); err != nil {
				return err
			}
			out := ShelfEntry{
				TransferID:     result.TransferID,
				ItemID:         req.ItemID,
				ExpirationDate: m.ExpirationDate,
				UnitCost:       m.UnitCost,
				Quantity:       -m.Quantity,
				TxType:         EntryMoveOut,
				CreatedBy:      actor,
				LocationID:     req.FromLocation,
				CreatedAt:      now,
			}
			in := out
			in.Quantity = m.Quantity
			in.TxType = EntryMoveIn
			in.LocationID = req.ToLocation
			if err := tx.InsertEntry(ctx, out); err != nil {
				return err
			}
			if err := tx.InsertEntry(ctx, in); err != nil {
				return err
			}
		}
		result.Layers = moved
		return nil
	})
	if err != nil {
		return MovementResult{}, translateTxError(err)
	}
	result.Moved = req.Quantity
	s.afterShelfChange(ctx, actor, "inventory:MOVE", result.TransferID, map[string]any{
		"item_id": req.ItemID, "from": req.FromLocation, "to": req.ToLocation, "qty": req.Quantity,
	})
	return result, nil
}

// ReturnToInventory takes shelf stock back into storage as batches at
// ReturnStorageLocation, keeping each layer's expiry and cost.
func (s *Service) ReturnToInventory(ctx context.Context, req ReturnRequest) (MovementResult, error) {
	if err := s.validateShelfOp(ctx, req.ItemID, req.Quantity, req.Actor, req.LocationID); err != nil {
		return MovementResult{}, err
	}
	actor := strings.TrimSpace(req.Actor)

	result := MovementResult{TransferID: uuid.New()}
	now := s.now().UTC()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		layers, err := tx.ListShelfLayers(ctx, req.ItemID, req.LocationID)
		if err != nil {
			return err
		}
		moved, err := consumeLayers(ctx, tx, layers, req.Quantity)
		if err != nil {
			return err
		}
		for _, m := range moved {
			key := BatchKey{ItemID: req.ItemID, ExpirationDate: m.ExpirationDate, UnitCost: m.UnitCost, StorageLocation: ReturnStorageLocation}
			if err := tx.RestockBatch(ctx, key, m.Quantity, now); err != nil {
				return err
			}
			if err := tx.InsertEntry(ctx, ShelfEntry{
				TransferID:     result.TransferID,
				ItemID:         req.ItemID,
				ExpirationDate: m.ExpirationDate,
				UnitCost:       m.UnitCost,
				Quantity:       -m.Quantity,
				TxType:         EntryReturn,
				CreatedBy:      actor,
				LocationID:     req.LocationID,
				CreatedAt:      now,
			}); err != nil {
				return err
			}
		}
		result.Layers = moved
		return nil
	})
	if err != nil {
		return MovementResult{}, translateTxError(err)
	}
	result.Moved = req.Quantity
	s.afterShelfChange(ctx, actor, "inventory:RETURN", result.TransferID, map[string]any{
		"item_id": req.ItemID, "location": req.LocationID, "qty": req.Quantity,
	})
	return result, nil
}

// DeclareShelfQuantity reconciles the shelf with a physical count. A higher
// count pulls the difference from inventory like a transfer; a lower count
// removes layers earliest expiry first.
func (s *Service) DeclareShelfQuantity(ctx context.Context, req DeclareRequest) (DeclareResult, error) {
	if req.Counted < 0 {
		return DeclareResult{}, ErrNegativeCount
	}
	if strings.TrimSpace(req.Actor) == "" {
		return DeclareResult{}, ErrActorRequired
	}
	if err := s.checkItem(ctx, req.ItemID); err != nil {
		return DeclareResult{}, err
	}
	if _, err := s.catalog.GetLocation(ctx, req.LocationID); err != nil {
		return DeclareResult{}, err
	}
	actor := strings.TrimSpace(req.Actor)
	transferID := uuid.New()
	now := s.now().UTC()

	var result DeclareResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		result = DeclareResult{Counted: req.Counted}
		layers, err := tx.ListShelfLayers(ctx, req.ItemID, req.LocationID)
		if err != nil {
			return err
		}
		for _, l := range layers {
			result.Previous += l.Quantity
		}
		result.Delta = req.Counted - result.Previous

		switch {
		case result.Delta > 0:
			plan, shortageID, err := s.applyTransfer(ctx, tx, transferParams{
				TransferID: transferID,
				ItemID:     req.ItemID,
				Quantity:   result.Delta,
				LocationID: req.LocationID,
				Actor:      actor,
				Policy:     s.cfg.DefaultShortagePolicy,
				At:         now,
			})
			if err != nil {
				return err
			}
			result.Transfer = &TransferResult{
				TransferID: transferID,
				Plan:       plan,
				Moved:      plan.Allocated(),
				Shortfall:  plan.Shortfall,
				ShortageID: shortageID,
			}
		case result.Delta < 0:
			removed, err := consumeLayers(ctx, tx, layers, -result.Delta)
			if err != nil {
				return err
			}
			for _, m := range removed {
				if err := tx.InsertEntry(ctx, ShelfEntry{
					TransferID:     transferID,
					ItemID:         req.ItemID,
					ExpirationDate: m.ExpirationDate,
					UnitCost:       m.UnitCost,
					Quantity:       -m.Quantity,
					TxType:         EntryAdjust,
					CreatedBy:      actor,
					LocationID:     req.LocationID,
					CreatedAt:      now,
				}); err != nil {
					return err
				}
			}
			result.Removed = &MovementResult{TransferID: transferID, Moved: -result.Delta, Layers: removed}
		}
		return nil
	})
	if err != nil {
		return DeclareResult{}, translateTxError(err)
	}

	switch {
	case result.Transfer != nil:
		s.afterTransfer(ctx, TransferRequest{
			ItemID:     req.ItemID,
			Quantity:   result.Delta,
			LocationID: req.LocationID,
			Actor:      actor,
		}, *result.Transfer)
	case result.Removed != nil:
		s.afterShelfChange(ctx, actor, "inventory:ADJUST", transferID, map[string]any{
			"item_id": req.ItemID, "location": req.LocationID, "previous": result.Previous, "counted": req.Counted,
		})
	}
	return result, nil
}

// consumeLayers decrements shelf layers earliest expiry first until quantity
// is covered. It fails without writing when the layers cannot cover it.
func consumeLayers(ctx context.Context, tx TxRepository, layers []ShelfStock, quantity int) ([]LayerMovement, error) {
	picked, takes, ok := takeLayers(layers, quantity)
	if !ok {
		return nil, ErrInsufficientShelfStock
	}
	moved := make([]LayerMovement, 0, len(picked))
	for i, layer := range picked {
		if err := tx.DecrementShelf(ctx, layer.ID, takes[i]); err != nil {
			return nil, err
		}
		moved = append(moved, LayerMovement{ExpirationDate: layer.ExpirationDate, UnitCost: layer.UnitCost, Quantity: takes[i]})
	}
	return moved, nil
}

func (s *Service) validateTransfer(ctx context.Context, req TransferRequest) (ShortagePolicy, error) {
	if req.Quantity <= 0 {
		return "", ErrInvalidQuantity
	}
	if strings.TrimSpace(req.Actor) == "" {
		return "", ErrActorRequired
	}
	policy := req.ShortagePolicy
	if policy == "" {
		policy = s.cfg.DefaultShortagePolicy
	}
	if policy != ShortageRecord && policy != ShortageIgnore {
		return "", ErrInvalidPolicy
	}
	if err := s.checkItem(ctx, req.ItemID); err != nil {
		return "", err
	}
	if _, err := s.catalog.GetLocation(ctx, req.LocationID); err != nil {
		return "", err
	}
	return policy, nil
}

func (s *Service) validateShelfOp(ctx context.Context, itemID int64, quantity int, actor, locationID string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if strings.TrimSpace(actor) == "" {
		return ErrActorRequired
	}
	if err := s.checkItem(ctx, itemID); err != nil {
		return err
	}
	_, err := s.catalog.GetLocation(ctx, locationID)
	return err
}

func (s *Service) checkItem(ctx context.Context, itemID int64) error {
	if itemID <= 0 {
		return ErrInvalidItem
	}
	_, err := s.catalog.GetItem(ctx, itemID)
	return err
}

// RequestKey is the idempotency key a transfer request id is claimed under.
func RequestKey(requestID string) string {
	return "transfer:" + requestID
}

func (s *Service) afterTransfer(ctx context.Context, req TransferRequest, result TransferResult) {
	outcome := "applied"
	switch {
	case result.Moved == 0:
		outcome = "empty"
	case result.Shortfall > 0:
		outcome = "partial"
	}
	s.observe(outcome, result.Moved, result.Shortfall)
	s.logger.InfoContext(ctx, "transfer applied",
		slog.String("transfer_id", result.TransferID.String()),
		slog.Int64("item_id", req.ItemID),
		slog.String("location", req.LocationID),
		slog.Int("moved", result.Moved),
		slog.Int("shortfall", result.Shortfall))

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			Actor:    req.Actor,
			Action:   "inventory:TRANSFER",
			Entity:   shared.AuditEntityShelfTransfer,
			EntityID: result.TransferID.String(),
			Meta: map[string]any{
				"item_id":     req.ItemID,
				"location":    req.LocationID,
				"requested":   req.Quantity,
				"moved":       result.Moved,
				"shortfall":   result.Shortfall,
				"shortage_id": result.ShortageID,
			},
		}); err != nil {
			s.logger.WarnContext(ctx, "audit transfer failed", slog.Any("error", err))
		}
	}
	if s.events != nil && result.Moved > 0 {
		evt := TransferPostedEvent{
			TransferID: result.TransferID,
			ItemID:     req.ItemID,
			LocationID: req.LocationID,
			Requested:  result.Plan.Requested,
			Moved:      result.Moved,
			Shortfall:  result.Shortfall,
			Cost:       result.Plan.Cost(),
			Actor:      req.Actor,
			PostedAt:   s.now().UTC(),
		}
		if err := s.events.PublishTransferPosted(ctx, evt); err != nil {
			s.logger.WarnContext(ctx, "publish transfer event failed", slog.Any("error", err))
		}
	}
	s.invalidate(ctx)
}

func (s *Service) afterShelfChange(ctx context.Context, actor, action string, id uuid.UUID, meta map[string]any) {
	s.logger.InfoContext(ctx, "shelf stock changed", slog.String("action", action), slog.String("transfer_id", id.String()))
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   action,
			Entity:   shared.AuditEntityShelfTransfer,
			EntityID: id.String(),
			Meta:     meta,
		}); err != nil {
			s.logger.WarnContext(ctx, "audit shelf change failed", slog.Any("error", err))
		}
	}
	s.invalidate(ctx)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.WarnContext(ctx, "alerts cache bump failed", slog.Any("error", err))
	}
}

func (s *Service) observe(outcome string, moved, shortfall int) {
	if s.metrics != nil {
		s.metrics.ObserveTransfer(outcome, moved, shortfall)
	}
}

// translateTxError folds database race signals into ErrConcurrentModification.
func translateTxError(err error) error {
	switch {
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return ErrDuplicateRequest
	case errors.Is(err, ErrConcurrentModification),
		errors.Is(err, ErrInsufficientShelfStock),
		errors.Is(err, db.ErrStoreUnavailable):
		return err
	case db.IsSerializationFailure(err), db.IsCheckViolation(err):
		return fmt.Errorf("%w (%v)", ErrConcurrentModification, err)
	default:
		return fmt.Errorf("inventory: apply: %w", err)
	}
}

func failureOutcome(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate"
	case errors.Is(err, ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, db.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
