package inventory

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/selling-area/internal/platform/httpx"
	"github.com/odyssey-erp/selling-area/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items/{id}/batches", h.handleBatches)
	r.Get("/items/{id}/plan", h.handlePlan)
	r.Get("/items/{id}/last-location", h.handleLastLocation)
	r.Post("/transfers", h.handleTransfer)
	r.Post("/moves", h.handleMove)
	r.Post("/returns", h.handleReturn)
	r.Post("/declarations", h.handleDeclare)
}

type transferRequest struct {
	ItemID         int64  `json:"item_id" validate:"gt=0"`
	Quantity       int    `json:"quantity" validate:"gt=0"`
	LocationID     string `json:"location_id" validate:"required"`
	Actor          string `json:"actor" validate:"required"`
	RequestID      string `json:"request_id" validate:"omitempty,max=128"`
	ShortagePolicy string `json:"shortage_policy" validate:"omitempty,oneof=record ignore"`
}

type moveRequest struct {
	ItemID       int64  `json:"item_id" validate:"gt=0"`
	FromLocation string `json:"from_location" validate:"required"`
	ToLocation   string `json:"to_location" validate:"required,nefield=FromLocation"`
	Quantity     int    `json:"quantity" validate:"gt=0"`
	Actor        string `json:"actor" validate:"required"`
}

type returnRequest struct {
	ItemID     int64  `json:"item_id" validate:"gt=0"`
	LocationID string `json:"location_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
	Actor      string `json:"actor" validate:"required"`
}

type declareRequest struct {
	ItemID     int64  `json:"item_id" validate:"gt=0"`
	LocationID string `json:"location_id" validate:"required"`
	Counted    int    `json:"counted" validate:"gte=0"`
	Actor      string `json:"actor" validate:"required"`
}

func (h *Handler) handleBatches(w http.ResponseWriter, r *http.Request) {
	itemID, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batches, err := h.service.ListBatches(r.Context(), itemID)
	if err != nil {
		h.fail(w, r, "list batches", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"item_id": itemID, "batches": batches})
}

func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	itemID, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	qty, err := httpx.QueryInt(r, "qty", 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	plan, err := h.service.PlanAllocation(r.Context(), itemID, qty)
	if err != nil {
		h.fail(w, r, "plan allocation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) handleLastLocation(w http.ResponseWriter, r *http.Request) {
	itemID, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	loc, err := h.service.LastLocation(r.Context(), itemID)
	if err != nil {
		h.fail(w, r, "last location", err)
		return
	}
	httpx.JSON(w, http.StatusOK, loc)
}

// HandleLocationStock serves the shelf layers at {id}.
func (h *Handler) HandleLocationStock(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "id")
	stock, err := h.service.LocationStock(r.Context(), locationID)
	if err != nil {
		h.fail(w, r, "location stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"location_id": locationID, "stock": stock})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.ExecuteTransfer(r.Context(), TransferRequest{
		ItemID:         req.ItemID,
		Quantity:       req.Quantity,
		LocationID:     req.LocationID,
		Actor:          req.Actor,
		RequestID:      req.RequestID,
		ShortagePolicy: ShortagePolicy(req.ShortagePolicy),
	})
	if err != nil {
		h.fail(w, r, "execute transfer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.MoveShelfStock(r.Context(), MoveRequest{
		ItemID:       req.ItemID,
		FromLocation: req.FromLocation,
		ToLocation:   req.ToLocation,
		Quantity:     req.Quantity,
		Actor:        req.Actor,
	})
	if err != nil {
		h.fail(w, r, "move shelf stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.ReturnToInventory(r.Context(), ReturnRequest{
		ItemID:     req.ItemID,
		LocationID: req.LocationID,
		Quantity:   req.Quantity,
		Actor:      req.Actor,
	})
	if err != nil {
		h.fail(w, r, "return to inventory", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleDeclare(w http.ResponseWriter, r *http.Request) {
	var req declareRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.DeclareShelfQuantity(r.Context(), DeclareRequest{
		ItemID:     req.ItemID,
		LocationID: req.LocationID,
		Counted:    req.Counted,
		Actor:      req.Actor,
	})
	if err != nil {
		h.fail(w, r, "declare shelf quantity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := httpx.Validate(h.validator, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	level := slog.LevelError
	if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrConflict) {
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, op+" failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
