package shortage

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/selling-area/internal/platform/httpx"
)

// Handler exposes shortage endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers shortage routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleLog)
	r.Post("/resolve", h.handleResolve)
}

type logRequest struct {
	ItemID     int64  `json:"item_id" validate:"gt=0"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
	LocationID string `json:"location_id"`
	Actor      string `json:"actor" validate:"required"`
}

type resolveRequest struct {
	ItemID    int64  `json:"item_id" validate:"gt=0"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
	Actor     string `json:"actor" validate:"required"`
	RequestID string `json:"request_id" validate:"omitempty,max=128"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var itemID *int64
	if raw := r.URL.Query().Get("item_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.RespondError(w, ErrInvalidItem)
			return
		}
		itemID = &id
	}
	records, err := h.service.ListOpen(r.Context(), itemID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list shortages failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"shortages": records})
}

func (h *Handler) handleLog(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Log(r.Context(), LogInput{ItemID: req.ItemID, Quantity: req.Quantity, LocationID: req.LocationID, Actor: req.Actor})
	if err != nil {
		h.logger.WarnContext(r.Context(), "log shortage failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	remaining, err := h.service.ResolveForRequest(r.Context(), req.RequestID, req.ItemID, req.Quantity, req.Actor)
	if err != nil {
		h.logger.WarnContext(r.Context(), "resolve shortages failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"remaining": remaining, "applied": req.Quantity - remaining})
}
