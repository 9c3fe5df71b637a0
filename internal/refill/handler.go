package refill

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/selling-area/internal/platform/httpx"
)

// Handler exposes refill endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the refill handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers /refill routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleRefill)
	r.Post("/bulk", h.handleBulk)
}

type lineRequest struct {
	ItemID     int64  `json:"item_id" validate:"gt=0"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
	LocationID string `json:"location_id" validate:"required"`
	RequestID  string `json:"request_id" validate:"omitempty,max=128"`
}

func (l lineRequest) toLine() Line {
	return Line{ItemID: l.ItemID, Quantity: l.Quantity, LocationID: l.LocationID, RequestID: l.RequestID}
}

type refillRequest struct {
	lineRequest
	Actor string `json:"actor" validate:"required"`
}

type bulkRequest struct {
	Actor string        `json:"actor" validate:"required"`
	Lines []lineRequest `json:"lines" validate:"required,min=1,max=500,dive"`
}

func (h *Handler) handleRefill(w http.ResponseWriter, r *http.Request) {
	var req refillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Refill(r.Context(), req.Actor, req.toLine())
	if err != nil {
		h.fail(r, "refill", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines := make([]Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, l.toLine())
	}
	results, err := h.service.Bulk(r.Context(), req.Actor, lines)
	if err != nil {
		h.fail(r, "bulk refill", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results, "failed": Failed(results)})
}

func (h *Handler) fail(r *http.Request, op string, err error) {
	level := slog.LevelError
	if IsClientError(err) {
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, op+" failed", slog.Any("error", err))
}
