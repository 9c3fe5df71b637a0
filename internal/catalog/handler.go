package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/selling-area/internal/platform/httpx"
)

// Handler wires HTTP endpoints for items and locations.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountItemRoutes registers /items routes.
func (h *Handler) MountItemRoutes(r chi.Router) {
	r.Get("/barcode/{barcode}", h.handleItemByBarcode)
	r.Get("/{id}", h.handleItem)
	r.Put("/{id}/shelf-settings", h.handleShelfSettings)
}

// MountLocationRoutes registers /locations routes.
func (h *Handler) MountLocationRoutes(r chi.Router) {
	r.Get("/", h.handleLocations)
}

type shelfSettingsRequest struct {
	Threshold *int `json:"shelf_threshold" validate:"omitempty,gte=0"`
	Average   *int `json:"shelf_average" validate:"omitempty,gte=0"`
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleItemByBarcode(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItemByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		h.fail(w, r, "get item by barcode", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleShelfSettings(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req shelfSettingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.UpdateShelfSettings(r.Context(), id, ShelfSettings{Threshold: req.Threshold, Average: req.Average})
	if err != nil {
		h.fail(w, r, "update shelf settings", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.ListLocations(r.Context())
	if err != nil {
		h.fail(w, r, "list locations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"locations": locations})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.WarnContext(r.Context(), op+" failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
