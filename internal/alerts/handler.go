package alerts

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/selling-area/internal/platform/httpx"
	"github.com/odyssey-erp/selling-area/internal/shared"
)

// Handler exposes the alert views.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the alerts handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers /alerts routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/low-stock", h.handleLowStock)
	r.Get("/low-shelf-rows", h.handleLowShelfRows)
	r.Get("/expiry/days", h.handleExpiryDays)
	r.Get("/expiry/fraction", h.handleExpiryFraction)
	r.Get("/dashboard", h.handleDashboard)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	presets := h.service.Presets()
	threshold, err := httpx.QueryInt(r, "threshold", presets.GlobalThreshold)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, err := httpx.QueryInt(r, "limit", 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.LowStock(r.Context(), LowStockFilter{GlobalThreshold: threshold, Limit: limit})
	if err != nil {
		h.fail(w, r, "low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"threshold": threshold, "items": rows})
}

func (h *Handler) handleLowShelfRows(w http.ResponseWriter, r *http.Request) {
	threshold, err := httpx.QueryInt(r, "threshold", h.service.Presets().LowShelfThreshold)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.LowShelfRows(r.Context(), threshold)
	if err != nil {
		h.fail(w, r, "low shelf rows", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"threshold": threshold, "rows": rows})
}

func (h *Handler) handleExpiryDays(w http.ResponseWriter, r *http.Request) {
	bands := h.service.Presets().Days
	var err error
	if bands.Red, err = httpx.QueryInt(r, "red", bands.Red); err == nil {
		if bands.Orange, err = httpx.QueryInt(r, "orange", bands.Orange); err == nil {
			bands.Green, err = httpx.QueryInt(r, "green", bands.Green)
		}
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	today, err := h.today(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.NearExpiryByDays(r.Context(), bands, today)
	if err != nil {
		h.fail(w, r, "near expiry by days", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bands": bands, "today": today.Format(time.DateOnly), "rows": rows})
}

func (h *Handler) handleExpiryFraction(w http.ResponseWriter, r *http.Request) {
	bands := h.service.Presets().Fraction
	var err error
	if bands.Red, err = httpx.QueryFloat(r, "red", bands.Red); err == nil {
		if bands.Orange, err = httpx.QueryFloat(r, "orange", bands.Orange); err == nil {
			bands.Green, err = httpx.QueryFloat(r, "green", bands.Green)
		}
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	today, err := h.today(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.NearExpiryByFraction(r.Context(), bands, today)
	if err != nil {
		h.fail(w, r, "near expiry by fraction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"bands":          bands,
		"today":          today.Format(time.DateOnly),
		"rows":           report.Rows,
		"not_applicable": report.NotApplicable,
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	today, err := h.today(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	dash, err := h.service.Dashboard(r.Context(), today)
	if err != nil {
		h.fail(w, r, "dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dash)
}

// today reads an optional ?today=YYYY-MM-DD override.
func (h *Handler) today(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("today")
	if raw == "" {
		return h.service.Today(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid today %q: %w", raw, shared.ErrValidation)
	}
	return t, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	level := slog.LevelError
	if errors.Is(err, shared.ErrValidation) {
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, op+" failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
