package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/selling-area/internal/alerts"
	"github.com/odyssey-erp/selling-area/internal/catalog"
	"github.com/odyssey-erp/selling-area/internal/inventory"
	"github.com/odyssey-erp/selling-area/internal/observability"
	"github.com/odyssey-erp/selling-area/internal/platform/httpx"
	"github.com/odyssey-erp/selling-area/internal/refill"
	"github.com/odyssey-erp/selling-area/internal/shortage"
	"github.com/odyssey-erp/selling-area/jobs"
)

// RouterParams groups dependencies for building the HTTP router. Nil
// handlers are skipped.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Metrics          *observability.Metrics
	Ping             func(context.Context) error
	CatalogHandler   *catalog.Handler
	InventoryHandler *inventory.Handler
	ShortageHandler  *shortage.Handler
	AlertsHandler    *alerts.Handler
	RefillHandler    *refill.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	if params.Logger == nil {
		params.Logger = slog.Default()
	}

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" not allowed on "+r.URL.Path)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ping != nil {
			if err := params.Ping(r.Context()); err != nil {
				params.Logger.Warn("health check failed", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.CatalogHandler != nil {
		r.Route("/items", params.CatalogHandler.MountItemRoutes)
		r.Route("/locations", func(r chi.Router) {
			params.CatalogHandler.MountLocationRoutes(r)
			if params.InventoryHandler != nil {
				r.Get("/{id}/stock", params.InventoryHandler.HandleLocationStock)
			}
		})
	}
	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.RefillHandler != nil {
		r.Route("/refill", params.RefillHandler.MountRoutes)
	}
	if params.AlertsHandler != nil {
		r.Route("/alerts", params.AlertsHandler.MountRoutes)
	}
	if params.ShortageHandler != nil {
		r.Route("/shortages", params.ShortageHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
