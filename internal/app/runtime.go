package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/selling-area/internal/alerts"
	"github.com/odyssey-erp/selling-area/internal/catalog"
	"github.com/odyssey-erp/selling-area/internal/inventory"
	jobmetrics "github.com/odyssey-erp/selling-area/internal/jobs"
	"github.com/odyssey-erp/selling-area/internal/messaging"
	"github.com/odyssey-erp/selling-area/internal/observability"
	"github.com/odyssey-erp/selling-area/internal/platform/cache"
	"github.com/odyssey-erp/selling-area/internal/platform/db"
	"github.com/odyssey-erp/selling-area/internal/refill"
	"github.com/odyssey-erp/selling-area/internal/shared"
	"github.com/odyssey-erp/selling-area/internal/shortage"
)

const testModeEnv = "ODYSSEY_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// detectTestMode reads the ODYSSEY_TEST_MODE flag once.
func detectTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode updates the cached flag after environment changes.
func RefreshTestMode() {
	detectTestMode()
}

// Runtime holds the connections and services shared by the API and the worker.
type Runtime struct {
	Config      *Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	Store       *db.Store
	Redis       *redis.Client
	Metrics     *observability.Metrics
	JobMetrics  *jobmetrics.Metrics
	Presets     alerts.Presets
	AlertsCache *alerts.Cache
	Idempotency *shared.IdempotencyStore

	Catalog   *catalog.Service
	Inventory *inventory.Service
	Shortages *shortage.Service
	Alerts    *alerts.Service
	Refill    *refill.Service

	publisher *messaging.Publisher
}

// NewRuntime connects to PostgreSQL, Redis and optionally Kafka and wires
// every service. Redis is optional: without it dashboards are computed on
// each request.
func NewRuntime(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	presets, err := alerts.LoadPresets(cfg.AlertBandsFile)
	if err != nil {
		return nil, err
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := db.NewStore(pool, db.StoreConfig{
		Timeout: cfg.StoreTimeout,
		Retries: cfg.StoreRetries,
		Backoff: cfg.StoreBackoff,
	}, logger.With(slog.String("component", "store")))

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, dashboard cache disabled", slog.Any("error", err))
		redisClient = nil
	}

	metrics := observability.NewMetrics()
	rt := &Runtime{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		Store:       store,
		Redis:       redisClient,
		Metrics:     metrics,
		JobMetrics:  jobmetrics.NewMetrics(metrics.Registerer()),
		Presets:     presets,
		AlertsCache: alerts.NewCache(redisClient, cfg.CacheTTL, logger.With(slog.String("component", "alerts-cache"))),
		Idempotency: shared.NewIdempotencyStore(store),
	}

	rt.Catalog = catalog.NewService(catalog.NewRepository(store))
	rt.Shortages = shortage.NewService(shortage.NewRepository(store), rt.Catalog, logger.With(slog.String("component", "shortage")))

	deps := inventory.Dependencies{
		Repo:    inventory.NewRepository(store),
		Catalog: rt.Catalog,
		Audit:   shared.NewAuditLogger(store),
		Cache:   rt.AlertsCache,
		Metrics: metrics,
		Logger:  logger,
	}
	if cfg.KafkaEnabled() {
		rt.publisher = messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		deps.Events = rt.publisher
	}
	rt.Inventory = inventory.NewService(deps, inventory.ServiceConfig{
		DefaultShortagePolicy: inventory.ShortagePolicy(cfg.ShortagePolicy),
		ConflictRetries:       cfg.TransferConflictRetries,
	})

	rt.Alerts = alerts.NewService(alerts.NewRepository(store), rt.AlertsCache, presets, logger.With(slog.String("component", "alerts")))
	rt.Refill = refill.NewService(rt.Shortages, rt.Inventory, rt.Idempotency, logger.With(slog.String("component", "refill")))
	return rt, nil
}

// Close releases every connection held by the runtime.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.publisher != nil {
		if err := r.publisher.Close(); err != nil {
			r.Logger.Warn("kafka close", slog.Any("error", err))
		}
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			r.Logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if r.Pool != nil {
		r.Pool.Close()
	}
}
