package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/selling-area/internal/alerts"
	jobmetrics "github.com/odyssey-erp/selling-area/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AlertsSource is the part of the alerts service the scans read.
type AlertsSource interface {
	Presets() alerts.Presets
	Today() time.Time
	LowStock(ctx context.Context, filter alerts.LowStockFilter) ([]alerts.LowStockRow, error)
	NearExpiryByDays(ctx context.Context, bands alerts.DayBands, today time.Time) ([]alerts.ExpiryRow, error)
	Warm(ctx context.Context) (alerts.Dashboard, error)
}

// ShelfGauges receives the latest scan totals.
type ShelfGauges interface {
	SetLowStock(count int)
	SetExpiryBands(counts map[string]int)
}

// ShelfScanJob runs the scheduled expiry and low-stock scans.
type ShelfScanJob struct {
	Alerts  AlertsSource
	Gauges  ShelfGauges
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewShelfScanJob wires dependencies for both scans.
func NewShelfScanJob(source AlertsSource, gauges ShelfGauges, logger *slog.Logger, metrics *jobmetrics.Metrics) *ShelfScanJob {
	return &ShelfScanJob{Alerts: source, Gauges: gauges, Logger: logger, Metrics: metrics}
}

// HandleExpiry bands every shelf row with the configured day bands, logs red
// rows, updates the gauges and warms the dashboard cache.
func (j *ShelfScanJob) HandleExpiry(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Alerts == nil {
		return errors.New("expiry scan: handler not configured")
	}
	tracker := j.metrics().Track(TaskExpiryScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	bands := j.Alerts.Presets().Days
	logger := j.logger(TaskExpiryScan).With(
		slog.Int("red", bands.Red),
		slog.Int("orange", bands.Orange),
		slog.Int("green", bands.Green),
	)

	rows, err := j.Alerts.NearExpiryByDays(ctx, bands, j.Alerts.Today())
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}
	counts := alerts.CountBands(rows)
	for _, row := range rows {
		if row.Band != alerts.BandRed {
			continue
		}
		logger.Warn("shelf row near expiry",
			slog.Int64("item_id", row.ItemID),
			slog.String("location_id", row.LocationID),
			slog.Int("quantity", row.Quantity),
			slog.Int("days_left", row.DaysLeft),
		)
	}
	gauge := make(map[string]int, len(counts))
	for band, n := range counts {
		gauge[string(band)] = n
		j.metrics().AddFindings("expiry", string(band), n)
	}
	if j.Gauges != nil {
		j.Gauges.SetExpiryBands(gauge)
	}

	if _, err := j.Alerts.Warm(ctx); err != nil {
		logger.Warn("dashboard warmup failed", slog.Any("error", err))
	}

	logger.Info("completed expiry scan",
		slog.Int("red", counts[alerts.BandRed]),
		slog.Int("orange", counts[alerts.BandOrange]),
		slog.Int("green", counts[alerts.BandGreen]),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// HandleLowStock flags items under their shelf threshold.
func (j *ShelfScanJob) HandleLowStock(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Alerts == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload ScanPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	threshold := j.Alerts.Presets().GlobalThreshold
	if payload.Threshold > 0 {
		threshold = payload.Threshold
	}

	tracker := j.metrics().Track(TaskLowStockScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger(TaskLowStockScan).With(slog.Int("global_threshold", threshold))
	rows, err := j.Alerts.LowStock(ctx, alerts.LowStockFilter{GlobalThreshold: threshold})
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}
	for _, row := range rows {
		logger.Warn("item below shelf threshold",
			slog.Int64("item_id", row.ItemID),
			slog.String("name", row.Name),
			slog.Int("shelf_quantity", row.ShelfQuantity),
			slog.Int("threshold", row.Threshold),
			slog.Int("needed_for_average", row.NeededForAverage),
		)
	}
	j.metrics().AddFindings("low_stock", "low", len(rows))
	if j.Gauges != nil {
		j.Gauges.SetLowStock(len(rows))
	}
	logger.Info("completed low stock scan", slog.Int("items", len(rows)))
	return nil
}

func (j *ShelfScanJob) logger(job string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func (j *ShelfScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
