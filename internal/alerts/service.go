package alerts

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// RepositoryPort provides the shelf aggregates.
type RepositoryPort interface {
	ItemLevels(ctx context.Context) ([]ItemLevel, error)
	ShelfRows(ctx context.Context) ([]ShelfRow, error)
}

// Service computes the alert views.
type Service struct {
	repo    RepositoryPort
	cache   *Cache
	presets Presets
	logger  *slog.Logger
	now     func() time.Time
	group   singleflight.Group
}

// NewService wires the alert service. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache, presets Presets, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, presets: presets, logger: logger, now: time.Now}
}

// Presets returns the configured default bands.
func (s *Service) Presets() Presets {
	return s.presets
}

// Today returns the current calendar date.
func (s *Service) Today() time.Time {
	return civilDate(s.now())
}

// Evaluate applies the filter to every item and returns all of them,
// flagged or not, ordered by item id.
func (s *Service) Evaluate(ctx context.Context, filter LowStockFilter) ([]LowStockRow, error) {
	if filter.GlobalThreshold < 0 {
		return nil, ErrInvalidThreshold
	}
	levels, err := s.repo.ItemLevels(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]LowStockRow, 0, len(levels))
	for _, level := range levels {
		rows = append(rows, EvaluateLowStock(level, filter.GlobalThreshold))
	}
	return rows, nil
}

// LowStock returns items below their threshold, lowest shelf quantity first.
func (s *Service) LowStock(ctx context.Context, filter LowStockFilter) ([]LowStockRow, error) {
	all, err := s.Evaluate(ctx, filter)
	if err != nil {
		return nil, err
	}
	low := make([]LowStockRow, 0)
	for _, row := range all {
		if row.Low {
			low = append(low, row)
		}
	}
	slices.SortStableFunc(low, func(a, b LowStockRow) int {
		return cmp.Or(cmp.Compare(a.ShelfQuantity, b.ShelfQuantity), cmp.Compare(a.ItemID, b.ItemID))
	})
	if filter.Limit > 0 && len(low) > filter.Limit {
		low = low[:filter.Limit]
	}
	return low, nil
}

// LowShelfRows returns individual shelf layers holding at most threshold units.
func (s *Service) LowShelfRows(ctx context.Context, threshold int) ([]ShelfRow, error) {
	if threshold < 0 {
		return nil, ErrInvalidThreshold
	}
	rows, err := s.repo.ShelfRows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ShelfRow, 0)
	for _, row := range rows {
		if row.Quantity <= threshold {
			out = append(out, row)
		}
	}
	slices.SortStableFunc(out, func(a, b ShelfRow) int {
		return cmp.Compare(a.Quantity, b.Quantity)
	})
	return out, nil
}

// NearExpiryByDays bands every shelf row by days left. Rows past the green
// bound are omitted.
func (s *Service) NearExpiryByDays(ctx context.Context, bands DayBands, today time.Time) ([]ExpiryRow, error) {
	if err := bands.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.repo.ShelfRows(ctx)
	if err != nil {
		return nil, err
	}
	return bandByDays(rows, bands, today), nil
}

func bandByDays(rows []ShelfRow, bands DayBands, today time.Time) []ExpiryRow {
	out := make([]ExpiryRow, 0)
	for _, row := range rows {
		days := DaysLeft(row.ExpirationDate, today)
		band := ClassifyDays(days, bands)
		if band == BandNone {
			continue
		}
		out = append(out, ExpiryRow{ShelfRow: row, DaysLeft: days, Band: band})
	}
	sortExpiry(out)
	return out
}

// NearExpiryByFraction bands shelf rows by the share of shelf life left.
// Items without a positive shelf life are reported as not applicable.
func (s *Service) NearExpiryByFraction(ctx context.Context, bands FractionBands, today time.Time) (FractionReport, error) {
	if err := bands.Validate(); err != nil {
		return FractionReport{}, err
	}
	rows, err := s.repo.ShelfRows(ctx)
	if err != nil {
		return FractionReport{}, err
	}
	report := FractionReport{Rows: make([]ExpiryRow, 0), NotApplicable: make([]ShelfRow, 0)}
	for _, row := range rows {
		if row.ShelfLife == nil || *row.ShelfLife <= 0 {
			report.NotApplicable = append(report.NotApplicable, row)
			continue
		}
		days := DaysLeft(row.ExpirationDate, today)
		fraction := float64(days) / float64(*row.ShelfLife)
		band := ClassifyFraction(fraction, bands)
		if band == BandNone {
			continue
		}
		report.Rows = append(report.Rows, ExpiryRow{ShelfRow: row, DaysLeft: days, FractionLeft: &fraction, Band: band})
	}
	sortExpiry(report.Rows)
	return report, nil
}

func sortExpiry(rows []ExpiryRow) {
	slices.SortStableFunc(rows, func(a, b ExpiryRow) int {
		return cmp.Or(cmp.Compare(a.DaysLeft, b.DaysLeft), cmp.Compare(a.ItemID, b.ItemID))
	})
}

// Dashboard computes low stock, low shelf rows and day-banded expiry with the
// configured presets. Results are cached per day and cache version; concurrent
// callers for the same key share one computation.
func (s *Service) Dashboard(ctx context.Context, today time.Time) (Dashboard, error) {
	today = civilDate(today)
	key, err := s.cache.BuildKey(ctx, "dashboard", today.Format(time.DateOnly))
	if err != nil {
		s.logger.WarnContext(ctx, "alerts cache unavailable", slog.Any("error", err))
		return s.buildDashboard(ctx, today)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		var dash Dashboard
		err := s.cache.FetchJSON(ctx, key, &dash, func(ctx context.Context) (any, error) {
			return s.buildDashboard(ctx, today)
		})
		return dash, err
	})
	if err != nil {
		return Dashboard{}, fmt.Errorf("alerts: dashboard: %w", err)
	}
	return v.(Dashboard), nil
}

// Warm recomputes today's dashboard into the cache.
func (s *Service) Warm(ctx context.Context) (Dashboard, error) {
	return s.Dashboard(ctx, s.Today())
}

func (s *Service) buildDashboard(ctx context.Context, today time.Time) (Dashboard, error) {
	dash := Dashboard{GeneratedAt: s.now().UTC(), Today: today.Format(time.DateOnly)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.LowStock(gctx, LowStockFilter{GlobalThreshold: s.presets.GlobalThreshold})
		dash.LowStock = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.LowShelfRows(gctx, s.presets.LowShelfThreshold)
		dash.LowShelfRows = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.NearExpiryByDays(gctx, s.presets.Days, today)
		dash.NearExpiry = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	dash.BandCounts = CountBands(dash.NearExpiry)
	return dash, nil
}

// CountBands tallies rows per band.
func CountBands(rows []ExpiryRow) map[Band]int {
	counts := map[Band]int{BandRed: 0, BandOrange: 0, BandGreen: 0}
	for _, row := range rows {
		counts[row.Band]++
	}
	return counts
}
