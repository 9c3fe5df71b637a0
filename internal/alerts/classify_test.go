package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestEvaluateLowStockAboveAverage(t *testing.T) {
	row := EvaluateLowStock(ItemLevel{ItemID: 1, ShelfQuantity: 25, Threshold: intPtr(10), Average: intPtr(20)}, 5)
	require.False(t, row.Low)
	require.Equal(t, 0, row.NeededForAverage)
	require.Equal(t, 0, row.ToThreshold)
	require.Equal(t, 10, row.Threshold)
}

func TestEvaluateLowStockFallsBackToGlobalThreshold(t *testing.T) {
	row := EvaluateLowStock(ItemLevel{ItemID: 1, ShelfQuantity: 4}, 10)
	require.True(t, row.Low)
	require.Equal(t, 10, row.Threshold)
	require.Equal(t, 6, row.ToThreshold)
	require.Equal(t, 0, row.NeededForAverage)

	row = EvaluateLowStock(ItemLevel{ItemID: 1, ShelfQuantity: 10}, 10)
	require.False(t, row.Low, "threshold is exclusive")
}

func TestNeededForAverageNeverNegative(t *testing.T) {
	for qty := 0; qty <= 40; qty++ {
		row := EvaluateLowStock(ItemLevel{ShelfQuantity: qty, Average: intPtr(20)}, 10)
		require.GreaterOrEqual(t, row.NeededForAverage, 0)
		require.Equal(t, max(0, 20-qty), row.NeededForAverage)
	}
}

func TestClassifyDaysBoundaries(t *testing.T) {
	bands := DayBands{Red: 7, Orange: 30, Green: 85}
	cases := map[int]Band{
		-3: BandRed,
		0:  BandRed,
		7:  BandRed,
		8:  BandOrange,
		30: BandOrange,
		31: BandGreen,
		85: BandGreen,
		86: BandNone,
	}
	for days, want := range cases {
		require.Equal(t, want, ClassifyDays(days, bands), "days=%d", days)
	}
}

func TestClassifyFractionAtRedBoundary(t *testing.T) {
	bands := FractionBands{Red: 0.20, Orange: 0.40, Green: 0.80}
	require.Equal(t, BandRed, ClassifyFraction(float64(18)/float64(90), bands))
	require.Equal(t, BandOrange, ClassifyFraction(0.21, bands))
	require.Equal(t, BandOrange, ClassifyFraction(0.40, bands))
	require.Equal(t, BandGreen, ClassifyFraction(0.8, bands))
	require.Equal(t, BandNone, ClassifyFraction(0.81, bands))
}

func TestClassifyDaysWithNegativeBounds(t *testing.T) {
	bands := DayBands{Red: -7, Orange: 0, Green: 30}
	require.Equal(t, BandRed, ClassifyDays(-10, bands))
	require.Equal(t, BandRed, ClassifyDays(-7, bands))
	require.Equal(t, BandOrange, ClassifyDays(-3, bands))
	require.Equal(t, BandOrange, ClassifyDays(0, bands))
	require.Equal(t, BandGreen, ClassifyDays(1, bands))
	require.Equal(t, BandNone, ClassifyDays(31, bands))
}

func TestDaysLeftIgnoresClockTime(t *testing.T) {
	today := time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC)
	require.Equal(t, 18, DaysLeft(time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC), today))
	require.Equal(t, -1, DaysLeft(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), today))
}

func TestBandValidation(t *testing.T) {
	require.NoError(t, DayBands{Red: 0, Orange: 1, Green: 2}.Validate())
	require.ErrorIs(t, DayBands{Red: 7, Orange: 7, Green: 85}.Validate(), ErrInvalidDayBands)
	require.NoError(t, DayBands{Red: -7, Orange: 0, Green: 30}.Validate())
	require.ErrorIs(t, DayBands{Red: -1, Orange: -3, Green: 85}.Validate(), ErrInvalidDayBands)

	require.NoError(t, FractionBands{Red: 0, Orange: 0.5, Green: 1}.Validate())
	require.ErrorIs(t, FractionBands{Red: 0.2, Orange: 0.4, Green: 1.1}.Validate(), ErrInvalidFractionBands)
	require.ErrorIs(t, FractionBands{Red: 0.4, Orange: 0.2, Green: 0.8}.Validate(), ErrInvalidFractionBands)
}
