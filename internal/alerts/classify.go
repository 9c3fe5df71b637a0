package alerts

import "time"

const fractionEpsilon = 1e-9

// DaysLeft counts calendar days from today until expiration. Expired stock
// yields a negative number.
func DaysLeft(expiration, today time.Time) int {
	return int(civilDate(expiration).Sub(civilDate(today)).Hours() / 24)
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ClassifyDays maps days left onto a band. Rows beyond Green get BandNone.
func ClassifyDays(daysLeft int, b DayBands) Band {
	switch {
	case daysLeft <= b.Red:
		return BandRed
	case daysLeft <= b.Orange:
		return BandOrange
	case daysLeft <= b.Green:
		return BandGreen
	default:
		return BandNone
	}
}

// ClassifyFraction maps the remaining fraction of shelf life onto a band.
// Boundaries are inclusive on the more urgent side.
func ClassifyFraction(fraction float64, b FractionBands) Band {
	switch {
	case fraction <= b.Red+fractionEpsilon:
		return BandRed
	case fraction <= b.Orange+fractionEpsilon:
		return BandOrange
	case fraction <= b.Green+fractionEpsilon:
		return BandGreen
	default:
		return BandNone
	}
}

// EvaluateLowStock applies the item threshold, or global when unset, to the
// total shelf quantity.
func EvaluateLowStock(level ItemLevel, globalThreshold int) LowStockRow {
	threshold := globalThreshold
	if level.Threshold != nil {
		threshold = *level.Threshold
	}
	average := 0
	if level.Average != nil {
		average = *level.Average
	}
	return LowStockRow{
		ItemID:           level.ItemID,
		Name:             level.Name,
		Barcode:          level.Barcode,
		ShelfQuantity:    level.ShelfQuantity,
		Threshold:        threshold,
		Average:          level.Average,
		NeededForAverage: max(0, average-level.ShelfQuantity),
		ToThreshold:      max(0, threshold-level.ShelfQuantity),
		Low:              level.ShelfQuantity < threshold,
	}
}
