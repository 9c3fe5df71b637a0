package inventory

import (
	"cmp"
	"slices"
)

// Allocate ranks batches by expiration then unit cost and consumes them until
// quantity is covered. Empty batches are skipped. The input is not modified.
func Allocate(batches []Batch, quantity int) Plan {
	plan := Plan{Requested: quantity}
	if quantity <= 0 {
		return plan
	}
	ranked := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if b.Quantity > 0 {
			ranked = append(ranked, b)
		}
	}
	slices.SortStableFunc(ranked, compareBatches)

	remaining := quantity
	for _, b := range ranked {
		if remaining == 0 {
			break
		}
		take := min(remaining, b.Quantity)
		plan.Lines = append(plan.Lines, PlanLine{Batch: b, Quantity: take})
		remaining -= take
	}
	if len(ranked) > 0 {
		plan.ItemID = ranked[0].ItemID
	}
	plan.Shortfall = remaining
	return plan
}

func compareBatches(a, b Batch) int {
	if c := a.ExpirationDate.Compare(b.ExpirationDate); c != 0 {
		return c
	}
	if c := a.UnitCost.Cmp(b.UnitCost); c != 0 {
		return c
	}
	if c := a.ReceivedAt.Compare(b.ReceivedAt); c != 0 {
		return c
	}
	if c := cmp.Compare(a.StorageLocation, b.StorageLocation); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// takeLayers consumes shelf layers in expiry then cost order. It reports the
// quantities taken per layer and whether quantity was fully covered.
func takeLayers(layers []ShelfStock, quantity int) ([]ShelfStock, []int, bool) {
	ranked := make([]ShelfStock, 0, len(layers))
	for _, l := range layers {
		if l.Quantity > 0 {
			ranked = append(ranked, l)
		}
	}
	slices.SortStableFunc(ranked, func(a, b ShelfStock) int {
		if c := a.ExpirationDate.Compare(b.ExpirationDate); c != 0 {
			return c
		}
		if c := a.UnitCost.Cmp(b.UnitCost); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	remaining := quantity
	var picked []ShelfStock
	var takes []int
	for _, l := range ranked {
		if remaining == 0 {
			break
		}
		take := min(remaining, l.Quantity)
		picked = append(picked, l)
		takes = append(takes, take)
		remaining -= take
	}
	return picked, takes, remaining == 0
}
