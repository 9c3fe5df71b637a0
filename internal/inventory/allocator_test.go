package inventory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func batch(id int64, exp string, cost string, qty int) Batch {
	return Batch{
		ID: id,
		BatchKey: BatchKey{
			ItemID:          1,
			ExpirationDate:  day(exp),
			UnitCost:        decimal.RequireFromString(cost),
			StorageLocation: "WH",
		},
		Quantity:   qty,
		ReceivedAt: day("2024-12-01"),
	}
}

func TestAllocateTakesEarliestExpiryFirst(t *testing.T) {
	batches := []Batch{
		batch(2, "2025-02-01", "1.50", 10),
		batch(1, "2025-01-01", "2.00", 5),
	}

	plan := Allocate(batches, 8)
	require.Len(t, plan.Lines, 2)
	require.Equal(t, int64(1), plan.Lines[0].Batch.ID)
	require.Equal(t, 5, plan.Lines[0].Quantity)
	require.Equal(t, int64(2), plan.Lines[1].Batch.ID)
	require.Equal(t, 3, plan.Lines[1].Quantity)
	require.Zero(t, plan.Shortfall)
	require.Equal(t, 8, plan.Requested)
}

func TestAllocateReportsShortfall(t *testing.T) {
	batches := []Batch{
		batch(1, "2025-01-01", "2.00", 5),
		batch(2, "2025-02-01", "1.50", 10),
	}

	plan := Allocate(batches, 20)
	require.Len(t, plan.Lines, 2)
	require.Equal(t, 5, plan.Lines[0].Quantity)
	require.Equal(t, 10, plan.Lines[1].Quantity)
	require.Equal(t, 5, plan.Shortfall)
	require.Equal(t, 15, plan.Allocated())
}

func TestAllocateBreaksExpiryTiesByCost(t *testing.T) {
	batches := []Batch{
		batch(1, "2025-03-01", "3.10", 4),
		batch(2, "2025-03-01", "2.95", 4),
		batch(3, "2025-03-01", "3.00", 4),
	}

	plan := Allocate(batches, 10)
	ids := []int64{}
	for _, l := range plan.Lines {
		ids = append(ids, l.Batch.ID)
	}
	require.Equal(t, []int64{2, 3, 1}, ids)
	require.Equal(t, 2, plan.Lines[2].Quantity)
}

func TestAllocateSkipsEmptyBatchesAndStopsEarly(t *testing.T) {
	batches := []Batch{
		batch(1, "2025-01-01", "1.00", 0),
		batch(2, "2025-01-02", "1.00", 6),
		batch(3, "2025-01-03", "1.00", 6),
	}

	plan := Allocate(batches, 6)
	require.Len(t, plan.Lines, 1)
	require.Equal(t, int64(2), plan.Lines[0].Batch.ID)
	require.Zero(t, plan.Shortfall)
}

func TestAllocateDoesNotMutateInput(t *testing.T) {
	batches := []Batch{
		batch(2, "2025-02-01", "1.50", 10),
		batch(1, "2025-01-01", "2.00", 5),
	}
	_ = Allocate(batches, 12)
	require.Equal(t, int64(2), batches[0].ID)
	require.Equal(t, 10, batches[0].Quantity)
}

func TestAllocateProperties(t *testing.T) {
	batches := []Batch{
		batch(1, "2025-05-01", "1.20", 3),
		batch(2, "2025-04-01", "1.10", 7),
		batch(3, "2025-04-01", "0.90", 2),
		batch(4, "2025-06-01", "0.50", 9),
	}
	available := 21
	for requested := 1; requested <= 30; requested++ {
		plan := Allocate(batches, requested)
		require.Equal(t, requested, plan.Allocated()+plan.Shortfall, "requested %d", requested)
		require.GreaterOrEqual(t, plan.Shortfall, 0)
		if requested <= available {
			require.Zero(t, plan.Shortfall)
		} else {
			require.Equal(t, requested-available, plan.Shortfall)
		}
		for i, line := range plan.Lines {
			require.Positive(t, line.Quantity)
			require.LessOrEqual(t, line.Quantity, line.Batch.Quantity)
			if i > 0 {
				require.LessOrEqual(t, compareBatches(plan.Lines[i-1].Batch, line.Batch), 0)
			}
			if i < len(plan.Lines)-1 {
				require.Equal(t, line.Batch.Quantity, line.Quantity, "only the last line may be partial")
			}
		}
	}
}

func TestAllocateNonPositiveRequest(t *testing.T) {
	plan := Allocate([]Batch{batch(1, "2025-01-01", "1.00", 5)}, 0)
	require.Empty(t, plan.Lines)
	require.Zero(t, plan.Shortfall)
}

func TestPlanCost(t *testing.T) {
	plan := Allocate([]Batch{
		batch(1, "2025-01-01", "2.00", 5),
		batch(2, "2025-02-01", "1.50", 10),
	}, 8)
	require.True(t, decimal.RequireFromString("14.50").Equal(plan.Cost()))
}
