package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesMatchCount(t *testing.T) {
	n := Names()
	require.Len(t, n, Count)
	seen := make(map[string]bool)
	for _, name := range n {
		assert.NotEmpty(t, name)
		assert.False(t, seen[name], "duplicate feature name %s", name)
		seen[name] = true
	}
}

func TestDerive_RawAndRatios(t *testing.T) {
	v := Derive(4, 400, 200)

	assert.Equal(t, 4.0, v[Days])
	assert.Equal(t, 400.0, v[Miles])
	assert.Equal(t, 200.0, v[Receipts])
	assert.Equal(t, 100.0, v[MilesPerDay])
	assert.Equal(t, 50.0, v[ReceiptsPerDay])
	assert.Equal(t, 0.5, v[ReceiptsPerMile])
	assert.Equal(t, 2.0, v[SqrtDays])
	assert.InDelta(t, math.Log(5), v[LogDays], 1e-12)
	assert.Equal(t, 4*400*200/10000.0, v[DaysMilesReceipts])
}

// Zero divisors never raise and never produce NaN/Inf.
func TestDerive_ZeroDivisors(t *testing.T) {
	v := Derive(0, 0, 0)
	for i, x := range v {
		assert.False(t, math.IsNaN(x) || math.IsInf(x, 0), "feature %s = %v", names[i], x)
	}
	assert.Equal(t, 0.0, v[MilesPerDay])
	assert.Equal(t, 0.0, v[ReceiptsPerDay])
	assert.Equal(t, 0.0, v[ReceiptsPerMile])

	v = Derive(3, 0, 120)
	assert.Equal(t, 0.0, v[ReceiptsPerMile])
}

func TestDerive_Indicators(t *testing.T) {
	tests := []struct {
		name     string
		days     int
		miles    float64
		receipts float64
		on       []int
	}{
		{"one day short hop", 1, 50, 20, []int{IsOneDay, ReceiptsUnder50, MilesUnder100}},
		{"five day sweet spot", 5, 500, 600, []int{IsFiveDay, MPDSweetSpot}},
		{"long heavy trip", 10, 900, 2100, []int{IsWeekPlus, IsTenPlus, ReceiptsOver1500, ReceiptsOver2000, MilesOver500, MilesOver800, MPDSweetSpot}},
		{"slow trip", 7, 140, 800, []int{IsWeekPlus, MPDUnder30}},
		{"road warrior", 2, 700, 100, []int{MilesOver500, MPDOver300}},
	}

	indicators := []int{
		IsOneDay, IsFiveDay, IsWeekPlus, IsTenPlus,
		ReceiptsUnder50, ReceiptsOver1500, ReceiptsOver2000,
		MilesUnder100, MilesOver500, MilesOver800,
		MPDUnder30, MPDSweetSpot, MPDOver300,
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Derive(tt.days, tt.miles, tt.receipts)
			want := make(map[int]bool)
			for _, i := range tt.on {
				want[i] = true
			}
			for _, i := range indicators {
				expected := 0.0
				if want[i] {
					expected = 1.0
				}
				assert.Equal(t, expected, v[i], "indicator %s", names[i])
			}
		})
	}
}

// Sweet-spot bounds are inclusive on both ends.
func TestDerive_SweetSpotBounds(t *testing.T) {
	assert.Equal(t, 1.0, Derive(1, 80, 0)[MPDSweetSpot])
	assert.Equal(t, 1.0, Derive(1, 200, 0)[MPDSweetSpot])
	assert.Equal(t, 0.0, Derive(1, 200.5, 0)[MPDSweetSpot])
}

func TestDerive_CapsAndBins(t *testing.T) {
	v := Derive(20, 2500, 5000)
	assert.Equal(t, 14.0, v[DaysCapped])
	assert.Equal(t, 15.0, v[MilesBin])
	assert.Equal(t, 12.0, v[ReceiptsBin])

	v = Derive(3, 350, 450)
	assert.Equal(t, 3.0, v[DaysCapped])
	assert.Equal(t, 3.0, v[MilesBin])
	assert.Equal(t, 2.0, v[ReceiptsBin])
	assert.Equal(t, 0.0, v[ReceiptsOverAllowance])
	assert.Equal(t, 0.0, v[MilesOverAllowance])

	v = Derive(2, 500, 400)
	assert.Equal(t, 100.0, v[ReceiptsOverAllowance])
	assert.Equal(t, 100.0, v[MilesOverAllowance])
}

func TestDerive_Deterministic(t *testing.T) {
	a := Derive(6, 812.5, 1777.77)
	b := Derive(6, 812.5, 1777.77)
	assert.Equal(t, a, b)
	assert.Equal(t, a[:], a.Slice())
}
