package formula

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundCents rounds a dollar amount to two decimal places, half away from zero.
// Non-finite values are returned unchanged.
func RoundCents(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	f, _ := decimal.NewFromFloat(x).Round(2).Float64()
	return f
}

// FormatDollars renders an amount the way the prediction entry point prints it.
func FormatDollars(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "0.00"
	}
	return decimal.NewFromFloat(x).StringFixed(2)
}

func clampPayout(x float64) float64 {
	if x < MinimumPayout {
		return MinimumPayout
	}
	return x
}
