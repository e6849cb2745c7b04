package formula

import (
	"fmt"
	"math"
	"strings"
)

// #region tiered
// Tiered prices duration and mileage linearly and walks the receipt amount
// through ordered bands. Each band consumes up to its Width at its Rate; what
// remains after the last band is paid at TailRate. A receipt amount that ends
// exactly on a band boundary is fully paid by the band below the boundary.
type Tiered struct {
	spec TieredSpec
}

// NewTiered rejects non-positive or non-finite band widths and non-finite rates.
func NewTiered(spec TieredSpec) (*Tiered, error) {
	for name, v := range map[string]float64{
		"intercept": spec.Intercept, "day_rate": spec.DayRate, "mile_rate": spec.MileRate, "tail_rate": spec.TailRate,
	} {
		if err := checkFinite("tiered "+name, v); err != nil {
			return nil, err
		}
	}
	for i, b := range spec.Bands {
		if !(b.Width > 0) || math.IsInf(b.Width, 0) {
			return nil, fmt.Errorf("%w: band %d width %g must be positive and finite", ErrInvalidSpec, i, b.Width)
		}
		if err := checkFinite(fmt.Sprintf("band %d rate", i), b.Rate); err != nil {
			return nil, err
		}
	}
	if err := validateBonuses(spec.Bonuses); err != nil {
		return nil, err
	}
	spec.Bands = append([]Band(nil), spec.Bands...)
	spec.Bonuses = cloneBonuses(spec.Bonuses)
	return &Tiered{spec: spec}, nil
}

func (t *Tiered) Name() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tiered(%gd + %gm", t.spec.DayRate, t.spec.MileRate)
	if t.spec.Intercept != 0 {
		fmt.Fprintf(&b, " + %g", t.spec.Intercept)
	}
	var upper float64
	for _, band := range t.spec.Bands {
		upper += band.Width
		fmt.Fprintf(&b, ", ≤%g@%g", upper, band.Rate)
	}
	fmt.Fprintf(&b, ", rest@%g)", t.spec.TailRate)
	return b.String()
}

func (t *Tiered) Predict(in Input) (float64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	s := t.spec
	y := s.Intercept + s.DayRate*float64(in.Days) + s.MileRate*in.Miles
	y += s.ReceiptContribution(in.Receipts)
	y += applyBonuses(s.Bonuses, in)
	return clampPayout(y), nil
}

// ReceiptContribution is the band walk alone.
func (s TieredSpec) ReceiptContribution(receipts float64) float64 {
	if receipts <= 0 {
		return 0
	}
	var total float64
	remaining := receipts
	for _, b := range s.Bands {
		take := math.Min(remaining, b.Width)
		total += take * b.Rate
		remaining -= take
		if remaining <= 0 {
			return total
		}
	}
	return total + remaining*s.TailRate
}

// Boundaries returns the cumulative upper edge of each finite band.
func (s TieredSpec) Boundaries() []float64 {
	out := make([]float64, len(s.Bands))
	var upper float64
	for i, b := range s.Bands {
		upper += b.Width
		out[i] = upper
	}
	return out
}

func (t *Tiered) Spec() Spec {
	s := t.spec
	s.Bands = append([]Band(nil), s.Bands...)
	s.Bonuses = cloneBonuses(s.Bonuses)
	return Spec{Kind: KindTiered, Tiered: &s}
}

// #endregion tiered
