package formula

import (
	"fmt"
	"math"
)

// #region linear
// Linear prices a trip as an intercept plus weighted raw, quadratic and
// interaction terms, plus any matching flat bonuses.
type Linear struct {
	spec LinearSpec
}

// NewLinear validates the configuration and returns the candidate.
func NewLinear(spec LinearSpec) (*Linear, error) {
	for name, c := range map[string]float64{
		"intercept": spec.Intercept, "days": spec.Days, "miles": spec.Miles, "receipts": spec.Receipts,
		"days_sq": spec.DaysSquared, "days_miles": spec.DaysMiles, "days_receipts": spec.DaysReceipts,
	} {
		if err := checkFinite("linear coefficient "+name, c); err != nil {
			return nil, err
		}
	}
	if err := validateBonuses(spec.Bonuses); err != nil {
		return nil, err
	}
	spec.Bonuses = cloneBonuses(spec.Bonuses)
	return &Linear{spec: spec}, nil
}

// checkFinite rejects NaN and ±Inf coefficients and rates.
func checkFinite(what string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s is not finite", ErrInvalidSpec, what)
	}
	return nil
}

// BaselineLinearSpec is the least-squares fit with a quadratic duration term and
// duration interactions, used as the last strategy of the default chain.
func BaselineLinearSpec() LinearSpec {
	return LinearSpec{
		Intercept:    -165.138848,
		Days:         88.172302,
		Miles:        0.406955,
		Receipts:     1.211677,
		DaysSquared:  -2.590275,
		DaysMiles:    0.014510,
		DaysReceipts: -0.008909,
	}
}

func (l *Linear) Name() string {
	s := l.spec
	name := fmt.Sprintf("linear(%g + %gd + %gm + %gr", s.Intercept, s.Days, s.Miles, s.Receipts)
	if s.DaysSquared != 0 || s.DaysMiles != 0 || s.DaysReceipts != 0 {
		name += fmt.Sprintf(" + %gd² + %gdm + %gdr", s.DaysSquared, s.DaysMiles, s.DaysReceipts)
	}
	if len(s.Bonuses) > 0 {
		name += fmt.Sprintf(", %d bonuses", len(s.Bonuses))
	}
	return name + ")"
}

func (l *Linear) Predict(in Input) (float64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	s := l.spec
	d := float64(in.Days)
	y := s.Intercept +
		s.Days*d +
		s.Miles*in.Miles +
		s.Receipts*in.Receipts +
		s.DaysSquared*d*d +
		s.DaysMiles*d*in.Miles +
		s.DaysReceipts*d*in.Receipts
	y += applyBonuses(s.Bonuses, in)
	return clampPayout(y), nil
}

func (l *Linear) Spec() Spec {
	s := l.spec
	s.Bonuses = cloneBonuses(s.Bonuses)
	return Spec{Kind: KindLinear, Linear: &s}
}

// #endregion linear
