package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// #region params
// WithParam returns a copy of the spec with one named numeric parameter set.
// Names follow the serialized field names, with indexes and dots for nested
// values:
//
//	intercept, days, day_rate, tail_rate, neighbors, weights.miles
//	bands[1].width, bands[1].rate
//	rules[0].rate, rules[0].when[0]     (clause threshold)
//	bonuses[0].amount, bonuses[0].when[1]
//	fallback.days, strategies[2].receipts
func (s Spec) WithParam(name string, v float64) (Spec, error) {
	out := s.Clone()
	if err := out.set(name, v); err != nil {
		return Spec{}, err
	}
	return out, nil
}

func (s *Spec) set(path string, v float64) error {
	head, rest, _ := strings.Cut(path, ".")
	unknown := fmt.Errorf("%w: %s has no parameter %q", ErrUnknownParam, s.Kind, path)

	switch {
	case s.Kind == KindLinear && s.Linear != nil:
		l := s.Linear
		if p := scalar(map[string]*float64{
			"intercept": &l.Intercept, "days": &l.Days, "miles": &l.Miles, "receipts": &l.Receipts,
			"days_sq": &l.DaysSquared, "days_miles": &l.DaysMiles, "days_receipts": &l.DaysReceipts,
		}, path); p != nil {
			*p = v
			return nil
		}
		return setBonus(l.Bonuses, head, rest, v, unknown)

	case s.Kind == KindTiered && s.Tiered != nil:
		t := s.Tiered
		if p := scalar(map[string]*float64{
			"intercept": &t.Intercept, "day_rate": &t.DayRate, "mile_rate": &t.MileRate, "tail_rate": &t.TailRate,
		}, path); p != nil {
			*p = v
			return nil
		}
		if field, i, ok := indexed(head); ok && field == "bands" {
			if i >= len(t.Bands) {
				return unknown
			}
			switch rest {
			case "width":
				t.Bands[i].Width = v
				return nil
			case "rate":
				t.Bands[i].Rate = v
				return nil
			}
			return unknown
		}
		return setBonus(t.Bonuses, head, rest, v, unknown)

	case s.Kind == KindRuleSet && s.Rules != nil:
		r := s.Rules
		if p := scalar(map[string]*float64{"day_rate": &r.DayRate, "mile_rate": &r.MileRate}, path); p != nil {
			*p = v
			return nil
		}
		if field, i, ok := indexed(head); ok && field == "rules" {
			if i >= len(r.Rules) {
				return unknown
			}
			if rest == "rate" {
				r.Rules[i].Rate = v
				return nil
			}
			return setClause(r.Rules[i].When, rest, v, unknown)
		}
		return setBonus(r.Bonuses, head, rest, v, unknown)

	case s.Kind == KindLookup && s.Lookup != nil:
		l := s.Lookup
		switch head {
		case "neighbors":
			if rest != "" || v < 0 || v != math.Trunc(v) {
				return fmt.Errorf("%w: neighbors must be a non-negative integer, got %g", ErrInvalidSpec, v)
			}
			l.Neighbors = int(v)
			return nil
		case "weights":
			if l.Weights == nil {
				w := DefaultDistanceWeights()
				l.Weights = &w
			}
			if p := scalar(map[string]*float64{"days": &l.Weights.Days, "miles": &l.Weights.Miles, "receipts": &l.Weights.Receipts}, rest); p != nil {
				*p = v
				return nil
			}
		case "fallback":
			if l.Fallback != nil {
				return l.Fallback.set(rest, v)
			}
		}
		return unknown

	case s.Kind == KindLearned && s.Learned != nil:
		if head == "fallback" && s.Learned.Fallback != nil {
			return s.Learned.Fallback.set(rest, v)
		}
		return unknown

	case s.Kind == KindChain && s.Chain != nil:
		if field, i, ok := indexed(head); ok && field == "strategies" && i < len(s.Chain.Strategies) {
			return s.Chain.Strategies[i].set(rest, v)
		}
		return unknown
	}
	return unknown
}

func scalar(fields map[string]*float64, name string) *float64 {
	return fields[name]
}

func setBonus(bonuses []Bonus, head, rest string, v float64, unknown error) error {
	field, i, ok := indexed(head)
	if !ok || field != "bonuses" || i >= len(bonuses) {
		return unknown
	}
	if rest == "amount" {
		bonuses[i].Amount = v
		return nil
	}
	return setClause(bonuses[i].When, rest, v, unknown)
}

func setClause(c Condition, rest string, v float64, unknown error) error {
	field, j, ok := indexed(rest)
	if !ok || field != "when" || j >= len(c) {
		return unknown
	}
	c[j].Value = v
	return nil
}

// indexed splits "name[3]" into ("name", 3).
func indexed(s string) (string, int, bool) {
	open := strings.IndexByte(s, '[')
	if open < 0 || !strings.HasSuffix(s, "]") {
		return "", 0, false
	}
	i, err := strconv.Atoi(s[open+1 : len(s)-1])
	if err != nil || i < 0 {
		return "", 0, false
	}
	return s[:open], i, true
}

// #endregion params
