package formula

import (
	"fmt"
	"strings"
)

// #region ruleset
// RuleSet picks a single receipt rate by the first rule whose condition holds
// and applies it to the whole receipt amount.
type RuleSet struct {
	spec RuleSetSpec
}

// NewRuleSet requires a non-empty rule list whose last rule is a catch-all.
func NewRuleSet(spec RuleSetSpec) (*RuleSet, error) {
	if len(spec.Rules) == 0 {
		return nil, fmt.Errorf("%w: rule set has no rules", ErrInvalidSpec)
	}
	if err := checkFinite("rule set day_rate", spec.DayRate); err != nil {
		return nil, err
	}
	if err := checkFinite("rule set mile_rate", spec.MileRate); err != nil {
		return nil, err
	}
	for i, r := range spec.Rules {
		if err := r.When.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if err := checkFinite(fmt.Sprintf("rule %d rate", i), r.Rate); err != nil {
			return nil, err
		}
	}
	if !spec.Rules[len(spec.Rules)-1].When.IsCatchAll() {
		return nil, fmt.Errorf("%w: last rule must be a catch-all, got %s", ErrInvalidSpec, spec.Rules[len(spec.Rules)-1].When)
	}
	if err := validateBonuses(spec.Bonuses); err != nil {
		return nil, err
	}
	return &RuleSet{spec: cloneRuleSet(spec)}, nil
}

func (r *RuleSet) Name() string {
	parts := make([]string, len(r.spec.Rules))
	for i, rule := range r.spec.Rules {
		parts[i] = fmt.Sprintf("%s→%g", rule.When, rule.Rate)
	}
	return fmt.Sprintf("rules(%gd + %gm; %s)", r.spec.DayRate, r.spec.MileRate, strings.Join(parts, "; "))
}

func (r *RuleSet) Predict(in Input) (float64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	s := r.spec
	y := s.DayRate*float64(in.Days) + s.MileRate*in.Miles
	y += s.Rate(in) * in.Receipts
	y += applyBonuses(s.Bonuses, in)
	return clampPayout(y), nil
}

// Rate returns the receipt rate of the first matching rule.
func (s RuleSetSpec) Rate(in Input) float64 {
	for _, rule := range s.Rules {
		if rule.When.Match(in) {
			return rule.Rate
		}
	}
	return 0
}

func (r *RuleSet) Spec() Spec {
	s := cloneRuleSet(r.spec)
	return Spec{Kind: KindRuleSet, Rules: &s}
}

func cloneRuleSet(s RuleSetSpec) RuleSetSpec {
	out := s
	out.Rules = make([]Rule, len(s.Rules))
	for i, rule := range s.Rules {
		out.Rules[i] = Rule{When: rule.When.clone(), Rate: rule.Rate}
	}
	out.Bonuses = cloneBonuses(s.Bonuses)
	return out
}

// #endregion ruleset
