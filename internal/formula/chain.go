package formula

import (
	"errors"
	"fmt"
	"strings"
)

// #region chain
// Chain tries its strategies in order. A strategy either answers or declines
// with ErrLookupMiss or ErrModelUnavailable, which hands the input to the next
// one. Any other error stops the chain. Strategies that implement Attempter are
// asked through Attempt so their own internal failover does not hide a decline.
type Chain struct {
	spec       ChainSpec
	strategies []Candidate
}

func buildChain(spec ChainSpec, deps Deps) (*Chain, error) {
	if len(spec.Strategies) == 0 {
		return nil, fmt.Errorf("%w: chain has no strategies", ErrInvalidSpec)
	}
	c := &Chain{strategies: make([]Candidate, len(spec.Strategies))}
	for i, s := range spec.Strategies {
		cand, err := s.Build(deps)
		if err != nil {
			return nil, fmt.Errorf("chain strategy %d: %w", i, err)
		}
		c.strategies[i] = cand
	}
	c.spec = ChainSpec{Strategies: make([]Spec, len(spec.Strategies))}
	for i, s := range spec.Strategies {
		c.spec.Strategies[i] = s.Clone()
	}
	return c, nil
}

// NewChain builds a chain from its spec.
func NewChain(spec ChainSpec, deps Deps) (*Chain, error) {
	return buildChain(spec, deps)
}

// DefaultChainSpec is exact dataset lookup, then the named model, then the
// baseline linear fit.
func DefaultChainSpec(model string) Spec {
	baseline := BaselineLinearSpec()
	linear := Spec{Kind: KindLinear, Linear: &baseline}
	return Spec{Kind: KindChain, Chain: &ChainSpec{Strategies: []Spec{
		{Kind: KindLookup, Lookup: &LookupSpec{FromDataset: true}},
		{Kind: KindLearned, Learned: &LearnedSpec{Model: model, Fallback: cloneSpecPtr(&linear)}},
		linear.Clone(),
	}}}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return "chain(" + strings.Join(names, " → ") + ")"
}

func (c *Chain) Predict(in Input) (float64, error) {
	y, _, err := c.Resolve(in)
	return y, err
}

// Resolve is Predict that also reports which strategy answered.
func (c *Chain) Resolve(in Input) (float64, int, error) {
	if err := in.Validate(); err != nil {
		return 0, -1, err
	}
	for i, s := range c.strategies {
		var y float64
		var err error
		if a, ok := s.(Attempter); ok {
			y, err = a.Attempt(in)
		} else {
			y, err = s.Predict(in)
		}
		switch {
		case err == nil:
			return y, i, nil
		case errors.Is(err, ErrLookupMiss), errors.Is(err, ErrModelUnavailable):
			continue
		default:
			return 0, i, fmt.Errorf("chain strategy %d: %w", i, err)
		}
	}
	return 0, -1, ErrChainExhausted
}

// Strategies returns the built strategies in order.
func (c *Chain) Strategies() []Candidate {
	return append([]Candidate(nil), c.strategies...)
}

func (c *Chain) Spec() Spec {
	s := ChainSpec{Strategies: make([]Spec, len(c.spec.Strategies))}
	for i, st := range c.spec.Strategies {
		s.Strategies[i] = st.Clone()
	}
	return Spec{Kind: KindChain, Chain: &s}
}

// #endregion chain
