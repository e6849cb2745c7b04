package formula

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// #region kinds
// Kind tags the variant a Spec describes.
type Kind string

const (
	KindLinear  Kind = "linear"
	KindTiered  Kind = "tiered"
	KindRuleSet Kind = "rules"
	KindLookup  Kind = "lookup"
	KindLearned Kind = "learned"
	KindChain   Kind = "chain"
)

// #endregion kinds

// #region spec
// Spec is the serializable configuration of any candidate. Exactly one of the
// per-kind fields is set, matching Kind. A Spec plus the same Deps rebuilds an
// identical candidate.
type Spec struct {
	Kind    Kind         `json:"kind" yaml:"kind"`
	Linear  *LinearSpec  `json:"linear,omitempty" yaml:"linear,omitempty"`
	Tiered  *TieredSpec  `json:"tiered,omitempty" yaml:"tiered,omitempty"`
	Rules   *RuleSetSpec `json:"rules,omitempty" yaml:"rules,omitempty"`
	Lookup  *LookupSpec  `json:"lookup,omitempty" yaml:"lookup,omitempty"`
	Learned *LearnedSpec `json:"learned,omitempty" yaml:"learned,omitempty"`
	Chain   *ChainSpec   `json:"chain,omitempty" yaml:"chain,omitempty"`
}

// LinearSpec: intercept + Σ coefficient × term, plus bonuses.
type LinearSpec struct {
	Intercept    float64 `json:"intercept" yaml:"intercept"`
	Days         float64 `json:"days" yaml:"days"`
	Miles        float64 `json:"miles" yaml:"miles"`
	Receipts     float64 `json:"receipts" yaml:"receipts"`
	DaysSquared  float64 `json:"days_sq,omitempty" yaml:"days_sq,omitempty"`
	DaysMiles    float64 `json:"days_miles,omitempty" yaml:"days_miles,omitempty"`
	DaysReceipts float64 `json:"days_receipts,omitempty" yaml:"days_receipts,omitempty"`
	Bonuses      []Bonus `json:"bonuses,omitempty" yaml:"bonuses,omitempty"`
}

// Band is one finite receipt tier: the next Width dollars are paid at Rate.
type Band struct {
	Width float64 `json:"width" yaml:"width"`
	Rate  float64 `json:"rate" yaml:"rate"`
}

// TieredSpec walks receipts through Bands in order; whatever is left after the
// last finite band is paid at TailRate. An amount landing exactly on a band
// boundary is fully absorbed by the lower band.
type TieredSpec struct {
	Intercept float64 `json:"intercept,omitempty" yaml:"intercept,omitempty"`
	DayRate   float64 `json:"day_rate" yaml:"day_rate"`
	MileRate  float64 `json:"mile_rate" yaml:"mile_rate"`
	Bands     []Band  `json:"bands" yaml:"bands"`
	TailRate  float64 `json:"tail_rate" yaml:"tail_rate"`
	Bonuses   []Bonus `json:"bonuses,omitempty" yaml:"bonuses,omitempty"`
}

// Rule pairs a condition with the receipt rate it selects.
type Rule struct {
	When Condition `json:"when,omitempty" yaml:"when,omitempty"`
	Rate float64   `json:"rate" yaml:"rate"`
}

// RuleSetSpec applies the rate of the first matching rule to the whole receipt
// amount. The last rule must be a catch-all.
type RuleSetSpec struct {
	DayRate  float64 `json:"day_rate" yaml:"day_rate"`
	MileRate float64 `json:"mile_rate" yaml:"mile_rate"`
	Rules    []Rule  `json:"rules" yaml:"rules"`
	Bonuses  []Bonus `json:"bonuses,omitempty" yaml:"bonuses,omitempty"`
}

// LookupEntry is one known input triple and its recorded output.
type LookupEntry struct {
	Days     int     `json:"days" yaml:"days"`
	Miles    float64 `json:"miles" yaml:"miles"`
	Receipts float64 `json:"receipts" yaml:"receipts"`
	Output   float64 `json:"output" yaml:"output"`
}

// DistanceWeights scale the absolute differences summed into a neighbour distance.
type DistanceWeights struct {
	Days     float64 `json:"days" yaml:"days"`
	Miles    float64 `json:"miles" yaml:"miles"`
	Receipts float64 `json:"receipts" yaml:"receipts"`
}

// DefaultDistanceWeights: one day counts as much as 100 miles or $1000 of receipts.
func DefaultDistanceWeights() DistanceWeights {
	return DistanceWeights{Days: 1, Miles: 0.01, Receipts: 0.001}
}

// LookupSpec consults exact entries first. On a miss it uses Fallback when set,
// otherwise inverse-distance interpolation over the Neighbors nearest entries.
type LookupSpec struct {
	FromDataset bool             `json:"from_dataset,omitempty" yaml:"from_dataset,omitempty"`
	Entries     []LookupEntry    `json:"entries,omitempty" yaml:"entries,omitempty"`
	Neighbors   int              `json:"neighbors,omitempty" yaml:"neighbors,omitempty"`
	Weights     *DistanceWeights `json:"weights,omitempty" yaml:"weights,omitempty"`
	Fallback    *Spec            `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// LearnedSpec names a regressor from Deps and the candidate used when it is unavailable.
type LearnedSpec struct {
	Model         string `json:"model" yaml:"model"`
	TimeoutMillis int    `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Fallback      *Spec  `json:"fallback" yaml:"fallback"`
}

// ChainSpec lists strategies tried in order.
type ChainSpec struct {
	Strategies []Spec `json:"strategies" yaml:"strategies"`
}

// #endregion spec

// #region build
// Build turns the spec into a candidate.
func (s Spec) Build(deps Deps) (Candidate, error) {
	switch s.Kind {
	case KindLinear:
		if s.Linear == nil {
			return nil, fmt.Errorf("%w: linear spec missing", ErrInvalidSpec)
		}
		return NewLinear(*s.Linear)
	case KindTiered:
		if s.Tiered == nil {
			return nil, fmt.Errorf("%w: tiered spec missing", ErrInvalidSpec)
		}
		return NewTiered(*s.Tiered)
	case KindRuleSet:
		if s.Rules == nil {
			return nil, fmt.Errorf("%w: rules spec missing", ErrInvalidSpec)
		}
		return NewRuleSet(*s.Rules)
	case KindLookup:
		if s.Lookup == nil {
			return nil, fmt.Errorf("%w: lookup spec missing", ErrInvalidSpec)
		}
		return buildLookup(*s.Lookup, deps)
	case KindLearned:
		if s.Learned == nil {
			return nil, fmt.Errorf("%w: learned spec missing", ErrInvalidSpec)
		}
		return buildLearned(*s.Learned, deps)
	case KindChain:
		if s.Chain == nil {
			return nil, fmt.Errorf("%w: chain spec missing", ErrInvalidSpec)
		}
		return buildChain(*s.Chain, deps)
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, s.Kind)
}

// #endregion build

// #region clone
// Clone returns a deep copy; mutating the copy never affects the original.
func (s Spec) Clone() Spec {
	out := Spec{Kind: s.Kind}
	if s.Linear != nil {
		l := *s.Linear
		l.Bonuses = cloneBonuses(l.Bonuses)
		out.Linear = &l
	}
	if s.Tiered != nil {
		t := *s.Tiered
		t.Bands = append([]Band(nil), t.Bands...)
		t.Bonuses = cloneBonuses(t.Bonuses)
		out.Tiered = &t
	}
	if s.Rules != nil {
		r := *s.Rules
		if r.Rules != nil {
			r.Rules = make([]Rule, len(s.Rules.Rules))
			for i, rule := range s.Rules.Rules {
				r.Rules[i] = Rule{When: rule.When.clone(), Rate: rule.Rate}
			}
		}
		r.Bonuses = cloneBonuses(r.Bonuses)
		out.Rules = &r
	}
	if s.Lookup != nil {
		l := *s.Lookup
		l.Entries = append([]LookupEntry(nil), l.Entries...)
		if l.Weights != nil {
			w := *l.Weights
			l.Weights = &w
		}
		l.Fallback = cloneSpecPtr(l.Fallback)
		out.Lookup = &l
	}
	if s.Learned != nil {
		l := *s.Learned
		l.Fallback = cloneSpecPtr(l.Fallback)
		out.Learned = &l
	}
	if s.Chain != nil {
		c := ChainSpec{}
		if s.Chain.Strategies != nil {
			c.Strategies = make([]Spec, len(s.Chain.Strategies))
			for i, st := range s.Chain.Strategies {
				c.Strategies[i] = st.Clone()
			}
		}
		out.Chain = &c
	}
	return out
}

func cloneSpecPtr(s *Spec) *Spec {
	if s == nil {
		return nil
	}
	c := s.Clone()
	return &c
}

// #endregion clone

// #region files
// LoadSpec reads a spec from a .json, .yaml or .yml file.
func LoadSpec(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read spec %s: %w", path, err)
	}
	var s Spec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	default:
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		return Spec{}, fmt.Errorf("parse spec %s: %w", path, err)
	}
	return s, nil
}

// SaveSpec writes a spec as indented JSON, or YAML for a .yaml/.yml path.
func SaveSpec(path string, s Spec) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(s)
	default:
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode spec: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write spec %s: %w", path, err)
	}
	return nil
}

// #endregion files
