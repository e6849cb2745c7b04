package formula

import (
	"fmt"
	"slices"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
)

// DefaultNeighbors is the neighbour count used by interpolating lookups built
// through DefaultChainSpec and the harness tooling.
const DefaultNeighbors = 5

// distanceEpsilon keeps inverse-distance weights finite.
const distanceEpsilon = 0.001

// #region lookup
// Lookup answers exact input triples with their recorded output. On a miss it
// delegates to Fallback when configured, interpolates over the nearest entries
// when Neighbors > 0, and otherwise reports ErrLookupMiss. When the same triple
// appears more than once the first recorded output wins.
type Lookup struct {
	spec     LookupSpec
	entries  []LookupEntry
	table    map[cases.Key]float64
	weights  DistanceWeights
	fallback Candidate
}

func buildLookup(spec LookupSpec, deps Deps) (*Lookup, error) {
	if spec.Neighbors < 0 {
		return nil, fmt.Errorf("%w: negative neighbour count %d", ErrInvalidSpec, spec.Neighbors)
	}
	var entries []LookupEntry
	if spec.FromDataset {
		if deps.Cases == nil {
			return nil, fmt.Errorf("%w: lookup wants the dataset but none was provided", ErrInvalidSpec)
		}
		entries = make([]LookupEntry, 0, deps.Cases.Len()+len(spec.Entries))
		for _, c := range deps.Cases.All() {
			entries = append(entries, LookupEntry{Days: c.Days, Miles: c.Miles, Receipts: c.Receipts, Output: c.Expected})
		}
	}
	entries = append(entries, spec.Entries...)

	l := &Lookup{
		spec:    spec.Clone(),
		entries: entries,
		table:   make(map[cases.Key]float64, len(entries)),
		weights: DefaultDistanceWeights(),
	}
	if spec.Weights != nil {
		l.weights = *spec.Weights
	}
	for _, e := range entries {
		k := cases.Key{Days: e.Days, Miles: e.Miles, Receipts: e.Receipts}
		if _, ok := l.table[k]; !ok {
			l.table[k] = e.Output
		}
	}
	if spec.Fallback != nil {
		fb, err := spec.Fallback.Build(deps)
		if err != nil {
			return nil, fmt.Errorf("lookup fallback: %w", err)
		}
		l.fallback = fb
	}
	return l, nil
}

// NewLookup builds a lookup from its spec.
func NewLookup(spec LookupSpec, deps Deps) (*Lookup, error) {
	return buildLookup(spec, deps)
}

func (l *Lookup) Name() string {
	switch {
	case l.fallback != nil:
		return fmt.Sprintf("lookup(%d keys, else %s)", len(l.table), l.fallback.Name())
	case l.spec.Neighbors > 0:
		return fmt.Sprintf("lookup(%d keys, else %d-nn)", len(l.table), l.spec.Neighbors)
	}
	return fmt.Sprintf("lookup(%d keys)", len(l.table))
}

// Len is the number of distinct keys.
func (l *Lookup) Len() int { return len(l.table) }

func (l *Lookup) Predict(in Input) (float64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	if y, ok := l.table[in.key()]; ok {
		return y, nil
	}
	if l.fallback != nil {
		return l.fallback.Predict(in)
	}
	if l.spec.Neighbors > 0 && len(l.entries) > 0 {
		return clampPayout(l.interpolate(in)), nil
	}
	return 0, ErrLookupMiss
}

type neighbor struct {
	index int
	dist  float64
}

func (l *Lookup) distance(in Input, e LookupEntry) float64 {
	return l.weights.Days*abs(float64(in.Days-e.Days)) +
		l.weights.Miles*abs(in.Miles-e.Miles) +
		l.weights.Receipts*abs(in.Receipts-e.Receipts)
}

// interpolate averages the outputs of the k nearest entries weighted by
// 1/(distance+0.001). A zero-distance neighbour is returned as is.
func (l *Lookup) interpolate(in Input) float64 {
	near := make([]neighbor, len(l.entries))
	for i, e := range l.entries {
		near[i] = neighbor{index: i, dist: l.distance(in, e)}
	}
	slices.SortStableFunc(near, func(a, b neighbor) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		}
		return a.index - b.index
	})
	if near[0].dist == 0 {
		return l.entries[near[0].index].Output
	}
	k := min(l.spec.Neighbors, len(near))
	var num, den float64
	for _, n := range near[:k] {
		w := 1 / (n.dist + distanceEpsilon)
		num += w * l.entries[n.index].Output
		den += w
	}
	return num / den
}

func (l *Lookup) Spec() Spec {
	s := l.spec.Clone()
	return Spec{Kind: KindLookup, Lookup: &s}
}

// Clone deep-copies the lookup configuration.
func (s LookupSpec) Clone() LookupSpec {
	out := s
	out.Entries = append([]LookupEntry(nil), s.Entries...)
	if s.Weights != nil {
		w := *s.Weights
		out.Weights = &w
	}
	out.Fallback = cloneSpecPtr(s.Fallback)
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// #endregion lookup
