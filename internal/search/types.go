package search

import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/reimburse-harness/internal/eval"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
)

// #region errors
var (
	// ErrEmptySpace is returned before any evaluation when a grid has no points.
	ErrEmptySpace = errors.New("empty parameter space")

	// ErrConverged is returned when exploring a state the caller already stopped.
	ErrConverged = errors.New("search already converged")

	// ErrGridTooLarge is returned when a grid exceeds the configured point budget.
	ErrGridTooLarge = errors.New("parameter grid too large")
)

// #endregion errors

// #region phase
// Phase is the lifecycle position of a search.
type Phase int

const (
	Idle Phase = iota
	Exploring
	Converged
)

func (p Phase) String() string {
	switch p {
	case Exploring:
		return "exploring"
	case Converged:
		return "converged"
	}
	return "idle"
}

// #endregion phase

// #region grid
// Param is one named axis of a grid and the discrete values it takes.
type Param struct {
	Name   string    `json:"name" yaml:"name"`
	Values []float64 `json:"values" yaml:"values"`
}

// Range describes evenly spaced values from From to To inclusive.
type Range struct {
	From float64 `json:"from" yaml:"from"`
	To   float64 `json:"to" yaml:"to"`
	Step float64 `json:"step" yaml:"step"`
}

// MaxRangeLen bounds the values a single Range expands to.
const MaxRangeLen = 1 << 26

// Count is the number of values the range describes, as a float so that
// ranges too long to expand can still be measured. It is 0 for a non-positive
// step or an inverted range, and +Inf when the count does not fit in a float.
func (r Range) Count() float64 {
	if !(r.Step > 0) || r.To < r.From || math.IsNaN(r.From) || math.IsNaN(r.To) {
		return 0
	}
	n := math.Floor((r.To-r.From)/r.Step+1e-9) + 1
	if math.IsNaN(n) {
		return math.Inf(1)
	}
	return n
}

// Values expands the range. Each value is computed from From directly so long
// ranges do not accumulate rounding drift. A non-positive step, an inverted
// range, or one longer than MaxRangeLen yields nothing.
func (r Range) Values() []float64 {
	n := r.Count()
	if n < 1 || n > MaxRangeLen {
		return nil
	}
	out := make([]float64, int(n))
	for i := range out {
		out[i] = r.From + float64(i)*r.Step
	}
	return out
}

// Span builds a Param from a range.
func Span(name string, from, to, step float64) Param {
	return Param{Name: name, Values: Range{From: from, To: to, Step: step}.Values()}
}

// Fixed builds a Param from explicit values.
func Fixed(name string, values ...float64) Param {
	return Param{Name: name, Values: values}
}

// Grid is the Cartesian product of its params applied to a template spec.
// Points are enumerated with the first param outermost.
type Grid struct {
	Name     string       `json:"name" yaml:"name"`
	Template formula.Spec `json:"template" yaml:"template"`
	Params   []Param      `json:"params" yaml:"params"`
}

// Size is the number of points, 0 when any axis is empty.
func (g Grid) Size() int {
	if len(g.Params) == 0 {
		return 0
	}
	n := 1
	for _, p := range g.Params {
		if len(p.Values) == 0 {
			return 0
		}
		if n > math.MaxInt/len(p.Values) {
			return math.MaxInt
		}
		n *= len(p.Values)
	}
	return n
}

// Point returns the assignment at ordinal i.
func (g Grid) Point(i int) Point {
	pt := make(Point, len(g.Params))
	for j := len(g.Params) - 1; j >= 0; j-- {
		vals := g.Params[j].Values
		pt[j] = Assignment{Name: g.Params[j].Name, Value: vals[i%len(vals)]}
		i /= len(vals)
	}
	return pt
}

// Validate reports ErrEmptySpace for a grid without points and rejects names
// the template does not have.
func (g Grid) Validate() error {
	if g.Size() == 0 {
		return fmt.Errorf("grid %q: %w", g.Name, ErrEmptySpace)
	}
	seen := make(map[string]bool, len(g.Params))
	for _, p := range g.Params {
		if seen[p.Name] {
			return fmt.Errorf("grid %q: param %q listed twice", g.Name, p.Name)
		}
		seen[p.Name] = true
		if _, err := g.Template.WithParam(p.Name, p.Values[0]); err != nil {
			return fmt.Errorf("grid %q: %w", g.Name, err)
		}
	}
	return nil
}

// #endregion grid

// #region point
// Assignment is one parameter value of a grid point.
type Assignment struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// Point is an ordered set of assignments.
type Point []Assignment

// Apply sets every assignment on a copy of the template.
func (p Point) Apply(template formula.Spec) (formula.Spec, error) {
	s := template.Clone()
	for _, a := range p {
		var err error
		if s, err = s.WithParam(a.Name, a.Value); err != nil {
			return formula.Spec{}, err
		}
	}
	return s, nil
}

// Value returns the value assigned to name.
func (p Point) Value(name string) (float64, bool) {
	for _, a := range p {
		if a.Name == name {
			return a.Value, true
		}
	}
	return 0, false
}

func (p Point) String() string {
	s := "{"
	for i, a := range p {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%g", a.Name, a.Value)
	}
	return s + "}"
}

// #endregion point

// #region state
// Trial is one evaluated grid point. Spec rebuilds the exact candidate.
type Trial struct {
	Grid    string
	Ordinal int
	Point   Point
	Spec    formula.Spec
	Result  eval.EvalResult
}

// State is owned by the caller and threaded through Explore. History holds
// every trial that improved on the best so far, in the order they were found.
type State struct {
	Phase     Phase
	Best      *Trial
	History   []Trial
	Evaluated int
	Rejected  int // grid points whose spec could not be built
}

func (s State) clone() State {
	out := s
	out.History = append([]Trial(nil), s.History...)
	if s.Best != nil {
		b := *s.Best
		out.Best = &b
	}
	return out
}

// Stop marks the search converged. A converged state can no longer explore.
func Stop(s State) State {
	out := s.clone()
	out.Phase = Converged
	return out
}

// #endregion state
