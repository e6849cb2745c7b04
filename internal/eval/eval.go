package eval

import (
	"math"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
)

// ToleranceSlack lets residuals a hair above a tolerance still count as inside it.
const ToleranceSlack = 1e-9

// #region evaluator
// Evaluator scores candidates against the full case store.
type Evaluator struct {
	config EvalConfig
}

// NewEvaluator creates an evaluator with the given configuration.
func NewEvaluator(config EvalConfig) *Evaluator {
	return &Evaluator{config: config}
}

// Config returns the evaluator's thresholds.
func (e *Evaluator) Config() EvalConfig {
	return e.config
}

// Evaluate predicts every case in store order. A prediction that fails is
// replaced by the minimum payout and its index recorded in Invalid; the run
// always covers every case.
func (e *Evaluator) Evaluate(c formula.Candidate, store *cases.Store) EvalResult {
	n := store.Len()
	res := EvalResult{
		Candidate:     c.Name(),
		Predictions:   make([]float64, n),
		Residuals:     make([]float64, n),
		Classes:       make([]Class, n),
		MaxErrorIndex: -1,
	}

	var sum float64
	for i, cs := range store.All() {
		y, err := c.Predict(formula.InputOf(cs))
		if err != nil {
			y = formula.MinimumPayout
			res.Invalid = append(res.Invalid, i)
		}
		if e.config.RoundToCents {
			y = formula.RoundCents(y)
		}
		r := abs(cs.Expected - y)

		res.Predictions[i] = y
		res.Residuals[i] = r
		res.Classes[i] = e.Classify(r)
		switch res.Classes[i] {
		case Exact:
			res.ExactMatches++
		case Close:
			res.CloseMatches++
		default:
			res.Misses++
		}
		if res.MaxErrorIndex < 0 || r > res.MaxError {
			res.MaxError = r
			res.MaxErrorIndex = i
		}
		sum += r
	}
	if n > 0 {
		res.MeanAbsError = sum / float64(n)
	}
	return res
}

// Classify buckets one residual under the configured tolerances.
func (e *Evaluator) Classify(residual float64) Class {
	switch {
	case residual <= e.config.ExactTolerance+ToleranceSlack:
		return Exact
	case residual <= e.config.CloseTolerance+ToleranceSlack:
		return Close
	}
	return Miss
}

// #endregion evaluator

// #region ordering
// Score is the external objective: MAE×100 plus 0.1 per non-exact case. Lower is better.
func (r EvalResult) Score() float64 {
	return r.MeanAbsError*100 + float64(r.Len()-r.ExactMatches)*0.1
}

// Better reports whether a beats b: more exact matches first, then lower mean
// absolute error. Equal results are not better, so an incumbent keeps its place.
// A NaN mean absolute error ranks below any number.
func Better(a, b EvalResult) bool {
	if a.ExactMatches != b.ExactMatches {
		return a.ExactMatches > b.ExactMatches
	}
	if math.IsNaN(b.MeanAbsError) {
		return !math.IsNaN(a.MeanAbsError)
	}
	return a.MeanAbsError < b.MeanAbsError
}

// #endregion ordering

// #region accessors
// Len is the number of evaluated cases.
func (r EvalResult) Len() int {
	return len(r.Residuals)
}

// ExactRate is the share of exact matches, 0 for an empty run.
func (r EvalResult) ExactRate() float64 {
	return rate(r.ExactMatches, r.Len())
}

// CloseRate is the share of close matches, 0 for an empty run.
func (r EvalResult) CloseRate() float64 {
	return rate(r.CloseMatches, r.Len())
}

// Metrics lists the aggregates for reporting.
func (r EvalResult) Metrics() []EvalMetric {
	return []EvalMetric{
		{Name: "cases", Value: float64(r.Len())},
		{Name: "exact_matches", Value: float64(r.ExactMatches)},
		{Name: "close_matches", Value: float64(r.CloseMatches)},
		{Name: "misses", Value: float64(r.Misses)},
		{Name: "invalid_predictions", Value: float64(len(r.Invalid))},
		{Name: "mean_abs_error", Value: r.MeanAbsError},
		{Name: "max_error", Value: r.MaxError},
		{Name: "score", Value: r.Score()},
	}
}

// #endregion accessors

// #region helpers
func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func rate(k, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(k) / float64(n)
}

// #endregion helpers
