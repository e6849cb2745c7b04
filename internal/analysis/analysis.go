package analysis

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/eval"
)

// #region partition
// Partition groups every case of an evaluation by key. It has no effect on the
// evaluation or the candidate.
func Partition(res eval.EvalResult, store *cases.Store, key KeyFunc) (Cohorts, error) {
	entries, err := Entries(res, store)
	if err != nil {
		return nil, err
	}
	out := make(Cohorts)
	for _, e := range entries {
		b := key(e)
		out[b] = append(out[b], e)
	}
	return out, nil
}

// Entries pairs each case with its prediction and residual, in store order.
func Entries(res eval.EvalResult, store *cases.Store) ([]Entry, error) {
	if res.Len() != store.Len() || len(res.Predictions) != store.Len() {
		return nil, fmt.Errorf("%w: %d residuals for %d cases", ErrMismatch, res.Len(), store.Len())
	}
	out := make([]Entry, 0, store.Len())
	for i, c := range store.All() {
		e := Entry{Case: c, Predicted: res.Predictions[i], Residual: res.Residuals[i]}
		if i < len(res.Classes) {
			e.Class = res.Classes[i]
		}
		out = append(out, e)
	}
	return out, nil
}

// Keys returns the buckets ordered by Lower, then Label.
func (c Cohorts) Keys() []Bucket {
	keys := make([]Bucket, 0, len(c))
	for b := range c {
		keys = append(keys, b)
	}
	slices.SortFunc(keys, func(a, b Bucket) int {
		if n := cmp.Compare(a.Lower, b.Lower); n != 0 {
			return n
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return keys
}

// Report summarizes every cohort in key order.
func (c Cohorts) Report() []Row {
	keys := c.Keys()
	rows := make([]Row, len(keys))
	for i, b := range keys {
		rows[i] = Row{Bucket: b, Summary: Summarize(c[b])}
	}
	return rows
}

// #endregion partition

// #region summarize
// Summarize aggregates a cohort. An empty cohort yields the zero Summary.
func Summarize(entries []Entry) Summary {
	var s Summary
	var ratioSum float64
	var ratioN int
	for _, e := range entries {
		s.Count++
		s.MeanResidual += e.Residual
		s.MeanBias += e.Case.Expected - e.Predicted
		s.MaxResidual = math.Max(s.MaxResidual, e.Residual)
		if e.Predicted != 0 {
			ratioSum += e.Case.Expected / e.Predicted
			ratioN++
		}
		switch e.Class {
		case eval.Exact:
			s.Exact++
		case eval.Close:
			s.Close++
		}
	}
	if s.Count > 0 {
		s.MeanResidual /= float64(s.Count)
		s.MeanBias /= float64(s.Count)
	}
	if ratioN > 0 {
		s.MeanRatio = ratioSum / float64(ratioN)
	}
	return s
}

// Worst returns the n cases with the largest residuals, largest first. Equal
// residuals keep store order.
func Worst(res eval.EvalResult, store *cases.Store, n int) ([]Entry, error) {
	entries, err := Entries(res, store)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return cmp.Compare(b.Residual, a.Residual)
	})
	if n < len(entries) {
		entries = entries[:max(n, 0)]
	}
	return entries, nil
}

// #endregion summarize

// #region keys
// ByDuration buckets by trip length in days.
func ByDuration() KeyFunc {
	return func(e Entry) Bucket {
		d := e.Case.Days
		unit := "days"
		if d == 1 {
			unit = "day"
		}
		return Bucket{Label: fmt.Sprintf("%d %s", d, unit), Lower: float64(d)}
	}
}

// ByMileage buckets miles into [k·width, (k+1)·width).
func ByMileage(width float64) KeyFunc {
	return func(e Entry) Bucket { return band(e.Case.Miles, width, "mi") }
}

// ByReceipts buckets receipt totals into [k·width, (k+1)·width).
func ByReceipts(width float64) KeyFunc {
	return func(e Entry) Bucket { return band(e.Case.Receipts, width, "$") }
}

// ByMilesPerDay buckets the travel efficiency ratio. Zero-day trips land in the first bucket.
func ByMilesPerDay(width float64) KeyFunc {
	return func(e Entry) Bucket {
		mpd := 0.0
		if e.Case.Days > 0 {
			mpd = e.Case.Miles / float64(e.Case.Days)
		}
		return band(mpd, width, "mi/day")
	}
}

// DefaultResidualThresholds separate exact, close, moderate and large errors.
var DefaultResidualThresholds = []float64{0.01, 1, 10, 100}

// ByResidual buckets by error magnitude: residual ≤ t₀, t₀ < residual ≤ t₁, …,
// and above the last threshold. With no thresholds DefaultResidualThresholds is used.
// Thresholds carry the same eval.ToleranceSlack as classification, so a case
// classed exact always lands in the first bucket.
func ByResidual(thresholds ...float64) KeyFunc {
	if len(thresholds) == 0 {
		thresholds = DefaultResidualThresholds
	}
	ts := slices.Clone(thresholds)
	slices.Sort(ts)
	return func(e Entry) Bucket {
		for i, t := range ts {
			if e.Residual <= t+eval.ToleranceSlack {
				if i == 0 {
					return Bucket{Label: fmt.Sprintf("≤%g", t), Lower: 0}
				}
				return Bucket{Label: fmt.Sprintf("%g–%g", ts[i-1], t), Lower: ts[i-1]}
			}
		}
		last := ts[len(ts)-1]
		return Bucket{Label: fmt.Sprintf(">%g", last), Lower: last}
	}
}

// ByClass buckets by exact / close / miss.
func ByClass() KeyFunc {
	return func(e Entry) Bucket {
		return Bucket{Label: e.Class.String(), Lower: -float64(e.Class)}
	}
}

func band(x, width float64, unit string) Bucket {
	if !(width > 0) {
		return Bucket{Label: "all", Lower: 0}
	}
	lo := math.Floor(x/width) * width
	return Bucket{Label: fmt.Sprintf("%g–%g %s", lo, lo+width, unit), Lower: lo}
}

// #endregion keys
