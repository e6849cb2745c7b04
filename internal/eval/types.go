package eval

// #region eval-config
// EvalConfig holds the residual thresholds used to classify each case.
type EvalConfig struct {
	ExactTolerance float64 // residual at or below this is an exact match
	CloseTolerance float64 // residual at or below this (and above exact) is close
	RoundToCents   bool    // round predictions to cents before taking the residual
}

// DefaultEvalConfig mirrors the external scorer, which compares printed
// two-decimal output against the recorded amounts.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		ExactTolerance: 0.01,
		CloseTolerance: 1.00,
		RoundToCents:   true,
	}
}

// #endregion eval-config

// #region classes
// Class buckets a single residual.
type Class int

const (
	Miss Class = iota
	Close
	Exact
)

func (c Class) String() string {
	switch c {
	case Exact:
		return "exact"
	case Close:
		return "close"
	}
	return "miss"
}

// #endregion classes

// #region eval-metric
// EvalMetric is one named aggregate of an evaluation.
type EvalMetric struct {
	Name  string
	Value float64
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the outcome of scoring one candidate over every case. Slices
// are indexed like the case store.
type EvalResult struct {
	Candidate     string
	Predictions   []float64
	Residuals     []float64
	Classes       []Class
	Invalid       []int // cases whose prediction failed and was replaced by the minimum payout
	MeanAbsError  float64
	ExactMatches  int
	CloseMatches  int
	Misses        int
	MaxError      float64
	MaxErrorIndex int // -1 for an empty store
}

// #endregion eval-result
