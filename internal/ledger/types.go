package ledger

import (
	"time"

	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
	"github.com/danielpatrickdp/reimburse-harness/internal/search"
)

// #region run
// Run is one search session: a grid (and its refinements) explored over one dataset.
type Run struct {
	RunID       string
	Grid        string
	DatasetHash string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while the run is open
	Evaluated   int
	Rejected    int
	Best        *Best // nil until the run finishes with a best trial
}

// Finished reports whether FinishRun has been recorded.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Best is the retained winner of a run. Spec rebuilds the candidate exactly.
type Best struct {
	Fingerprint string
	Spec        formula.Spec
	Point       search.Point
	Exact       int
	Close       int
	MAE         float64
	Score       float64
	Residuals   []float64
}

// #endregion run

// #region improvement
// Improvement is one row of the improvements table: a trial that became the
// best of its run at the time it was found.
type Improvement struct {
	ID          int64
	RunID       string
	Seq         int
	Grid        string
	Fingerprint string
	Point       search.Point
	Spec        formula.Spec
	Exact       int
	Close       int
	MAE         float64
	Score       float64
	CreatedAt   time.Time
}

// #endregion improvement
