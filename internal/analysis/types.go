package analysis

import (
	"errors"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/eval"
)

// ErrMismatch is returned when an evaluation was not produced over the given store.
var ErrMismatch = errors.New("evaluation does not match case store")

// #region entry
// Entry is one case with the prediction and residual it received.
type Entry struct {
	Case      cases.Case
	Predicted float64
	Residual  float64
	Class     eval.Class
}

// Bucket names a cohort. Lower orders cohorts for display.
type Bucket struct {
	Label string
	Lower float64
}

// KeyFunc assigns an entry to a cohort.
type KeyFunc func(Entry) Bucket

// Cohorts maps each bucket to its entries in store order.
type Cohorts map[Bucket][]Entry

// Summary aggregates one cohort.
type Summary struct {
	Count        int
	MeanResidual float64
	MeanBias     float64 // mean of expected − predicted; positive means the candidate underpays
	MeanRatio    float64 // mean of expected / predicted over entries with a non-zero prediction
	MaxResidual  float64
	Exact        int
	Close        int
}

// Row pairs a bucket with its summary.
type Row struct {
	Bucket  Bucket
	Summary Summary
}

// #endregion entry
