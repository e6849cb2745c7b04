package replay

import (
	"io"
	"log/slog"

	"github.com/danielpatrickdp/reimburse-harness/internal/analysis"
	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/config"
	"github.com/danielpatrickdp/reimburse-harness/internal/eval"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
)

// #region types
// Session bundles the dataset, the dependencies candidates are rebuilt with
// and the evaluator. Every harness command starts from one.
type Session struct {
	Config    config.Config
	Store     *cases.Store
	Deps      formula.Deps
	Evaluator *eval.Evaluator

	logger  *slog.Logger
	closers []io.Closer
}

// Report is the quick evaluation of one candidate over the whole dataset.
type Report struct {
	Candidate string
	Cases     int
	Exact     int
	Close     int
	Invalid   int
	ExactPct  float64
	ClosePct  float64
	MAE       float64
	MaxError  float64
	Score     float64
	WorstCase *analysis.Entry
	Top       []analysis.Entry
}

// Verdict grades a report by how many cases matched exactly.
type Verdict string

const (
	VerdictPerfect   Verdict = "perfect"
	VerdictExcellent Verdict = "excellent"
	VerdictGreat     Verdict = "great"
	VerdictGood      Verdict = "good"
	VerdictWeak      Verdict = "weak"
)

// #endregion types
