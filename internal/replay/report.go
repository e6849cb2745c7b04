package replay

import (
	"fmt"
	"io"

	"github.com/danielpatrickdp/reimburse-harness/internal/analysis"
	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/eval"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
)

// #region report
// NewReport summarizes res, keeping the top worst cases.
func NewReport(res eval.EvalResult, store *cases.Store, top int) (Report, error) {
	worst, err := analysis.Worst(res, store, top)
	if err != nil {
		return Report{}, err
	}
	r := Report{
		Candidate: res.Candidate,
		Cases:     res.Len(),
		Exact:     res.ExactMatches,
		Close:     res.CloseMatches,
		Invalid:   len(res.Invalid),
		ExactPct:  res.ExactRate() * 100,
		ClosePct:  res.CloseRate() * 100,
		MAE:       res.MeanAbsError,
		MaxError:  res.MaxError,
		Score:     res.Score(),
		Top:       worst,
	}
	if res.MaxErrorIndex >= 0 {
		all, err := analysis.Entries(res, store)
		if err != nil {
			return Report{}, err
		}
		e := all[res.MaxErrorIndex]
		r.WorstCase = &e
	}
	return r, nil
}

// Verdict grades the report: every case exact is perfect, then more than 95%,
// 80% and 50% exact.
func (r Report) Verdict() Verdict {
	switch {
	case r.Cases > 0 && r.Exact == r.Cases:
		return VerdictPerfect
	case r.ExactPct > 95:
		return VerdictExcellent
	case r.ExactPct > 80:
		return VerdictGreat
	case r.ExactPct > 50:
		return VerdictGood
	}
	return VerdictWeak
}

// Write prints the report in plain text.
func (r Report) Write(w io.Writer) error {
	p := &printer{w: w}
	p.printf("Candidate: %s\n", r.Candidate)
	p.printf("  Total cases: %d\n", r.Cases)
	p.printf("  Exact matches (±$0.01): %d (%.1f%%)\n", r.Exact, r.ExactPct)
	p.printf("  Close matches (±$1.00): %d (%.1f%%)\n", r.Close, r.ClosePct)
	if r.Invalid > 0 {
		p.printf("  Failed predictions: %d\n", r.Invalid)
	}
	p.printf("  Average error: $%s\n", formula.FormatDollars(r.MAE))
	p.printf("  Maximum error: $%s\n", formula.FormatDollars(r.MaxError))
	if r.WorstCase != nil {
		p.printf("  Worst case: %s\n", describe(r.WorstCase.Case))
	}
	p.printf("\nScore: %.2f (lower is better), verdict: %s\n", r.Score, r.Verdict())

	if len(r.Top) > 0 {
		p.printf("\nTop %d highest error cases:\n", len(r.Top))
		for _, e := range r.Top {
			p.printf("  %s\n", describe(e.Case))
			p.printf("    Expected: $%s, Got: $%s, Error: $%s\n",
				formula.FormatDollars(e.Case.Expected), formula.FormatDollars(e.Predicted), formula.FormatDollars(e.Residual))
		}
	}
	return p.err
}

func describe(c cases.Case) string {
	return fmt.Sprintf("Case %d: %dd, %.0fmi, $%.2f", c.Index+1, c.Days, c.Miles, c.Receipts)
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// #endregion report
