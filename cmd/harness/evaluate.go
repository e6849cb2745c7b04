package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/reimburse-harness/internal/analysis"
	"github.com/danielpatrickdp/reimburse-harness/internal/eval"
	"github.com/danielpatrickdp/reimburse-harness/internal/replay"
)

// #region evaluate
func newEvaluateCmd(a *app) *cobra.Command {
	var specPath string
	var top int
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score one candidate over the whole dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			defer s.Close()
			return runEvaluate(s, specPath, top, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&specPath, "spec", "", "candidate spec file; default is the fallback chain")
	cmd.Flags().IntVar(&top, "top", 5, "number of highest-error cases to list")
	return cmd
}

func runEvaluate(s *replay.Session, specPath string, top int, w io.Writer) error {
	c, err := s.Candidate(specPath)
	if err != nil {
		return err
	}
	r, err := s.Replay(c, top)
	if err != nil {
		return err
	}
	return r.Write(w)
}

// #endregion evaluate

// #region analyze
func newAnalyzeCmd(a *app) *cobra.Command {
	var specPath, by string
	var width float64
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Break a candidate's residuals down by cohort",
		Long: `analyze evaluates a candidate and groups the cases by trip length, mileage,
receipts, miles per day, residual size or match class, printing per-cohort
error, bias and expected/predicted ratio.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := cohortKey(by, width)
			if err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			defer s.Close()
			c, err := s.Candidate(specPath)
			if err != nil {
				return err
			}
			return runAnalyze(s.Evaluator.Evaluate(c, s.Store), s, key, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&specPath, "spec", "", "candidate spec file; default is the fallback chain")
	cmd.Flags().StringVar(&by, "by", "duration", "duration, mileage, receipts, mpd, residual or class")
	cmd.Flags().Float64Var(&width, "width", 0, "bucket width for mileage, receipts and mpd")
	return cmd
}

func cohortKey(by string, width float64) (analysis.KeyFunc, error) {
	orDefault := func(d float64) float64 {
		if width > 0 {
			return width
		}
		return d
	}
	switch by {
	case "duration":
		return analysis.ByDuration(), nil
	case "mileage":
		return analysis.ByMileage(orDefault(200)), nil
	case "receipts":
		return analysis.ByReceipts(orDefault(500)), nil
	case "mpd":
		return analysis.ByMilesPerDay(orDefault(50)), nil
	case "residual":
		return analysis.ByResidual(analysis.DefaultResidualThresholds...), nil
	case "class":
		return analysis.ByClass(), nil
	}
	return nil, fmt.Errorf("unknown cohort key %q", by)
}

func runAnalyze(res eval.EvalResult, s *replay.Session, key analysis.KeyFunc, w io.Writer) error {
	cohorts, err := analysis.Partition(res, s.Store, key)
	if err != nil {
		return err
	}
	rows := cohorts.Report()
	out := make([][]string, 0, len(rows)+1)
	for _, r := range rows {
		out = append(out, summaryRow(r.Bucket.Label, r.Summary))
	}
	entries, err := analysis.Entries(res, s.Store)
	if err != nil {
		return err
	}
	out = append(out, summaryRow("all", analysis.Summarize(entries)))

	if _, err := fmt.Fprintf(w, "Candidate: %s\n", res.Candidate); err != nil {
		return err
	}
	return renderTable(w, []string{"Cohort", "Cases", "Exact", "Close", "Mean |err|", "Mean bias", "Ratio", "Max |err|"}, out)
}

func summaryRow(label string, sm analysis.Summary) []string {
	return []string{
		label,
		strconv.Itoa(sm.Count),
		strconv.Itoa(sm.Exact),
		strconv.Itoa(sm.Close),
		money(sm.MeanResidual),
		money(sm.MeanBias),
		strconv.FormatFloat(sm.MeanRatio, 'f', 3, 64),
		money(sm.MaxResidual),
	}
}

// #endregion analyze
