package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
	"github.com/danielpatrickdp/reimburse-harness/internal/ledger"
)

// #region inspect
func newInspectCmd(a *app) *cobra.Command {
	var last int
	var runID string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List ledger runs, or the improvements of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()
			if runID != "" {
				return runImprovements(store, runID, cmd.OutOrStdout())
			}
			return runList(store, last, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent runs")
	cmd.Flags().StringVar(&runID, "run", "", "show the improvements of one run")
	return cmd
}

func runList(store *ledger.Store, last int, w io.Writer) error {
	runs, err := store.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs found")
		return err
	}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		status := "open"
		if r.Finished() {
			status = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		row := []string{r.RunID, r.Grid, r.StartedAt.Format("2006-01-02T15:04:05Z"), status,
			strconv.Itoa(r.Evaluated), "-", "-", "-"}
		if r.Best != nil {
			row[5], row[6], row[7] = strconv.Itoa(r.Best.Exact), money(r.Best.MAE), fmt.Sprintf("%.2f", r.Best.Score)
		}
		rows[i] = row
	}
	return renderTable(w, []string{"Run", "Grid", "Started", "Duration", "Evaluated", "Exact", "MAE", "Score"}, rows)
}

func runImprovements(store *ledger.Store, runID string, w io.Writer) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	imps, err := store.Improvements(runID)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Run %s (%s), %d evaluated, %d rejected\n", run.RunID, run.Grid, run.Evaluated, run.Rejected); err != nil {
		return err
	}
	rows := make([][]string, len(imps))
	for i, imp := range imps {
		rows[i] = []string{strconv.Itoa(imp.Seq), imp.Grid, imp.Fingerprint, imp.Point.String(),
			strconv.Itoa(imp.Exact), strconv.Itoa(imp.Close), money(imp.MAE), fmt.Sprintf("%.2f", imp.Score)}
	}
	return renderTable(w, []string{"Seq", "Grid", "Fingerprint", "Point", "Exact", "Close", "MAE", "Score"}, rows)
}

// #endregion inspect

// #region export
func newExportCmd(a *app) *cobra.Command {
	var runID, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the best spec of a run (default: the best run over the dataset) to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()
			var hash string
			if runID == "" {
				data, err := cases.Load(a.cfg.Dataset)
				if err != nil {
					return err
				}
				hash = ledger.DatasetHash(data)
			}
			return runExport(store, runID, hash, out, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "run id; default is the best finished run over the current dataset")
	cmd.Flags().StringVar(&out, "out", "best.json", "destination (.json, .yaml or .yml)")
	return cmd
}

func runExport(store *ledger.Store, runID, datasetHash, out string, w io.Writer) error {
	var run ledger.Run
	var err error
	if runID == "" {
		run, err = store.BestRun(datasetHash)
	} else {
		run, err = store.GetRun(runID)
	}
	if err != nil {
		return err
	}
	if run.Best == nil {
		return errors.New("run " + run.RunID + " has no best candidate")
	}
	if err := formula.SaveSpec(out, run.Best.Spec); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "wrote %s (run %s, %s, %d exact, fingerprint %s)\n",
		out, run.RunID, run.Grid, run.Best.Exact, run.Best.Fingerprint)
	return err
}

// #endregion export
