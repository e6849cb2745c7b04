package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/reimburse-harness/internal/eval"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
	"github.com/danielpatrickdp/reimburse-harness/internal/ledger"
	"github.com/danielpatrickdp/reimburse-harness/internal/replay"
	"github.com/danielpatrickdp/reimburse-harness/internal/search"
)

// #region search
type searchOptions struct {
	grids       []string
	noRefine    bool
	metricsFile string
	saveBest    string
}

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Explore parameter grids and record every run in the ledger",
		Long: `search explores each configured grid (or the built-in grids), then narrower
grids around the best point, and records each grid as a ledger run with every
improvement it found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			defer s.Close()
			store, err := a.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()
			return runSearch(cmd.Context(), a, s, store, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVar(&opts.grids, "grid", nil, "only search the named grids")
	cmd.Flags().BoolVar(&opts.noRefine, "no-refine", false, "skip refinement rounds")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write search metrics in Prometheus text format")
	cmd.Flags().StringVar(&opts.saveBest, "save-best", "", "write the best spec found to this file")
	return cmd
}

func runSearch(ctx context.Context, a *app, s *replay.Session, store *ledger.Store, opts searchOptions, w io.Writer) error {
	grids, err := selectGrids(a, opts.grids)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	metrics := search.NewMetrics(reg)
	hash := ledger.DatasetHash(s.Store)

	var best *search.Trial
	var rows [][]string
	for _, g := range grids {
		st, runID, err := searchGrid(ctx, a, s, store, metrics, hash, g, opts.noRefine)
		if err != nil {
			return err
		}
		row := []string{g.Name, runID[:8], strconv.Itoa(st.Evaluated), strconv.Itoa(st.Rejected), "-", "-", "-"}
		if st.Best != nil {
			r := st.Best.Result
			row[4], row[5], row[6] = strconv.Itoa(r.ExactMatches), money(r.MeanAbsError), fmt.Sprintf("%.2f", r.Score())
			if best == nil || eval.Better(r, best.Result) {
				b := *st.Best
				best = &b
			}
		}
		rows = append(rows, row)
	}

	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if err := renderTable(w, []string{"Grid", "Run", "Evaluated", "Rejected", "Exact", "MAE", "Score"}, rows); err != nil {
		return err
	}
	if best == nil {
		_, err := fmt.Fprintln(w, "no candidate evaluated")
		return err
	}
	if _, err := fmt.Fprintf(w, "Best: %s %s\n", best.Grid, best.Point); err != nil {
		return err
	}
	if opts.saveBest != "" {
		return formula.SaveSpec(opts.saveBest, best.Spec)
	}
	return nil
}

// searchGrid runs one grid as one ledger run. The run is finished even when
// the search stops early, so partial progress stays on record.
func searchGrid(ctx context.Context, a *app, s *replay.Session, store *ledger.Store, metrics *search.Metrics,
	hash string, g search.Grid, noRefine bool) (search.State, string, error) {
	run, err := store.BeginRun(g.Name, hash)
	if err != nil {
		return search.State{}, "", err
	}
	rec := store.NewRecorder(run.RunID)
	d := search.NewDriver(s.Store, s.Deps, s.Evaluator, a.cfg.DriverConfig(),
		search.WithLogger(a.logger.With("run_id", run.RunID)),
		search.WithMetrics(metrics),
		search.WithObserver(rec.Observe),
	)

	var st search.State
	if noRefine {
		st, err = d.Explore(ctx, st, g)
	} else {
		st, err = d.ExploreRefined(ctx, st, g, a.cfg.Refinement())
	}
	st = search.Stop(st)
	if ferr := store.FinishRun(run.RunID, st); ferr != nil {
		err = errors.Join(err, ferr)
	}
	if rerr := rec.Err(); rerr != nil {
		err = errors.Join(err, rerr)
	}
	if err != nil {
		return st, run.RunID, fmt.Errorf("grid %s: %w", g.Name, err)
	}
	return st, run.RunID, nil
}

func selectGrids(a *app, names []string) ([]search.Grid, error) {
	all, err := a.cfg.SearchGrids()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return all, nil
	}
	var out []search.Grid
	for _, n := range names {
		i := slices.IndexFunc(all, func(g search.Grid) bool { return g.Name == n })
		if i < 0 {
			return nil, fmt.Errorf("unknown grid %q", n)
		}
		out = append(out, all[i])
	}
	return out, nil
}

// #endregion search
