package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// #region main
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "harness",
		Short: "Search for and analyze reimbursement formula candidates",
		Long: `harness scores candidate reimbursement formulas against a labeled dataset,
searches parameter grids for the best one, records every run in a SQLite
ledger, and breaks down where a candidate's residuals come from.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "harness config file (YAML)")
	pf.StringVar(&a.dataset, "dataset", "", "labeled cases file (overrides config)")
	pf.StringVar(&a.ledger, "ledger", "", "SQLite run ledger (overrides config)")
	pf.StringVar(&a.regressor, "regressor", "", "remote regressor address (overrides config)")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	root.AddCommand(
		newEvaluateCmd(a),
		newSearchCmd(a),
		newAnalyzeCmd(a),
		newInspectCmd(a),
		newExportCmd(a),
		newServeModelCmd(a),
	)
	return root
}

// #endregion main
