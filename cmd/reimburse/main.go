package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/config"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
	"github.com/danielpatrickdp/reimburse-harness/internal/replay"
)

// #region main
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configPath string
	specPath   string
	dataset    string
	regressor  string
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "reimburse <trip_duration_days> <miles_traveled> <total_receipts_amount>",
		Short: "Print the reimbursement for one trip",
		Long: `Prices a trip with the candidate named by --spec, or by default with the
fallback chain: exact dataset lookup, the learned model, then the baseline linear fit.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parseInput(args)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			y, err := run(opts, in, slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn})))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formula.FormatDollars(y))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "harness config file (YAML)")
	cmd.Flags().StringVar(&opts.specPath, "spec", "", "candidate spec file (JSON or YAML); default is the fallback chain")
	cmd.Flags().StringVar(&opts.dataset, "dataset", "", "labeled cases used for exact lookup and the ridge fit")
	cmd.Flags().StringVar(&opts.regressor, "regressor", "", "address of a remote regressor service")
	return cmd
}

// #endregion main

// #region run
func run(opts options, in formula.Input, logger *slog.Logger) (float64, error) {
	if err := config.LoadDotenv(); err != nil {
		return 0, err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return 0, err
	}
	if opts.dataset != "" {
		cfg.Dataset = opts.dataset
	}
	if opts.regressor != "" {
		cfg.Model.Addr = opts.regressor
	}

	s, err := replay.Open(cfg, logger)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("dataset not found, pricing without lookup", "path", cfg.Dataset)
		s, err = replay.NewSession(cfg, cases.NewStore(nil), logger), nil
	}
	if err != nil {
		return 0, err
	}
	defer s.Close()

	c, err := s.Candidate(opts.specPath)
	if err != nil {
		return 0, err
	}
	return c.Predict(in)
}

// #endregion run

// #region helpers
func parseInput(args []string) (formula.Input, error) {
	days, err := strconv.Atoi(args[0])
	if err != nil {
		return formula.Input{}, fmt.Errorf("trip_duration_days must be an integer: %q", args[0])
	}
	miles, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return formula.Input{}, fmt.Errorf("miles_traveled must be a number: %q", args[1])
	}
	receipts, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return formula.Input{}, fmt.Errorf("total_receipts_amount must be a number: %q", args[2])
	}
	in := formula.Input{Days: days, Miles: miles, Receipts: receipts}
	if err := in.Validate(); err != nil {
		return formula.Input{}, err
	}
	return in, nil
}

// #endregion helpers
