package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/danielpatrickdp/reimburse-harness/internal/config"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
	"github.com/danielpatrickdp/reimburse-harness/internal/ledger"
	"github.com/danielpatrickdp/reimburse-harness/internal/replay"
)

// #region app
// app carries the loaded configuration shared by every subcommand.
type app struct {
	configPath string
	dataset    string
	ledger     string
	regressor  string
	logLevel   string

	cfg    config.Config
	logger *slog.Logger
}

func (a *app) load(logOut io.Writer) error {
	if err := config.LoadDotenv(); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dataset != "" {
		cfg.Dataset = a.dataset
	}
	if a.ledger != "" {
		cfg.Ledger = a.ledger
	}
	if a.regressor != "" {
		cfg.Model.Addr = a.regressor
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.Logger(logOut)
	return nil
}

func (a *app) session() (*replay.Session, error) {
	return replay.Open(a.cfg, a.logger)
}

func (a *app) openLedger() (*ledger.Store, error) {
	if a.cfg.Ledger == "" {
		return nil, fmt.Errorf("no ledger configured")
	}
	return ledger.NewStore(a.cfg.Ledger)
}

// #endregion app

// #region render
var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func money(x float64) string {
	return formula.FormatDollars(x)
}

// #endregion render
