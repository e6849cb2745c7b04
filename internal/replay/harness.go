package replay

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/config"
	"github.com/danielpatrickdp/reimburse-harness/internal/eval"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
	"github.com/danielpatrickdp/reimburse-harness/internal/model"
)

// #region session
// Open loads the dataset named by cfg and wires the configured regressor: a
// remote one when cfg.Model.Addr is set, otherwise a ridge fit over the dataset.
func Open(cfg config.Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, err := cases.Load(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded", "path", cfg.Dataset, "cases", store.Len(), "duplicate_groups", len(store.Duplicates()))

	s := NewSession(cfg, store, logger)
	if cfg.Model.Addr != "" {
		remote, err := model.NewRemote(cfg.Model.Addr)
		if err != nil {
			return nil, err
		}
		s.Register(cfg.Model.Name, remote, remote)
		logger.Info("remote regressor", "name", cfg.Model.Name, "addr", cfg.Model.Addr)
		return s, nil
	}

	fit, err := model.FitStore(store, cfg.Model.RidgeLambda)
	if err != nil && !errors.Is(err, model.ErrNoData) {
		return nil, fmt.Errorf("fit %s: %w", cfg.Model.Name, err)
	}
	if fit != nil {
		s.Register(cfg.Model.Name, fit, nil)
		logger.Info("ridge regressor fitted", "name", cfg.Model.Name, "lambda", cfg.Model.RidgeLambda)
	}
	return s, nil
}

// NewSession builds a session over an already loaded store with no regressors.
func NewSession(cfg config.Config, store *cases.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		Config:    cfg,
		Store:     store,
		Deps:      formula.Deps{Cases: store, Regressors: map[string]formula.Regressor{}},
		Evaluator: eval.NewEvaluator(cfg.EvalConfig()),
		logger:    logger,
	}
}

// Register makes a regressor available to learned strategies under name.
// closer, when non-nil, is closed with the session.
func (s *Session) Register(name string, reg formula.Regressor, closer io.Closer) {
	s.Deps.Regressors[name] = reg
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
}

// Close releases remote connections.
func (s *Session) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// #endregion session

// #region candidate
// Spec loads the candidate spec at path, or the default fallback chain over the
// configured model when path is empty.
func (s *Session) Spec(path string) (formula.Spec, error) {
	if path != "" {
		return formula.LoadSpec(path)
	}
	return withModelTimeout(formula.DefaultChainSpec(s.Config.Model.Name), s.Config.Model.TimeoutMillis), nil
}

// Candidate builds the candidate described by Spec(path).
func (s *Session) Candidate(path string) (formula.Candidate, error) {
	spec, err := s.Spec(path)
	if err != nil {
		return nil, err
	}
	return spec.Build(s.Deps)
}

// withModelTimeout sets the timeout of every learned strategy that has none.
func withModelTimeout(spec formula.Spec, ms int) formula.Spec {
	if ms <= 0 {
		return spec
	}
	switch {
	case spec.Learned != nil:
		if spec.Learned.TimeoutMillis == 0 {
			spec.Learned.TimeoutMillis = ms
		}
	case spec.Lookup != nil && spec.Lookup.Fallback != nil:
		fb := withModelTimeout(*spec.Lookup.Fallback, ms)
		spec.Lookup.Fallback = &fb
	case spec.Chain != nil:
		for i, st := range spec.Chain.Strategies {
			spec.Chain.Strategies[i] = withModelTimeout(st, ms)
		}
	}
	return spec
}

// #endregion candidate

// #region replay
// Replay evaluates c over every case and reports the top worst cases.
func (s *Session) Replay(c formula.Candidate, top int) (Report, error) {
	res := s.Evaluator.Evaluate(c, s.Store)
	if len(res.Invalid) > 0 {
		s.logger.Warn("predictions failed", "candidate", c.Name(), "count", len(res.Invalid))
	}
	return NewReport(res, s.Store, top)
}

// #endregion replay
