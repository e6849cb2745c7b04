package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/eval"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
)

// #region driver-config
// DriverConfig bounds the work a single Explore call may do.
type DriverConfig struct {
	Workers        int // concurrent evaluations; 1 evaluates inline
	BatchPerWorker int // points handed to each worker between reductions
	MaxGridSize    int // grids larger than this are refused up front
}

// DefaultDriverConfig uses one worker per CPU.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		Workers:        runtime.NumCPU(),
		BatchPerWorker: 32,
		MaxGridSize:    10_000_000,
	}
}

// Refinement describes follow-up grids centred on the best point.
type Refinement struct {
	Rounds int     // number of narrower grids after the first
	Span   int     // values on each side of the centre
	Shrink float64 // factor applied to the step each round
}

// DefaultRefinement runs two rounds of ±4 steps, each a quarter of the last.
func DefaultRefinement() Refinement {
	return Refinement{Rounds: 2, Span: 4, Shrink: 0.25}
}

// #endregion driver-config

// #region driver
// Observer is told about every trial that becomes the new best.
type Observer func(Trial)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithMetrics records progress into m.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithObserver registers a callback for improvements. It runs on the reducing
// goroutine, in the order improvements are found.
func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observers = append(d.observers, o) }
}

// Driver runs grid searches over one case store. It holds no search state of
// its own; every call takes a State and returns the next one.
type Driver struct {
	config    DriverConfig
	store     *cases.Store
	deps      formula.Deps
	evaluator *eval.Evaluator
	logger    *slog.Logger
	metrics   *Metrics
	observers []Observer
}

// NewDriver creates a driver. deps.Cases defaults to store.
func NewDriver(store *cases.Store, deps formula.Deps, evaluator *eval.Evaluator, config DriverConfig, opts ...Option) *Driver {
	if deps.Cases == nil {
		deps.Cases = store
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.BatchPerWorker < 1 {
		config.BatchPerWorker = 1
	}
	d := &Driver{
		config:    config,
		store:     store,
		deps:      deps,
		evaluator: evaluator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// #endregion driver

// #region explore
type outcome struct {
	trial    Trial
	rejected error
}

// Explore evaluates every point of g and returns the updated state. Points are
// evaluated concurrently in batches; each batch is reduced in grid order, so
// the result is the same for any worker count. A challenger replaces the best
// only when eval.Better says so, which leaves ties with the incumbent.
//
// On cancellation the state reflects every fully reduced batch and the
// context error is returned.
func (d *Driver) Explore(ctx context.Context, st State, g Grid) (State, error) {
	if st.Phase == Converged {
		return st, ErrConverged
	}
	if err := g.Validate(); err != nil {
		return st, err
	}
	size := g.Size()
	if d.config.MaxGridSize > 0 && size > d.config.MaxGridSize {
		return st, fmt.Errorf("grid %q has %d points, limit %d: %w", g.Name, size, d.config.MaxGridSize, ErrGridTooLarge)
	}

	st = st.clone()
	st.Phase = Exploring
	d.logger.Info("exploring grid", "grid", g.Name, "points", size, "workers", d.config.Workers)

	batch := d.config.Workers * d.config.BatchPerWorker
	results := make([]outcome, min(batch, size))
	for start := 0; start < size; start += batch {
		end := min(start+batch, size)
		began := time.Now()
		if err := d.evaluateBatch(ctx, g, start, results[:end-start]); err != nil {
			return st, err
		}
		d.metrics.observeBatch(g.Name, time.Since(began).Seconds())
		d.reduce(&st, g.Name, results[:end-start])
		d.logger.Debug("batch reduced", "grid", g.Name, "done", end, "of", size)
	}

	if st.Best != nil {
		d.logger.Info("grid finished", "grid", g.Name, "evaluated", st.Evaluated,
			"best_exact", st.Best.Result.ExactMatches, "best_mae", st.Best.Result.MeanAbsError)
	}
	return st, nil
}

func (d *Driver) evaluateBatch(ctx context.Context, g Grid, start int, out []outcome) error {
	if d.config.Workers == 1 {
		for i := range out {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = d.evaluatePoint(g, start+i)
		}
		return nil
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(d.config.Workers)
	for i := range out {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = d.evaluatePoint(g, start+i)
			return nil
		})
	}
	return eg.Wait()
}

func (d *Driver) evaluatePoint(g Grid, ordinal int) outcome {
	pt := g.Point(ordinal)
	spec, err := pt.Apply(g.Template)
	if err != nil {
		return outcome{trial: Trial{Grid: g.Name, Ordinal: ordinal, Point: pt}, rejected: err}
	}
	cand, err := spec.Build(d.deps)
	if err != nil {
		return outcome{trial: Trial{Grid: g.Name, Ordinal: ordinal, Point: pt, Spec: spec}, rejected: err}
	}
	return outcome{trial: Trial{
		Grid:    g.Name,
		Ordinal: ordinal,
		Point:   pt,
		Spec:    spec,
		Result:  d.evaluator.Evaluate(cand, d.store),
	}}
}

// reduce applies the ordering in grid order. It is the only place State changes.
func (d *Driver) reduce(st *State, grid string, batch []outcome) {
	for i := range batch {
		o := batch[i]
		batch[i] = outcome{}
		if o.rejected != nil {
			st.Rejected++
			d.metrics.observeRejected(grid)
			d.logger.Debug("grid point rejected", "grid", grid, "point", o.trial.Point.String(), "err", o.rejected)
			continue
		}
		st.Evaluated++
		d.metrics.observeTrial(grid, o.trial.Result)
		if st.Best != nil && !eval.Better(o.trial.Result, st.Best.Result) {
			continue
		}
		best := o.trial
		st.Best = &best
		st.History = append(st.History, best)
		d.metrics.observeBest(grid, best.Result)
		d.logger.Info("new best", "grid", grid, "point", best.Point.String(),
			"exact", best.Result.ExactMatches, "close", best.Result.CloseMatches,
			"mae", best.Result.MeanAbsError, "score", best.Result.Score())
		for _, obs := range d.observers {
			obs(best)
		}
	}
}

// #endregion explore

// #region refine
// Refine builds a narrower grid centred on p. Each axis keeps its original
// spacing times shrink, with span values on each side of the centre. Axes with
// a single value, or whose name p does not assign, are left unchanged.
func Refine(g Grid, p Point, span int, shrink float64) Grid {
	out := Grid{Name: g.Name + "/refine", Template: g.Template.Clone(), Params: make([]Param, len(g.Params))}
	for i, param := range g.Params {
		centre, ok := p.Value(param.Name)
		step := spacing(param.Values) * shrink
		if !ok || step <= 0 || span < 1 {
			out.Params[i] = Param{Name: param.Name, Values: append([]float64(nil), param.Values...)}
			continue
		}
		vals := make([]float64, 0, 2*span+1)
		for k := -span; k <= span; k++ {
			vals = append(vals, centre+float64(k)*step)
		}
		out.Params[i] = Param{Name: param.Name, Values: vals}
	}
	return out
}

// spacing is the smallest positive gap between sorted values.
func spacing(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	gap := math.Inf(1)
	for i := 1; i < len(sorted); i++ {
		if d := sorted[i] - sorted[i-1]; d > 0 && d < gap {
			gap = d
		}
	}
	if math.IsInf(gap, 1) {
		return 0
	}
	return gap
}

// ExploreRefined explores g, then r.Rounds successively narrower grids around
// the best point found so far.
func (d *Driver) ExploreRefined(ctx context.Context, st State, g Grid, r Refinement) (State, error) {
	st, err := d.Explore(ctx, st, g)
	if err != nil {
		return st, err
	}
	current := g
	for round := 1; round <= r.Rounds; round++ {
		if st.Best == nil {
			break
		}
		current = Refine(current, st.Best.Point, r.Span, r.Shrink)
		current.Name = fmt.Sprintf("%s/refine-%d", g.Name, round)
		if st, err = d.Explore(ctx, st, current); err != nil {
			return st, err
		}
	}
	return st, nil
}

// #endregion refine
