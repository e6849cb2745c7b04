package search

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/eval"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
)

// #region helpers
var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// linearStore labels trips with 100/day + 0.5/mile + 0.3 of receipts.
func linearStore(t *testing.T) *cases.Store {
	t.Helper()
	truth, err := formula.NewLinear(formula.LinearSpec{Days: 100, Miles: 0.5, Receipts: 0.3})
	require.NoError(t, err)
	var cs []cases.Case
	for d := 1; d <= 8; d++ {
		for _, m := range []float64{12, 150, 480.5} {
			for _, r := range []float64{0, 33.3, 912.76} {
				y, err := truth.Predict(formula.Input{Days: d, Miles: m, Receipts: r})
				require.NoError(t, err)
				cs = append(cs, cases.Case{Days: d, Miles: m, Receipts: r, Expected: formula.RoundCents(y)})
			}
		}
	}
	return cases.NewStore(cs)
}

func linearGrid() Grid {
	return Grid{
		Name:     "linear",
		Template: formula.Spec{Kind: formula.KindLinear, Linear: &formula.LinearSpec{}},
		Params: []Param{
			Span("days", 80, 120, 10),
			Fixed("miles", 0.4, 0.5, 0.6),
			Fixed("receipts", 0.2, 0.3, 0.4),
		},
	}
}

func newDriver(t *testing.T, store *cases.Store, workers, perWorker int, opts ...Option) *Driver {
	t.Helper()
	cfg := DefaultDriverConfig()
	cfg.Workers = workers
	cfg.BatchPerWorker = perWorker
	opts = append([]Option{WithLogger(quiet)}, opts...)
	return NewDriver(store, formula.Deps{}, eval.NewEvaluator(eval.DefaultEvalConfig()), cfg, opts...)
}

// #endregion helpers

// #region grid
func TestRange_Values(t *testing.T) {
	v := Range{From: 0, To: 1, Step: 0.1}.Values()
	require.Len(t, v, 11)
	assert.Equal(t, 0.0, v[0])
	assert.InDelta(t, 1.0, v[10], 1e-12)

	assert.Equal(t, []float64{5}, Range{From: 5, To: 5, Step: 1}.Values())
	assert.Nil(t, Range{From: 0, To: 1, Step: 0}.Values())
	assert.Nil(t, Range{From: 2, To: 1, Step: 1}.Values())
}

func TestRange_CountWithoutExpanding(t *testing.T) {
	assert.Equal(t, 11.0, Range{From: 0, To: 1, Step: 0.1}.Count())
	assert.Zero(t, Range{From: 2, To: 1, Step: 1}.Count())
	assert.Zero(t, Range{From: math.NaN(), To: 1, Step: 1}.Count())

	huge := Range{From: 0, To: 1e12, Step: 1e-6}
	assert.Greater(t, huge.Count(), float64(MaxRangeLen))
	assert.Nil(t, huge.Values())

	overflow := Range{From: -1e308, To: 1e308, Step: 1e-300}
	assert.True(t, math.IsInf(overflow.Count(), 1))
	assert.Nil(t, overflow.Values())
}

func TestGrid_PointOrder(t *testing.T) {
	g := Grid{Params: []Param{Fixed("a", 1, 2), Fixed("b", 10, 20, 30)}}
	require.Equal(t, 6, g.Size())
	assert.Equal(t, Point{{"a", 1}, {"b", 10}}, g.Point(0))
	assert.Equal(t, Point{{"a", 1}, {"b", 20}}, g.Point(1))
	assert.Equal(t, Point{{"a", 2}, {"b", 10}}, g.Point(3))
	assert.Equal(t, Point{{"a", 2}, {"b", 30}}, g.Point(5))
}

func TestExplore_EmptySpaceFailsFirst(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	d := newDriver(t, linearStore(t), 2, 1, WithMetrics(m))

	for _, g := range []Grid{
		{Name: "none", Template: linearGrid().Template},
		{Name: "hollow", Template: linearGrid().Template, Params: []Param{Fixed("days", 1), Span("miles", 1, 0, 1)}},
	} {
		st, err := d.Explore(context.Background(), State{}, g)
		assert.ErrorIs(t, err, ErrEmptySpace, g.Name)
		assert.Equal(t, Idle, st.Phase)
		assert.Zero(t, st.Evaluated)
	}
	assert.Zero(t, testutil.CollectAndCount(m.CandidatesEvaluated))
}

func TestExplore_UnknownParamFailsFirst(t *testing.T) {
	g := linearGrid()
	g.Params = append(g.Params, Fixed("slope", 1))
	_, err := newDriver(t, linearStore(t), 1, 1).Explore(context.Background(), State{}, g)
	assert.ErrorIs(t, err, formula.ErrUnknownParam)

	g = linearGrid()
	g.Params = append(g.Params, Fixed("days", 1))
	_, err = newDriver(t, linearStore(t), 1, 1).Explore(context.Background(), State{}, g)
	assert.Error(t, err)
}

func TestExplore_TooLarge(t *testing.T) {
	d := newDriver(t, linearStore(t), 1, 1)
	d.config.MaxGridSize = 10
	_, err := d.Explore(context.Background(), State{}, linearGrid())
	assert.ErrorIs(t, err, ErrGridTooLarge)
}

// #endregion grid

// #region explore
func TestExplore_FindsGeneratingCoefficients(t *testing.T) {
	store := linearStore(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	var seen []Trial
	d := newDriver(t, store, 4, 2, WithMetrics(m), WithObserver(func(tr Trial) { seen = append(seen, tr) }))

	st, err := d.Explore(context.Background(), State{}, linearGrid())
	require.NoError(t, err)

	assert.Equal(t, Exploring, st.Phase)
	assert.Equal(t, 45, st.Evaluated)
	require.NotNil(t, st.Best)
	assert.Equal(t, store.Len(), st.Best.Result.ExactMatches)
	assert.Equal(t, Point{{"days", 100}, {"miles", 0.5}, {"receipts", 0.3}}, st.Best.Point)

	// The retained spec rebuilds the winning candidate.
	cand, err := st.Best.Spec.Build(formula.Deps{})
	require.NoError(t, err)
	again := eval.NewEvaluator(eval.DefaultEvalConfig()).Evaluate(cand, store)
	assert.Equal(t, st.Best.Result, again)

	assert.Equal(t, st.History, seen)
	assert.Equal(t, 45.0, testutil.ToFloat64(m.CandidatesEvaluated.WithLabelValues("linear")))
	assert.Equal(t, float64(store.Len()), testutil.ToFloat64(m.BestExactMatches.WithLabelValues("linear")))
	assert.Equal(t, float64(len(st.History)), testutil.ToFloat64(m.Improvements.WithLabelValues("linear")))
}

func TestExplore_HistoryOnlyImproves(t *testing.T) {
	st, err := newDriver(t, linearStore(t), 3, 1).Explore(context.Background(), State{}, linearGrid())
	require.NoError(t, err)
	require.NotEmpty(t, st.History)
	for i := 1; i < len(st.History); i++ {
		assert.True(t, eval.Better(st.History[i].Result, st.History[i-1].Result), "history entry %d", i)
		assert.Greater(t, st.History[i].Ordinal, st.History[i-1].Ordinal)
	}
	assert.Equal(t, st.History[len(st.History)-1], *st.Best)
}

func TestExplore_SameResultForAnyWorkerCount(t *testing.T) {
	store := linearStore(t)
	serial, err := newDriver(t, store, 1, 1).Explore(context.Background(), State{}, linearGrid())
	require.NoError(t, err)

	for _, workers := range []int{2, 5, 16} {
		par, err := newDriver(t, store, workers, 3).Explore(context.Background(), State{}, linearGrid())
		require.NoError(t, err)
		assert.Equal(t, serial.Best.Point, par.Best.Point, "workers=%d", workers)
		require.Len(t, par.History, len(serial.History))
		for i := range serial.History {
			assert.Equal(t, serial.History[i].Ordinal, par.History[i].Ordinal)
		}
	}
}

func TestExplore_TiesKeepIncumbent(t *testing.T) {
	g := Grid{
		Name:     "flat",
		Template: formula.Spec{Kind: formula.KindLinear, Linear: &formula.LinearSpec{}},
		Params:   []Param{Fixed("intercept", -1000, -2000, -3000)},
	}
	st, err := newDriver(t, linearStore(t), 2, 1).Explore(context.Background(), State{}, g)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Evaluated)
	require.Len(t, st.History, 1)
	assert.Equal(t, 0, st.Best.Ordinal)
}

func TestExplore_CarriesStateAcrossCalls(t *testing.T) {
	d := newDriver(t, linearStore(t), 2, 2)
	in := State{}
	first, err := d.Explore(context.Background(), in, Grid{
		Name:     "coarse",
		Template: linearGrid().Template,
		Params:   []Param{Fixed("days", 90), Fixed("miles", 0.5), Fixed("receipts", 0.3)},
	})
	require.NoError(t, err)
	assert.Equal(t, Idle, in.Phase, "caller's state is not mutated")

	second, err := d.Explore(context.Background(), first, linearGrid())
	require.NoError(t, err)
	assert.Equal(t, 46, second.Evaluated)
	assert.Equal(t, "linear", second.Best.Grid)
	assert.Len(t, first.History, 1)

	// A worse grid leaves the best alone.
	third, err := d.Explore(context.Background(), second, Grid{
		Name:     "worse",
		Template: linearGrid().Template,
		Params:   []Param{Fixed("days", 10)},
	})
	require.NoError(t, err)
	assert.Equal(t, second.Best, third.Best)
	assert.Equal(t, 47, third.Evaluated)
}

func TestExplore_RejectsUnbuildablePoints(t *testing.T) {
	g := Grid{
		Name: "tiers",
		Template: formula.Spec{Kind: formula.KindTiered, Tiered: &formula.TieredSpec{
			DayRate: 100, MileRate: 0.5, Bands: []formula.Band{{Width: 100, Rate: 0.3}}, TailRate: 0.3,
		}},
		Params: []Param{Fixed("bands[0].width", 0, 100, -5)},
	}
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	st, err := newDriver(t, linearStore(t), 2, 1, WithMetrics(m)).Explore(context.Background(), State{}, g)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Rejected)
	assert.Equal(t, 1, st.Evaluated)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CandidatesRejected.WithLabelValues("tiers")))
}

func TestExplore_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, workers := range []int{1, 4} {
		st, err := newDriver(t, linearStore(t), workers, 1).Explore(ctx, State{}, linearGrid())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, st.Evaluated)
		assert.Nil(t, st.Best)
	}
}

// #endregion explore

// #region lifecycle
func TestStop_Converges(t *testing.T) {
	d := newDriver(t, linearStore(t), 1, 4)
	st, err := d.Explore(context.Background(), State{}, linearGrid())
	require.NoError(t, err)

	done := Stop(st)
	assert.Equal(t, Converged, done.Phase)
	assert.Equal(t, Exploring, st.Phase)
	assert.Equal(t, st.Best, done.Best)

	again, err := d.Explore(context.Background(), done, linearGrid())
	assert.ErrorIs(t, err, ErrConverged)
	assert.Equal(t, done.Evaluated, again.Evaluated)

	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "converged", Converged.String())
}

// #endregion lifecycle

// #region refine
func TestRefine(t *testing.T) {
	g := Grid{Name: "g", Params: []Param{Fixed("a", 0, 10, 20), Fixed("b", 3), Fixed("c", 1, 2)}}
	r := Refine(g, Point{{"a", 10}, {"b", 3}}, 2, 0.5)
	assert.Equal(t, "g/refine", r.Name)
	assert.Equal(t, []float64{0, 5, 10, 15, 20}, r.Params[0].Values)
	assert.Equal(t, []float64{3}, r.Params[1].Values)
	assert.Equal(t, []float64{1, 2}, r.Params[2].Values, "unassigned axis kept")
}

func TestExploreRefined_NarrowsAroundBest(t *testing.T) {
	store := linearStore(t)
	g := Grid{
		Name:     "coarse",
		Template: linearGrid().Template,
		Params:   []Param{Fixed("days", 80, 120), Fixed("miles", 0.5), Fixed("receipts", 0.3)},
	}
	d := newDriver(t, store, 2, 2)
	st, err := d.ExploreRefined(context.Background(), State{}, g, Refinement{Rounds: 2, Span: 4, Shrink: 0.25})
	require.NoError(t, err)

	// 2 coarse points (a tie, so 80 stays best), then 9 per refined round: steps of 10, then 2.5.
	assert.Equal(t, 2+9+9, st.Evaluated)
	v, _ := st.Best.Point.Value("days")
	assert.Equal(t, 100.0, v)
	assert.Equal(t, store.Len(), st.Best.Result.ExactMatches)
	assert.Equal(t, "coarse/refine-1", st.Best.Grid)
}

// #endregion refine
