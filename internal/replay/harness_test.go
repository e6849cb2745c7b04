package replay

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/config"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func perDiemSession(t *testing.T) (*Session, formula.Candidate) {
	t.Helper()
	store := cases.NewStore([]cases.Case{
		{Days: 1, Expected: 100},
		{Days: 2, Expected: 250},
		{Days: 3, Expected: 300.5},
	})
	c, err := formula.NewLinear(formula.LinearSpec{Days: 100})
	require.NoError(t, err)
	return NewSession(config.DefaultConfig(), store, quietLogger()), c
}

// #region replay-tests

func TestReplay_Report(t *testing.T) {
	s, c := perDiemSession(t)
	r, err := s.Replay(c, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, r.Cases)
	assert.Equal(t, 1, r.Exact)
	assert.Equal(t, 1, r.Close)
	assert.Equal(t, 0, r.Invalid)
	assert.InDelta(t, 33.333, r.ExactPct, 1e-3)
	assert.InDelta(t, 50.5/3, r.MAE, 1e-9)
	assert.InDelta(t, 50.0, r.MaxError, 1e-9)
	assert.InDelta(t, 50.5/3*100+0.2, r.Score, 1e-6)
	assert.Equal(t, VerdictWeak, r.Verdict())

	require.NotNil(t, r.WorstCase)
	assert.Equal(t, 1, r.WorstCase.Case.Index)
	require.Len(t, r.Top, 2)
	assert.Equal(t, 1, r.Top[0].Case.Index)
	assert.Equal(t, 2, r.Top[1].Case.Index)
}

func TestReplay_EmptyStore(t *testing.T) {
	s := NewSession(config.DefaultConfig(), cases.NewStore(nil), quietLogger())
	c, err := formula.NewLinear(formula.BaselineLinearSpec())
	require.NoError(t, err)

	r, err := s.Replay(c, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Cases)
	assert.Nil(t, r.WorstCase)
	assert.Empty(t, r.Top)
	assert.Equal(t, VerdictWeak, r.Verdict())
}

func TestReport_Write(t *testing.T) {
	s, c := perDiemSession(t)
	r, err := s.Replay(c, 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf))
	out := buf.String()
	assert.Contains(t, out, "Exact matches (±$0.01): 1 (33.3%)")
	assert.Contains(t, out, "Close matches (±$1.00): 1 (33.3%)")
	assert.Contains(t, out, "Maximum error: $50.00")
	assert.Contains(t, out, "Worst case: Case 2: 2d, 0mi, $0.00")
	assert.Contains(t, out, "Score: 1683.53")
	assert.Contains(t, out, "Expected: $250.00, Got: $200.00, Error: $50.00")
}

func TestReport_Verdict(t *testing.T) {
	tests := []struct {
		exact, cases int
		want         Verdict
	}{
		{10, 10, VerdictPerfect},
		{96, 100, VerdictExcellent},
		{95, 100, VerdictGreat},
		{81, 100, VerdictGreat},
		{51, 100, VerdictGood},
		{50, 100, VerdictWeak},
	}
	for _, tt := range tests {
		r := Report{Cases: tt.cases, Exact: tt.exact, ExactPct: float64(tt.exact) / float64(tt.cases) * 100}
		assert.Equal(t, tt.want, r.Verdict(), "%d/%d", tt.exact, tt.cases)
	}
}

// #endregion replay-tests

// #region session-tests

func TestSession_DefaultSpecCarriesTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Model.Name = "gbm"
	cfg.Model.TimeoutMillis = 500
	s := NewSession(cfg, cases.NewStore(nil), quietLogger())

	spec, err := s.Spec("")
	require.NoError(t, err)
	require.Equal(t, formula.KindChain, spec.Kind)
	learned := spec.Chain.Strategies[1].Learned
	require.NotNil(t, learned)
	assert.Equal(t, "gbm", learned.Model)
	assert.Equal(t, 500, learned.TimeoutMillis)
}

func TestSession_SpecFromFile(t *testing.T) {
	s, _ := perDiemSession(t)
	path := filepath.Join(t.TempDir(), "cand.yaml")
	want := formula.Spec{Kind: formula.KindLinear, Linear: &formula.LinearSpec{Days: 90, Miles: 0.5}}
	require.NoError(t, formula.SaveSpec(path, want))

	c, err := s.Candidate(path)
	require.NoError(t, err)
	y, err := c.Predict(formula.Input{Days: 2, Miles: 100})
	require.NoError(t, err)
	assert.InDelta(t, 230.0, y, 1e-9)
}

// Without a registered regressor the learned step fails over and unseen inputs
// get the baseline linear price.
func TestSession_CandidateWithoutModel(t *testing.T) {
	s, _ := perDiemSession(t)
	c, err := s.Candidate("")
	require.NoError(t, err)

	baseline, err := formula.NewLinear(formula.BaselineLinearSpec())
	require.NoError(t, err)

	in := formula.Input{Days: 6, Miles: 420, Receipts: 812.5}
	want, err := baseline.Predict(in)
	require.NoError(t, err)
	got, err := c.Predict(in)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-9)

	got, err = c.Predict(formula.Input{Days: 2})
	require.NoError(t, err)
	assert.Equal(t, 250.0, got)
}

func TestOpen_FitsRidgeOverDataset(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Dataset = filepath.Join("..", "cases", "testdata", "sample_cases.json")

	s, err := Open(cfg, quietLogger())
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, 12, s.Store.Len())
	require.Contains(t, s.Deps.Regressors, cfg.Model.Name)

	c, err := s.Candidate("")
	require.NoError(t, err)
	r, err := s.Replay(c, 1)
	require.NoError(t, err)

	// Every case is found by exact lookup; the duplicate input resolves to its
	// first occurrence and misses by the difference between the two outputs.
	assert.Equal(t, 11, r.Exact)
	require.Len(t, r.Top, 1)
	assert.Equal(t, 11, r.Top[0].Case.Index)
	assert.InDelta(t, 5.5, r.Top[0].Residual, 1e-9)
}

func TestOpen_RemoteRegressor(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Dataset = filepath.Join("..", "cases", "testdata", "sample_cases.json")
	cfg.Model.Addr = "localhost:1"

	s, err := Open(cfg, quietLogger())
	require.NoError(t, err)
	require.Contains(t, s.Deps.Regressors, cfg.Model.Name)
	require.Len(t, s.closers, 1)
	require.NoError(t, s.Close())
	assert.Empty(t, s.closers)
}

func TestOpen_MissingDataset(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Dataset = filepath.Join(t.TempDir(), "missing.json")
	_, err := Open(cfg, quietLogger())
	require.Error(t, err)
}

// #endregion session-tests
