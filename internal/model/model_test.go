package model

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/features"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
)

// #region helpers
func linearCases() *cases.Store {
	var cs []cases.Case
	for d := 1; d <= 12; d++ {
		for _, m := range []float64{20, 180, 450, 900} {
			for _, r := range []float64{5, 320, 1100, 2200} {
				cs = append(cs, cases.Case{Days: d, Miles: m, Receipts: r, Expected: 30 + 55*float64(d) + 0.4*m + 0.25*r})
			}
		}
	}
	return cases.NewStore(cs)
}

type constRegressor float64

func (c constRegressor) Predict(_ context.Context, v features.Vector) (float64, error) {
	return float64(c) + v[features.Days], nil
}

type failingRegressor struct{}

func (failingRegressor) Predict(context.Context, features.Vector) (float64, error) {
	return 0, errors.New("artifact missing")
}

func serve(t *testing.T, reg formula.Regressor) *Remote {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterRegressorServer(srv, reg)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	r, err := NewRemote("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

type mockRegressorClient struct {
	resp *wrapperspb.DoubleValue
	err  error
	got  *structpb.ListValue
}

func (m *mockRegressorClient) Predict(_ context.Context, in *structpb.ListValue, _ ...grpc.CallOption) (*wrapperspb.DoubleValue, error) {
	m.got = in
	return m.resp, m.err
}

// #endregion helpers

// #region least-squares
func TestFit_RecoversLinearTarget(t *testing.T) {
	store := linearCases()
	m, err := FitStore(store, 1e-8)
	require.NoError(t, err)

	for _, c := range store.All() {
		y, err := m.Predict(context.Background(), features.Derive(c.Days, c.Miles, c.Receipts))
		require.NoError(t, err)
		assert.InDelta(t, c.Expected, y, 0.05, "case %d", c.Index)
	}
	assert.Len(t, m.Coefficients(), features.Count)
	assert.Equal(t, "days", m.Coefficients()[0].Feature)
}

func TestFit_Errors(t *testing.T) {
	_, err := Fit(nil, nil, 1)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Fit([]features.Vector{{}}, []float64{1, 2}, 1)
	assert.Error(t, err)

	_, err = Fit([]features.Vector{{}}, []float64{1}, -1)
	assert.Error(t, err)
}

func TestFit_ConstantTarget(t *testing.T) {
	xs := []features.Vector{features.Derive(1, 10, 10), features.Derive(2, 20, 20), features.Derive(3, 30, 30)}
	m, err := Fit(xs, []float64{77, 77, 77}, DefaultRidgeLambda)
	require.NoError(t, err)
	y, _ := m.Predict(context.Background(), features.Derive(9, 900, 900))
	assert.InDelta(t, 77, y, 1e-9)
}

// #endregion least-squares

// #region remote
func TestRemote_MatchesLocalModel(t *testing.T) {
	local, err := FitStore(linearCases(), DefaultRidgeLambda)
	require.NoError(t, err)
	remote := serve(t, local)

	for _, in := range [][3]float64{{1, 47, 17.97}, {5, 250, 150}, {14, 1200, 2500}} {
		v := features.Derive(int(in[0]), in[1], in[2])
		want, _ := local.Predict(context.Background(), v)
		got, err := remote.Predict(context.Background(), v)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRemote_ServerErrors(t *testing.T) {
	remote := serve(t, failingRegressor{})
	_, err := remote.Predict(context.Background(), features.Vector{})
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(err)))

	conn := serve(t, constRegressor(1))
	_, err = conn.client.Predict(context.Background(), &structpb.ListValue{Values: []*structpb.Value{structpb.NewNumberValue(1)}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRemote_WithService(t *testing.T) {
	mock := &mockRegressorClient{resp: wrapperspb.Double(412.5)}
	r := NewRemoteWithService(mock)
	v := features.Derive(3, 100, 50)

	y, err := r.Predict(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, 412.5, y)
	require.Len(t, mock.got.GetValues(), features.Count)
	assert.Equal(t, 3.0, mock.got.GetValues()[features.Days].GetNumberValue())
	assert.NoError(t, r.Close())
}

// A dead regressor degrades the learned candidate to its fallback.
func TestRemote_FailoverThroughLearnedCandidate(t *testing.T) {
	r := NewRemoteWithService(&mockRegressorClient{err: status.Error(codes.Unavailable, "connection refused")})
	fb := formula.Spec{Kind: formula.KindLinear, Linear: &formula.LinearSpec{Days: 100}}
	spec := formula.Spec{Kind: formula.KindLearned, Learned: &formula.LearnedSpec{Model: "remote", Fallback: &fb}}
	c, err := spec.Build(formula.Deps{Regressors: map[string]formula.Regressor{"remote": r}})
	require.NoError(t, err)

	y, err := c.Predict(formula.Input{Days: 4, Miles: 10, Receipts: 10})
	require.NoError(t, err)
	assert.Equal(t, 400.0, y)
}

func TestVectorEncoding(t *testing.T) {
	v := features.Derive(6, 321.5, 987.65)
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	bad := encodeVector(v)
	bad.Values[2] = structpb.NewStringValue("x")
	_, err = decodeVector(bad)
	assert.Error(t, err)
}

// #endregion remote
