package model

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/features"
)

// DefaultRidgeLambda is the L2 penalty on standardized coefficients.
const DefaultRidgeLambda = 1e-2

// ErrNoData is returned when a fit has no rows.
var ErrNoData = errors.New("no training rows")

// #region least-squares
// LeastSquares is a ridge regression over the full derived feature vector.
// Features are standardized before fitting; Predict applies the same scaling.
type LeastSquares struct {
	intercept float64
	mean      features.Vector
	scale     features.Vector
	coef      features.Vector
}

// Fit solves min ‖Xw − y‖² + λ‖w‖² on standardized columns by QR on the
// augmented system [X; √λ·I]w = [y; 0].
func Fit(xs []features.Vector, ys []float64, lambda float64) (*LeastSquares, error) {
	n := len(xs)
	if n == 0 {
		return nil, ErrNoData
	}
	if len(ys) != n {
		return nil, fmt.Errorf("fit: %d rows but %d targets", n, len(ys))
	}
	if lambda < 0 || math.IsNaN(lambda) {
		return nil, fmt.Errorf("fit: invalid ridge penalty %v", lambda)
	}
	p := features.Count
	m := &LeastSquares{}

	for _, x := range xs {
		for j := range p {
			m.mean[j] += x[j]
		}
	}
	for j := range p {
		m.mean[j] /= float64(n)
	}
	for _, x := range xs {
		for j := range p {
			d := x[j] - m.mean[j]
			m.scale[j] += d * d
		}
	}
	for j := range p {
		sd := math.Sqrt(m.scale[j] / float64(n))
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		m.scale[j] = sd
	}

	var ymean float64
	for _, y := range ys {
		ymean += y
	}
	ymean /= float64(n)
	m.intercept = ymean

	a := mat.NewDense(n+p, p, nil)
	b := mat.NewDense(n+p, 1, nil)
	for i, x := range xs {
		for j := range p {
			a.Set(i, j, (x[j]-m.mean[j])/m.scale[j])
		}
		b.Set(i, 0, ys[i]-ymean)
	}
	root := math.Sqrt(lambda)
	for j := range p {
		a.Set(n+j, j, root)
	}

	var qr mat.QR
	qr.Factorize(a)
	var w mat.Dense
	if err := qr.SolveTo(&w, false, b); err != nil {
		return nil, fmt.Errorf("fit: solve: %w", err)
	}
	for j := range p {
		m.coef[j] = w.At(j, 0)
	}
	return m, nil
}

// FitStore fits on every labeled case of store.
func FitStore(store *cases.Store, lambda float64) (*LeastSquares, error) {
	xs := make([]features.Vector, 0, store.Len())
	ys := make([]float64, 0, store.Len())
	for _, c := range store.All() {
		xs = append(xs, features.Derive(c.Days, c.Miles, c.Receipts))
		ys = append(ys, c.Expected)
	}
	return Fit(xs, ys, lambda)
}

// Predict implements the regressor contract. It never blocks.
func (m *LeastSquares) Predict(_ context.Context, v features.Vector) (float64, error) {
	y := m.intercept
	for j := range features.Count {
		y += m.coef[j] * (v[j] - m.mean[j]) / m.scale[j]
	}
	return y, nil
}

// Coefficient is one standardized weight with its feature name.
type Coefficient struct {
	Feature string
	Weight  float64
}

// Coefficients lists the standardized weights in feature order.
func (m *LeastSquares) Coefficients() []Coefficient {
	names := features.Names()
	out := make([]Coefficient, features.Count)
	for j := range features.Count {
		out[j] = Coefficient{Feature: names[j], Weight: m.coef[j]}
	}
	return out
}

// #endregion least-squares
