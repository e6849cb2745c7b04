package formula

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultModelTimeout bounds a single regressor call when the spec sets none.
const DefaultModelTimeout = 2 * time.Second

var errNoRegressor = errors.New("no regressor registered")

// #region learned
// Learned hands the derived feature vector to a regressor. When the regressor
// is missing, fails, or returns a non-finite value, Predict answers with the
// fallback candidate instead.
type Learned struct {
	spec     LearnedSpec
	reg      Regressor
	fallback Candidate
	timeout  time.Duration
}

func buildLearned(spec LearnedSpec, deps Deps) (*Learned, error) {
	if spec.Model == "" {
		return nil, fmt.Errorf("%w: learned spec has no model name", ErrInvalidSpec)
	}
	if spec.Fallback == nil {
		return nil, fmt.Errorf("%w: learned model %q has no fallback", ErrInvalidSpec, spec.Model)
	}
	fb, err := spec.Fallback.Build(deps)
	if err != nil {
		return nil, fmt.Errorf("learned fallback: %w", err)
	}
	timeout := DefaultModelTimeout
	if spec.TimeoutMillis > 0 {
		timeout = time.Duration(spec.TimeoutMillis) * time.Millisecond
	}
	return &Learned{
		spec:     spec,
		reg:      deps.Regressors[spec.Model],
		fallback: fb,
		timeout:  timeout,
	}, nil
}

// NewLearned builds a learned-model candidate from its spec.
func NewLearned(spec LearnedSpec, deps Deps) (*Learned, error) {
	return buildLearned(spec, deps)
}

func (l *Learned) Name() string {
	return fmt.Sprintf("learned(%s, else %s)", l.spec.Model, l.fallback.Name())
}

func (l *Learned) Predict(in Input) (float64, error) {
	y, err := l.Attempt(in)
	if errors.Is(err, ErrModelUnavailable) {
		return l.fallback.Predict(in)
	}
	return y, err
}

// Attempt asks the regressor only. A missing or failing regressor is reported
// as *ModelUnavailableError.
func (l *Learned) Attempt(in Input) (float64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	if l.reg == nil {
		return 0, &ModelUnavailableError{Model: l.spec.Model, Err: errNoRegressor}
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	y, err := l.reg.Predict(ctx, in.Features())
	if err != nil {
		return 0, &ModelUnavailableError{Model: l.spec.Model, Err: err}
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, &ModelUnavailableError{Model: l.spec.Model, Err: fmt.Errorf("non-finite output %v", y)}
	}
	return clampPayout(y), nil
}

func (l *Learned) Spec() Spec {
	s := l.spec
	s.Fallback = cloneSpecPtr(s.Fallback)
	return Spec{Kind: KindLearned, Learned: &s}
}

// #endregion learned
