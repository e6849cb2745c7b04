package formula

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/features"
)

// #region constants
// MinimumPayout is the floor applied to every computed reimbursement.
const MinimumPayout = 50.0

// #endregion constants

// #region input
// Input is the triple every candidate prices.
type Input struct {
	Days     int
	Miles    float64
	Receipts float64
}

// InputOf returns the input triple of a labeled case.
func InputOf(c cases.Case) Input {
	return Input{Days: c.Days, Miles: c.Miles, Receipts: c.Receipts}
}

// Validate rejects negative or non-finite values.
func (in Input) Validate() error {
	switch {
	case in.Days < 0:
		return &InvalidInputError{Input: in, Reason: "negative trip duration"}
	case math.IsNaN(in.Miles) || math.IsInf(in.Miles, 0):
		return &InvalidInputError{Input: in, Reason: "non-finite miles"}
	case math.IsNaN(in.Receipts) || math.IsInf(in.Receipts, 0):
		return &InvalidInputError{Input: in, Reason: "non-finite receipts"}
	case in.Miles < 0:
		return &InvalidInputError{Input: in, Reason: "negative miles"}
	case in.Receipts < 0:
		return &InvalidInputError{Input: in, Reason: "negative receipts"}
	}
	return nil
}

// MilesPerDay is miles over days, or 0 for a zero-day trip.
func (in Input) MilesPerDay() float64 {
	if in.Days == 0 {
		return 0
	}
	return in.Miles / float64(in.Days)
}

// Features derives the shared feature vector for this input.
func (in Input) Features() features.Vector {
	return features.Derive(in.Days, in.Miles, in.Receipts)
}

func (in Input) key() cases.Key {
	return cases.Key{Days: in.Days, Miles: in.Miles, Receipts: in.Receipts}
}

// #endregion input

// #region contracts
// Candidate is one hypothesis for the legacy pricing rule. Predict must be a
// pure function of the input and the candidate's fixed configuration.
type Candidate interface {
	Name() string
	Predict(in Input) (float64, error)
	Spec() Spec
}

// Attempter is implemented by candidates that can decline an input so that the
// next strategy in a Chain gets a turn. A decline is reported as ErrLookupMiss
// or ErrModelUnavailable.
type Attempter interface {
	Attempt(in Input) (float64, error)
}

// Regressor is an externally trained model scored on the derived feature vector.
type Regressor interface {
	Predict(ctx context.Context, v features.Vector) (float64, error)
}

// Deps carries what a Spec may need to be rebuilt into a Candidate.
type Deps struct {
	Cases      *cases.Store
	Regressors map[string]Regressor
}

// #endregion contracts

// #region errors
var (
	// ErrLookupMiss is returned by a lookup that has no entry for the input.
	ErrLookupMiss = errors.New("lookup miss")

	// ErrModelUnavailable marks a regressor that could not be invoked.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrChainExhausted is returned when every strategy in a chain declined.
	ErrChainExhausted = errors.New("fallback chain exhausted")

	// ErrInvalidSpec marks a configuration that cannot be built.
	ErrInvalidSpec = errors.New("invalid formula spec")

	// ErrUnknownParam is returned by WithParam for a name the spec does not have.
	ErrUnknownParam = errors.New("unknown parameter")
)

// InvalidInputError reports an input triple no candidate can price.
type InvalidInputError struct {
	Input  Input
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input (%d, %g, %g): %s", e.Input.Days, e.Input.Miles, e.Input.Receipts, e.Reason)
}

// ModelUnavailableError wraps the cause of a failed regressor call.
type ModelUnavailableError struct {
	Model string
	Err   error
}

func (e *ModelUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("model %q unavailable", e.Model)
	}
	return fmt.Sprintf("model %q unavailable: %v", e.Model, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrModelUnavailable) match.
func (e *ModelUnavailableError) Is(target error) bool { return target == ErrModelUnavailable }

// #endregion errors
