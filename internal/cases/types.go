package cases

import (
	"errors"
	"fmt"
)

// #region case
// Case is one labeled example: an input triple and the legacy system's recorded output.
// Index is the position in the loaded sequence and is the case's only identity.
type Case struct {
	Index    int
	Days     int
	Miles    float64
	Receipts float64
	Expected float64
}

// Key is the exact input triple of a case. Two cases with equal keys may carry
// different expected outputs.
type Key struct {
	Days     int
	Miles    float64
	Receipts float64
}

// Key returns the input triple of the case.
func (c Case) Key() Key {
	return Key{Days: c.Days, Miles: c.Miles, Receipts: c.Receipts}
}

// #endregion case

// #region wire-types
// record mirrors one dataset entry. Pointers distinguish a missing field from a zero value.
type record struct {
	Input          *recordInput `json:"input"`
	ExpectedOutput *float64     `json:"expected_output"`
}

type recordInput struct {
	TripDurationDays    *float64 `json:"trip_duration_days"`
	MilesTraveled       *float64 `json:"miles_traveled"`
	TotalReceiptsAmount *float64 `json:"total_receipts_amount"`
}

// #endregion wire-types

// #region errors
// ErrMissingField marks a record that lacks a required field.
var ErrMissingField = errors.New("missing field")

// ErrBadValue marks a field that is present but not acceptable (non-numeric,
// non-integral duration, negative amount).
var ErrBadValue = errors.New("bad value")

// ErrTrailingData marks content after the dataset array.
var ErrTrailingData = errors.New("trailing data after dataset array")

// FormatError reports a malformed dataset record. Index is -1 when the document
// itself could not be parsed.
type FormatError struct {
	Index int
	Field string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("dataset format: %v", e.Err)
	}
	if e.Field == "" {
		return fmt.Sprintf("dataset record %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("dataset record %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// #endregion errors
