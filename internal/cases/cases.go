package cases

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
)

// #region store
// Store is the ordered, read-only set of labeled cases. It is safe to share
// between goroutines once loaded.
type Store struct {
	cases []Case
}

// NewStore builds a store from already-validated cases, reassigning indices
// to match their position.
func NewStore(cs []Case) *Store {
	out := make([]Case, len(cs))
	for i, c := range cs {
		c.Index = i
		out[i] = c
	}
	return &Store{cases: out}
}

// Len returns the number of cases.
func (s *Store) Len() int {
	return len(s.cases)
}

// At returns the case at position i.
func (s *Store) At(i int) Case {
	return s.cases[i]
}

// All yields every case in load order. Each call starts a fresh scan.
func (s *Store) All() iter.Seq2[int, Case] {
	return func(yield func(int, Case) bool) {
		for i, c := range s.cases {
			if !yield(i, c) {
				return
			}
		}
	}
}

// Inputs returns the input triple of every case in load order.
func (s *Store) Inputs() []Key {
	out := make([]Key, len(s.cases))
	for i, c := range s.cases {
		out[i] = c.Key()
	}
	return out
}

// Duplicates returns groups of case indices that share an identical input
// triple, in order of first appearance. The store itself never merges them.
func (s *Store) Duplicates() [][]int {
	groups := make(map[Key][]int)
	var order []Key
	for _, c := range s.cases {
		k := c.Key()
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], c.Index)
	}
	var dups [][]int
	for _, k := range order {
		if len(groups[k]) > 1 {
			dups = append(dups, groups[k])
		}
	}
	return dups
}

// #endregion store

// #region loader
// Load reads and parses a JSON dataset file.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	s, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a JSON array of records. Any malformed record, or anything but
// whitespace after the array, fails the whole load with a *FormatError.
func Parse(r io.Reader) (*Store, error) {
	var raw []json.RawMessage
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, &FormatError{Index: -1, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &FormatError{Index: -1, Err: ErrTrailingData}
	}

	cs := make([]Case, 0, len(raw))
	for i, msg := range raw {
		c, err := decodeRecord(i, msg)
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	return &Store{cases: cs}, nil
}

func decodeRecord(i int, msg json.RawMessage) (Case, error) {
	var rec record
	if err := json.Unmarshal(msg, &rec); err != nil {
		field := ""
		if te, ok := err.(*json.UnmarshalTypeError); ok {
			field = te.Field
		}
		return Case{}, &FormatError{Index: i, Field: field, Err: fmt.Errorf("%w: %v", ErrBadValue, err)}
	}

	if rec.Input == nil {
		return Case{}, &FormatError{Index: i, Field: "input", Err: ErrMissingField}
	}
	if rec.ExpectedOutput == nil {
		return Case{}, &FormatError{Index: i, Field: "expected_output", Err: ErrMissingField}
	}
	fields := []struct {
		name string
		v    *float64
	}{
		{"input.trip_duration_days", rec.Input.TripDurationDays},
		{"input.miles_traveled", rec.Input.MilesTraveled},
		{"input.total_receipts_amount", rec.Input.TotalReceiptsAmount},
	}
	for _, f := range fields {
		if f.v == nil {
			return Case{}, &FormatError{Index: i, Field: f.name, Err: ErrMissingField}
		}
		if *f.v < 0 {
			return Case{}, &FormatError{Index: i, Field: f.name, Err: fmt.Errorf("%w: negative %v", ErrBadValue, *f.v)}
		}
	}

	days := *rec.Input.TripDurationDays
	if days != math.Trunc(days) || days > math.MaxInt32 {
		return Case{}, &FormatError{Index: i, Field: "input.trip_duration_days", Err: fmt.Errorf("%w: not an integer: %v", ErrBadValue, days)}
	}

	return Case{
		Index:    i,
		Days:     int(days),
		Miles:    *rec.Input.MilesTraveled,
		Receipts: *rec.Input.TotalReceiptsAmount,
		Expected: *rec.ExpectedOutput,
	}, nil
}

// #endregion loader
