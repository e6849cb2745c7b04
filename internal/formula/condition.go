package formula

import (
	"fmt"
	"strings"
)

// #region clause
// Field names a quantity a clause can test.
type Field string

const (
	FieldDays        Field = "days"
	FieldMiles       Field = "miles"
	FieldReceipts    Field = "receipts"
	FieldMilesPerDay Field = "miles_per_day"
)

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Clause compares one field of the input against a constant.
type Clause struct {
	Field Field   `json:"field" yaml:"field"`
	Op    Op      `json:"op" yaml:"op"`
	Value float64 `json:"value" yaml:"value"`
}

func (c Clause) match(in Input) bool {
	var x float64
	switch c.Field {
	case FieldDays:
		x = float64(in.Days)
	case FieldMiles:
		x = in.Miles
	case FieldReceipts:
		x = in.Receipts
	case FieldMilesPerDay:
		x = in.MilesPerDay()
	default:
		return false
	}
	switch c.Op {
	case OpEq:
		return x == c.Value
	case OpNe:
		return x != c.Value
	case OpGt:
		return x > c.Value
	case OpGte:
		return x >= c.Value
	case OpLt:
		return x < c.Value
	case OpLte:
		return x <= c.Value
	}
	return false
}

func (c Clause) validate() error {
	switch c.Field {
	case FieldDays, FieldMiles, FieldReceipts, FieldMilesPerDay:
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidSpec, c.Field)
	}
	switch c.Op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidSpec, c.Op)
	}
	return nil
}

func (c Clause) String() string {
	return fmt.Sprintf("%s%s%g", c.Field, c.Op, c.Value)
}

// #endregion clause

// #region condition
// Condition is a conjunction of clauses. The empty condition matches every input.
type Condition []Clause

// Match reports whether every clause holds for the input.
func (c Condition) Match(in Input) bool {
	for _, cl := range c {
		if !cl.match(in) {
			return false
		}
	}
	return true
}

// IsCatchAll reports whether the condition has no clauses.
func (c Condition) IsCatchAll() bool {
	return len(c) == 0
}

// Validate checks every clause for a known field and operator.
func (c Condition) Validate() error {
	for _, cl := range c {
		if err := cl.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c Condition) String() string {
	if c.IsCatchAll() {
		return "always"
	}
	parts := make([]string, len(c))
	for i, cl := range c {
		parts[i] = cl.String()
	}
	return strings.Join(parts, " && ")
}

func (c Condition) clone() Condition {
	if c == nil {
		return nil
	}
	out := make(Condition, len(c))
	copy(out, c)
	return out
}

// When builds a single-clause condition.
func When(field Field, op Op, value float64) Condition {
	return Condition{{Field: field, Op: op, Value: value}}
}

// And appends a clause to a condition.
func (c Condition) And(field Field, op Op, value float64) Condition {
	out := c.clone()
	return append(out, Clause{Field: field, Op: op, Value: value})
}

// #endregion condition

// #region bonus
// Bonus is a flat amount added when its condition matches. Every matching bonus applies.
type Bonus struct {
	When   Condition `json:"when,omitempty" yaml:"when,omitempty"`
	Amount float64   `json:"amount" yaml:"amount"`
}

func applyBonuses(bonuses []Bonus, in Input) float64 {
	var total float64
	for _, b := range bonuses {
		if b.When.Match(in) {
			total += b.Amount
		}
	}
	return total
}

func validateBonuses(bonuses []Bonus) error {
	for i, b := range bonuses {
		if err := b.When.Validate(); err != nil {
			return fmt.Errorf("bonus %d: %w", i, err)
		}
		if err := checkFinite(fmt.Sprintf("bonus %d amount", i), b.Amount); err != nil {
			return err
		}
	}
	return nil
}

func cloneBonuses(bonuses []Bonus) []Bonus {
	if bonuses == nil {
		return nil
	}
	out := make([]Bonus, len(bonuses))
	for i, b := range bonuses {
		out[i] = Bonus{When: b.When.clone(), Amount: b.Amount}
	}
	return out
}

// #endregion bonus
