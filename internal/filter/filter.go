// Package filter compiles scan metadata constraints into SQL.
//
// Every constraint becomes one inner join against the EAV table that matches
// the constraint value's kind. Names and values are always bound parameters;
// only the operator token, validated against a fixed whitelist, is written
// into the SQL text.
package filter

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	// ErrInvalidOperator is returned for an operator outside Operators.
	ErrInvalidOperator = errors.New("invalid operator")
	// ErrShapeMismatch is returned when parallel name/operator/value lists differ in length.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidValue is returned for a constraint value that is neither numeric nor text.
	ErrInvalidValue = errors.New("invalid constraint value")
)

// Operators is the whitelist of comparison operators.
var Operators = []string{">", "<", "=", "!=", ">=", "<="}

// ValidOperator reports whether op is in the whitelist.
func ValidOperator(op string) bool {
	return slices.Contains(Operators, op)
}

// Constraint restricts scans to those having a metadata entry Name whose value
// compares true against Value using Op.
type Constraint struct {
	Name  string
	Op    string
	Value Value
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s %s %s(%s)", c.Name, c.Op, c.Value.Kind(), c.Value)
}

// Constraints zips parallel name, operator and value lists into constraints.
func Constraints(names, ops []string, values []any) ([]Constraint, error) {
	if len(names) != len(ops) || len(names) != len(values) {
		return nil, fmt.Errorf("%w: %d names, %d operators, %d values",
			ErrShapeMismatch, len(names), len(ops), len(values))
	}
	out := make([]Constraint, len(names))
	for i := range names {
		if !ValidOperator(ops[i]) {
			return nil, fmt.Errorf("%w %q", ErrInvalidOperator, ops[i])
		}
		v, err := ValueOf(values[i])
		if err != nil {
			return nil, fmt.Errorf("constraint %q: %w", names[i], err)
		}
		out[i] = Constraint{Name: names[i], Op: ops[i], Value: v}
	}
	return out, nil
}

// Tables names the owner table and its two EAV tables.
type Tables struct {
	Owner      string // owning entity table
	OwnerID    string // primary key column of Owner
	OwnerTime  string // timestamp column of Owner
	ForeignKey string // owner id column in the EAV tables
	Numeric    string
	Text       string
}

// ScanTables is the scan schema.
var ScanTables = Tables{
	Owner:      "scan",
	OwnerID:    "id",
	OwnerTime:  "start_time_utc",
	ForeignKey: "scan_id",
	Numeric:    "scan_numeric_meta",
	Text:       "scan_text_meta",
}

// Filter selects scans by start time window and metadata constraints.
// A nil bound means no restriction on that side.
type Filter struct {
	Begin       *time.Time
	End         *time.Time
	Constraints []Constraint
}

// Clause is compiled filter SQL: a JOIN chain followed by an optional WHERE,
// with one "?" placeholder per Args element. Time bounds appear in Args as
// UTC time.Time values.
type Clause struct {
	Joins []string
	Where string
	Args  []any
}

// SQL returns the joins and the where clause as one fragment.
func (c Clause) SQL() string {
	parts := slices.Clone(c.Joins)
	if c.Where != "" {
		parts = append(parts, c.Where)
	}
	return strings.Join(parts, "\n")
}

// Compile validates f and renders it against ScanTables.
func (f Filter) Compile() (Clause, error) {
	return f.CompileFor(ScanTables)
}

// CompileFor validates f and renders it against t. Validation happens before
// any SQL is produced.
func (f Filter) CompileFor(t Tables) (Clause, error) {
	for _, c := range f.Constraints {
		if !ValidOperator(c.Op) {
			return Clause{}, fmt.Errorf("%w %q", ErrInvalidOperator, c.Op)
		}
		if !c.Value.valid() {
			return Clause{}, fmt.Errorf("constraint %q: %w", c.Name, ErrInvalidValue)
		}
	}

	var cl Clause
	for i, c := range f.Constraints {
		table := t.Numeric
		if c.Value.Kind() == KindText {
			table = t.Text
		}
		alias := fmt.Sprintf("m%d", i)
		cl.Joins = append(cl.Joins, fmt.Sprintf(
			"JOIN (SELECT %[1]s.%[2]s FROM %[1]s WHERE %[1]s.name = ? AND %[1]s.value %[3]s ?) AS %[4]s ON %[5]s.%[6]s = %[4]s.%[2]s",
			table, t.ForeignKey, c.Op, alias, t.Owner, t.OwnerID))
		cl.Args = append(cl.Args, c.Name, c.Value.Arg())
	}

	var conds []string
	if f.Begin != nil {
		conds = append(conds, fmt.Sprintf("%s.%s >= ?", t.Owner, t.OwnerTime))
		cl.Args = append(cl.Args, f.Begin.UTC())
	}
	if f.End != nil {
		conds = append(conds, fmt.Sprintf("%s.%s <= ?", t.Owner, t.OwnerTime))
		cl.Args = append(cl.Args, f.End.UTC())
	}
	if len(conds) > 0 {
		cl.Where = "WHERE " + strings.Join(conds, " AND ")
	}
	return cl, nil
}
