package domain

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"
)

// Column is a labelled, ordered sequence of cell values.
// Cells are float64, int, string, time.Time, time.Duration or nil.
type Column struct {
	Label  string `json:"label" validate:"required"`
	Values []any  `json:"values"`
}

// Table is the exchange format between analyzers and storers.
//
// Every column holds the same number of values. When Indexes is non-nil it
// carries one row label per value (ints, timestamps or strings).
type Table struct {
	Columns []Column `json:"columns"`
	Indexes []any    `json:"indexes,omitempty"`
}

// NewTable builds a table and checks the length invariant.
func NewTable(columns []Column, indexes []any) (Table, error) {
	t := Table{Columns: columns, Indexes: indexes}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Validate reports whether all columns (and the indexes, if any) agree in length.
func (t Table) Validate() error {
	n := t.Len()
	for _, c := range t.Columns {
		if len(c.Values) != n {
			return fmt.Errorf("column %q has %d values, expected %d", c.Label, len(c.Values), n)
		}
	}
	if t.Indexes != nil && len(t.Indexes) != n {
		return fmt.Errorf("table has %d indexes, expected %d", len(t.Indexes), n)
	}
	return nil
}

// Len returns the number of rows, taken from the first column.
func (t Table) Len() int {
	if len(t.Columns) == 0 {
		return len(t.Indexes)
	}
	return len(t.Columns[0].Values)
}

// Labels returns the column labels in order.
func (t Table) Labels() []string {
	labels := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		labels[i] = c.Label
	}
	return labels
}

// Column returns the first column carrying label.
func (t Table) Column(label string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Label == label {
			return c, true
		}
	}
	return Column{}, false
}

// Clone returns a deep copy of the table structure. Cell values are copied by value.
func (t Table) Clone() Table {
	out := Table{Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = Column{Label: c.Label, Values: append([]any(nil), c.Values...)}
	}
	if t.Indexes != nil {
		out.Indexes = append([]any{}, t.Indexes...)
	}
	return out
}

// Equal compares two tables column by column, ignoring column order.
// NaN cells are equal to each other and timestamps compare by instant.
// Neither operand is modified.
func (t Table) Equal(other Table) bool {
	if len(t.Columns) != len(other.Columns) {
		return false
	}
	a := sortedColumns(t.Columns)
	b := sortedColumns(other.Columns)
	for i := range a {
		if a[i].Label != b[i].Label || !valuesEqual(a[i].Values, b[i].Values) {
			return false
		}
	}
	if (t.Indexes == nil) != (other.Indexes == nil) {
		return false
	}
	return valuesEqual(t.Indexes, other.Indexes)
}

// ConcatEqual returns a copy of t where every column whose label also exists
// in other has other's values appended. Columns of t missing from other are
// left as they are, so the result may violate the length invariant; callers
// concatenate tables of identical shape.
func (t Table) ConcatEqual(other Table) Table {
	out := t.Clone()
	switch {
	case out.Indexes == nil && other.Indexes != nil:
		out.Indexes = append([]any{}, other.Indexes...)
	case out.Indexes != nil && other.Indexes != nil:
		out.Indexes = append(out.Indexes, other.Indexes...)
	}
	for i, c := range out.Columns {
		if oc, ok := other.Column(c.Label); ok {
			out.Columns[i].Values = append(out.Columns[i].Values, oc.Values...)
		}
	}
	return out
}

func sortedColumns(cols []Column) []Column {
	out := append([]Column(nil), cols...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label > out[j].Label })
	return out
}

func valuesEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !CellEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// CellEqual compares two table cells. Numbers of different Go types compare
// by value, NaN equals NaN and timestamps compare by instant.
func CellEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return false
		}
		if math.IsNaN(fa) && math.IsNaN(fb) {
			return true
		}
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
