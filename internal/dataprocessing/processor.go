package dataprocessing

import (
	"cmp"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"oceancli/pkg/contracts/domain"
)

// Comparator is a binary row predicate used by the filter stages.
type Comparator string

const (
	LessThan       Comparator = "<"
	LessOrEqual    Comparator = "<="
	GreaterThan    Comparator = ">"
	GreaterOrEqual Comparator = ">="
	Equal          Comparator = "=="
	NotEqual       Comparator = "!="
)

// ParseComparator validates a comparator symbol.
func ParseComparator(s string) (Comparator, error) {
	switch c := Comparator(strings.TrimSpace(s)); c {
	case LessThan, LessOrEqual, GreaterThan, GreaterOrEqual, Equal, NotEqual:
		return c, nil
	}
	return "", fmt.Errorf("unknown comparator %q", s)
}

func (c Comparator) holds(order int) bool {
	switch c {
	case LessThan:
		return order < 0
	case LessOrEqual:
		return order <= 0
	case GreaterThan:
		return order > 0
	case GreaterOrEqual:
		return order >= 0
	case Equal:
		return order == 0
	case NotEqual:
		return order != 0
	}
	return false
}

// RenameColumns substitutes column labels. Labels missing from mapping are kept.
func RenameColumns(f *Frame, mapping map[string]string) *Frame {
	out := f.Clone()
	for _, c := range out.columns {
		if name, ok := mapping[c.Name]; ok {
			c.Name = name
		}
	}
	return out
}

// SortValues sorts rows ascending by col, keeping the relative order of ties.
// Nulls go last and the index is reset.
func SortValues(f *Frame, col string) (*Frame, error) {
	s, err := f.Column(col)
	if err != nil {
		return nil, err
	}
	rows := positionalIndex(f.Len())
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		an, bn := s.IsNull(a), s.IsNull(b)
		if an || bn {
			return !an && bn
		}
		return compareCells(s, a, b) < 0
	})
	out := f.take(rows)
	out.resetIndex()
	return out, nil
}

// FilterColumn keeps the rows where cmp(row[col], value) holds and resets the index.
// A null cell only satisfies NotEqual.
func FilterColumn(f *Frame, col string, c Comparator, value any) (*Frame, error) {
	mask, err := predicateMask(f, col, c, value)
	if err != nil {
		return nil, err
	}
	rows := make([]int, 0, len(mask))
	for i, keep := range mask {
		if keep {
			rows = append(rows, i)
		}
	}
	out := f.take(rows)
	out.resetIndex()
	return out, nil
}

// FilterColumnAndInterpolate nulls col wherever the predicate fails, then
// linearly interpolates every float column of the frame and resets the index.
func FilterColumnAndInterpolate(f *Frame, col string, c Comparator, value any) (*Frame, error) {
	mask, err := predicateMask(f, col, c, value)
	if err != nil {
		return nil, err
	}
	out := f.Clone()
	s, _ := out.Column(col)
	if s.Kind != KindFloat {
		return nil, fmt.Errorf("%w: %s is %s, only float columns can be interpolated", ErrKindMismatch, col, s.Kind)
	}
	for i, keep := range mask {
		if !keep {
			s.Floats[i] = math.NaN()
		}
	}
	out = Interpolate(out)
	out.resetIndex()
	return out, nil
}

// InterpolateOutliers nulls, for every variable present in spikes, the cells of
// that variable whose timestamp in tsCol was flagged, then interpolates every
// float column. The index is kept.
func InterpolateOutliers(f *Frame, spikes domain.Spikes, tsCol string) (*Frame, error) {
	stamps, err := f.Times(tsCol)
	if err != nil {
		return nil, err
	}
	out := f.Clone()
	for _, v := range spikes.Variables() {
		values, err := out.Floats(string(v))
		if err != nil {
			return nil, err
		}
		flagged := make(map[int64]struct{})
		for _, ts := range spikes.TimestampsFor(v) {
			flagged[ts.UnixNano()] = struct{}{}
		}
		for i, ts := range stamps {
			if ts.IsZero() {
				continue
			}
			if _, ok := flagged[ts.UnixNano()]; ok {
				values[i] = math.NaN()
			}
		}
	}
	return Interpolate(out), nil
}

// Interpolate fills nulls of every float column by linear interpolation on row
// position. Leading nulls stay null; trailing nulls take the last valid value.
func Interpolate(f *Frame) *Frame {
	out := f.Clone()
	for _, c := range out.columns {
		if c.Kind == KindFloat {
			c.Floats = interpolateLinear(c.Floats)
		}
	}
	return out
}

func interpolateLinear(values []float64) []float64 {
	out := append([]float64(nil), values...)
	last := -1
	for i, v := range out {
		if math.IsNaN(v) {
			continue
		}
		if last >= 0 && i-last > 1 {
			step := (v - out[last]) / float64(i-last)
			for k := last + 1; k < i; k++ {
				out[k] = out[last] + step*float64(k-last)
			}
		}
		last = i
	}
	if last >= 0 {
		for k := last + 1; k < len(out); k++ {
			out[k] = out[last]
		}
	}
	return out
}

// CorrectDates subtracts delta from every timestamp of col within [lower, upper].
func CorrectDates(f *Frame, lower, upper time.Time, col string, delta time.Duration) (*Frame, error) {
	if _, err := f.Times(col); err != nil {
		return nil, err
	}
	out := f.Clone()
	ts, _ := out.Times(col)
	for i, t := range ts {
		if t.IsZero() || t.Before(lower) || t.After(upper) {
			continue
		}
		ts[i] = t.Add(-delta)
	}
	return out, nil
}

// MergeColumns joins the text of cols with sep into a new string column placed
// last, and drops the source columns.
func MergeColumns(f *Frame, cols []string, newCol, sep string) (*Frame, error) {
	sources := make([]*Series, len(cols))
	for i, name := range cols {
		s, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		sources[i] = s
	}
	merged := make([]string, f.Len())
	parts := make([]string, len(sources))
	for r := range merged {
		for i, s := range sources {
			parts[i] = s.Text(r)
		}
		merged[r] = strings.Join(parts, sep)
	}

	drop := make(map[string]struct{}, len(cols))
	for _, name := range cols {
		drop[name] = struct{}{}
	}
	out := &Frame{index: f.Index()}
	for _, c := range f.columns {
		if _, ok := drop[c.Name]; ok || c.Name == newCol {
			continue
		}
		out.columns = append(out.columns, c.Clone())
	}
	out.columns = append(out.columns, NewStringSeries(newCol, merged))
	return out, nil
}

// ParseDatetimeColumn converts a string column to timestamps. layout is a Go
// layout or a strftime pattern; an empty layout tries the common formats.
func ParseDatetimeColumn(f *Frame, col, layout string) (*Frame, error) {
	s, err := f.Column(col)
	if err != nil {
		return nil, err
	}
	switch s.Kind {
	case KindTime:
		return f.Clone(), nil
	case KindFloat:
		return nil, fmt.Errorf("%w: %s is float, expected date strings", ErrKindMismatch, col)
	}
	parsed := make([]time.Time, s.Len())
	for i, raw := range s.Strings {
		if raw == "" {
			continue
		}
		t, err := ParseTime(raw, layout)
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: %w", col, i, err)
		}
		parsed[i] = t
	}
	out := f.Clone()
	out.columns[out.position(col)] = NewTimeSeries(col, parsed)
	return out, nil
}

// AddColumn inserts s, replacing an existing column with the same name in place.
func AddColumn(f *Frame, s *Series) (*Frame, error) {
	if len(f.columns) > 0 && s.Len() != f.Len() {
		return nil, fmt.Errorf("%w: column %q has %d rows, frame has %d", ErrLengthMismatch, s.Name, s.Len(), f.Len())
	}
	out := f.Clone()
	if len(f.columns) == 0 {
		out.index = positionalIndex(s.Len())
	}
	if i := out.position(s.Name); i >= 0 {
		out.columns[i] = s.Clone()
		return out, nil
	}
	out.columns = append(out.columns, s.Clone())
	return out, nil
}

// Concat appends the rows of b to a. Columns are the union of both frames;
// cells a frame does not have are null. Indexes are concatenated as they are.
func Concat(a, b *Frame) (*Frame, error) {
	out := &Frame{index: append(a.Index(), b.index...)}
	for _, c := range a.columns {
		merged := c.Clone()
		if other, err := b.Column(c.Name); err == nil {
			if other.Kind != c.Kind {
				return nil, fmt.Errorf("%w: %s is %s on one side and %s on the other", ErrKindMismatch, c.Name, c.Kind, other.Kind)
			}
			merged.appendSeries(other)
		} else {
			merged.appendSeries(c.nulls(b.Len()))
		}
		out.columns = append(out.columns, merged)
	}
	for _, c := range b.columns {
		if a.HasColumn(c.Name) {
			continue
		}
		merged := c.nulls(a.Len())
		merged.appendSeries(c)
		out.columns = append(out.columns, merged)
	}
	return out, nil
}

// RemoveValuesNotIn keeps the rows whose col value also appears in other's col.
// The index is kept.
func RemoveValuesNotIn(f *Frame, col string, other *Frame) (*Frame, error) {
	s, err := f.Column(col)
	if err != nil {
		return nil, err
	}
	keys, err := other.Column(col)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJoin, err)
	}
	if keys.Kind != s.Kind {
		return nil, fmt.Errorf("%w: %s is %s here and %s in the reference", ErrJoin, col, s.Kind, keys.Kind)
	}
	set := make(map[any]struct{}, keys.Len())
	for i := 0; i < keys.Len(); i++ {
		set[cellKey(keys, i)] = struct{}{}
	}
	rows := make([]int, 0, f.Len())
	for i := 0; i < s.Len(); i++ {
		if _, ok := set[cellKey(s, i)]; ok {
			rows = append(rows, i)
		}
	}
	return f.take(rows), nil
}

type nullKey struct{}

func cellKey(s *Series, i int) any {
	if s.IsNull(i) {
		return nullKey{}
	}
	switch s.Kind {
	case KindFloat:
		return s.Floats[i]
	case KindTime:
		return s.Times[i].UnixNano()
	default:
		return s.Strings[i]
	}
}

func compareCells(s *Series, a, b int) int {
	switch s.Kind {
	case KindFloat:
		return cmp.Compare(s.Floats[a], s.Floats[b])
	case KindTime:
		return s.Times[a].Compare(s.Times[b])
	default:
		return strings.Compare(s.Strings[a], s.Strings[b])
	}
}

func predicateMask(f *Frame, col string, c Comparator, value any) ([]bool, error) {
	s, err := f.Column(col)
	if err != nil {
		return nil, err
	}
	operand, err := coerce(s, value)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, s.Len())
	for i := range mask {
		if s.IsNull(i) || operand == nil {
			mask[i] = c == NotEqual
			continue
		}
		var order int
		switch s.Kind {
		case KindFloat:
			order = cmp.Compare(s.Floats[i], operand.(float64))
		case KindTime:
			order = s.Times[i].Compare(operand.(time.Time))
		default:
			order = strings.Compare(s.Strings[i], operand.(string))
		}
		mask[i] = c.holds(order)
	}
	return mask, nil
}

// coerce converts a filter operand to the column's element type. A nil result
// means the operand is itself null.
func coerce(s *Series, value any) (any, error) {
	switch s.Kind {
	case KindFloat:
		var v float64
		switch n := value.(type) {
		case float64:
			v = n
		case float32:
			v = float64(n)
		case int:
			v = float64(n)
		case int64:
			v = float64(n)
		case int32:
			v = float64(n)
		case string:
			p, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a number for column %s", ErrKindMismatch, n, s.Name)
			}
			v = p
		default:
			return nil, fmt.Errorf("%w: cannot compare %T with float column %s", ErrKindMismatch, value, s.Name)
		}
		if math.IsNaN(v) {
			return nil, nil
		}
		return v, nil
	case KindTime:
		switch t := value.(type) {
		case time.Time:
			if t.IsZero() {
				return nil, nil
			}
			return t, nil
		case string:
			p, err := ParseTime(t, "")
			if err != nil {
				return nil, err
			}
			return p, nil
		}
		return nil, fmt.Errorf("%w: cannot compare %T with time column %s", ErrKindMismatch, value, s.Name)
	default:
		switch v := value.(type) {
		case string:
			return v, nil
		case float64:
			return formatFloat(v), nil
		}
		return fmt.Sprint(value), nil
	}
}
