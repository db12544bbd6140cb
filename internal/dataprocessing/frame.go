package dataprocessing

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"oceancli/pkg/contracts/domain"
)

var (
	// ErrMissingColumn is returned when a stage or loader names a column the frame does not have.
	ErrMissingColumn = errors.New("missing column")
	// ErrLengthMismatch is returned when a column does not match the frame's row count.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrKindMismatch is returned when an operation meets a column of the wrong type.
	ErrKindMismatch = errors.New("column kind mismatch")
	// ErrParse is returned when a raw value cannot be parsed.
	ErrParse = errors.New("parse error")
	// ErrExtract is returned when an input cannot be read.
	ErrExtract = errors.New("extraction failed")
	// ErrJoin is returned when two frames cannot be joined on a column.
	ErrJoin = errors.New("join failed")
)

// Kind is the element type of a Series.
type Kind int

const (
	KindFloat Kind = iota
	KindTime
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	case KindString:
		return "string"
	}
	return "unknown"
}

// Series is one typed column of a Frame. Only the slice matching Kind is used.
// Nulls are NaN for floats, the zero time for timestamps and "" for strings.
type Series struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Times   []time.Time
	Strings []string
}

// NewFloatSeries creates a float column.
func NewFloatSeries(name string, values []float64) *Series {
	return &Series{Name: name, Kind: KindFloat, Floats: values}
}

// NewTimeSeries creates a timestamp column.
func NewTimeSeries(name string, values []time.Time) *Series {
	return &Series{Name: name, Kind: KindTime, Times: values}
}

// NewStringSeries creates a string column.
func NewStringSeries(name string, values []string) *Series {
	return &Series{Name: name, Kind: KindString, Strings: values}
}

// Len returns the number of cells.
func (s *Series) Len() int {
	switch s.Kind {
	case KindFloat:
		return len(s.Floats)
	case KindTime:
		return len(s.Times)
	default:
		return len(s.Strings)
	}
}

// IsNull reports whether cell i is null.
func (s *Series) IsNull(i int) bool {
	switch s.Kind {
	case KindFloat:
		return math.IsNaN(s.Floats[i])
	case KindTime:
		return s.Times[i].IsZero()
	default:
		return s.Strings[i] == ""
	}
}

// Value returns cell i as float64, time.Time or string; nulls come back as nil.
func (s *Series) Value(i int) any {
	if s.IsNull(i) {
		return nil
	}
	switch s.Kind {
	case KindFloat:
		return s.Floats[i]
	case KindTime:
		return s.Times[i]
	default:
		return s.Strings[i]
	}
}

// Text renders cell i the way a text export shows it.
func (s *Series) Text(i int) string {
	switch s.Kind {
	case KindFloat:
		return formatFloat(s.Floats[i])
	case KindTime:
		if s.Times[i].IsZero() {
			return "NaT"
		}
		return s.Times[i].Format(time.DateTime)
	default:
		return s.Strings[i]
	}
}

// Clone returns a deep copy.
func (s *Series) Clone() *Series {
	out := &Series{Name: s.Name, Kind: s.Kind}
	switch s.Kind {
	case KindFloat:
		out.Floats = append([]float64(nil), s.Floats...)
	case KindTime:
		out.Times = append([]time.Time(nil), s.Times...)
	default:
		out.Strings = append([]string(nil), s.Strings...)
	}
	return out
}

// take returns the rows at the given positions.
func (s *Series) take(rows []int) *Series {
	out := &Series{Name: s.Name, Kind: s.Kind}
	switch s.Kind {
	case KindFloat:
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = s.Floats[r]
		}
	case KindTime:
		out.Times = make([]time.Time, len(rows))
		for i, r := range rows {
			out.Times[i] = s.Times[r]
		}
	default:
		out.Strings = make([]string, len(rows))
		for i, r := range rows {
			out.Strings[i] = s.Strings[r]
		}
	}
	return out
}

// nulls returns a column of n null cells of the same kind and name.
func (s *Series) nulls(n int) *Series {
	out := &Series{Name: s.Name, Kind: s.Kind}
	switch s.Kind {
	case KindFloat:
		out.Floats = make([]float64, n)
		for i := range out.Floats {
			out.Floats[i] = math.NaN()
		}
	case KindTime:
		out.Times = make([]time.Time, n)
	default:
		out.Strings = make([]string, n)
	}
	return out
}

func (s *Series) appendSeries(other *Series) {
	switch s.Kind {
	case KindFloat:
		s.Floats = append(s.Floats, other.Floats...)
	case KindTime:
		s.Times = append(s.Times, other.Times...)
	default:
		s.Strings = append(s.Strings, other.Strings...)
	}
}

// Frame is the working state of a pipeline run: ordered typed columns plus
// an integer row index. Operations on a Frame return new frames.
type Frame struct {
	columns []*Series
	index   []int
}

// NewFrame builds a frame with a positional index.
func NewFrame(columns ...*Series) (*Frame, error) {
	n := 0
	if len(columns) > 0 {
		n = columns[0].Len()
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if c.Len() != n {
			return nil, fmt.Errorf("%w: column %q has %d rows, expected %d", ErrLengthMismatch, c.Name, c.Len(), n)
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return &Frame{columns: columns, index: positionalIndex(n)}, nil
}

// MustFrame is NewFrame for fixtures; it panics on error.
func MustFrame(columns ...*Series) *Frame {
	f, err := NewFrame(columns...)
	if err != nil {
		panic(err)
	}
	return f
}

// WithIndex returns a copy of the frame carrying idx as its row index.
func (f *Frame) WithIndex(idx []int) (*Frame, error) {
	if len(idx) != f.Len() {
		return nil, fmt.Errorf("%w: index has %d entries, frame has %d rows", ErrLengthMismatch, len(idx), f.Len())
	}
	out := f.Clone()
	out.index = append([]int(nil), idx...)
	return out, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.index)
}

// Index returns a copy of the row index.
func (f *Frame) Index() []int {
	out := make([]int, len(f.index))
	copy(out, f.index)
	return out
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column. The returned series is shared with the frame.
func (f *Frame) Column(name string) (*Series, error) {
	if i := f.position(name); i >= 0 {
		return f.columns[i], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
}

// HasColumn reports whether the frame has the named column.
func (f *Frame) HasColumn(name string) bool {
	return f.position(name) >= 0
}

// Floats returns a float column's values.
func (f *Frame) Floats(name string) ([]float64, error) {
	s, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if s.Kind != KindFloat {
		return nil, fmt.Errorf("%w: %s is %s, expected float", ErrKindMismatch, name, s.Kind)
	}
	return s.Floats, nil
}

// Times returns a timestamp column's values.
func (f *Frame) Times(name string) ([]time.Time, error) {
	s, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if s.Kind != KindTime {
		return nil, fmt.Errorf("%w: %s is %s, expected time", ErrKindMismatch, name, s.Kind)
	}
	return s.Times, nil
}

// Strings returns a string column's values.
func (f *Frame) Strings(name string) ([]string, error) {
	s, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if s.Kind != KindString {
		return nil, fmt.Errorf("%w: %s is %s, expected string", ErrKindMismatch, name, s.Kind)
	}
	return s.Strings, nil
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := &Frame{columns: make([]*Series, len(f.columns)), index: append([]int(nil), f.index...)}
	for i, c := range f.columns {
		out.columns[i] = c.Clone()
	}
	return out
}

// Table converts the frame to the exchange table, with the row index as indexes.
func (f *Frame) Table() domain.Table {
	t := domain.Table{Columns: make([]domain.Column, len(f.columns)), Indexes: make([]any, len(f.index))}
	for i, c := range f.columns {
		values := make([]any, c.Len())
		for r := range values {
			switch c.Kind {
			case KindFloat:
				values[r] = c.Floats[r]
			default:
				values[r] = c.Value(r)
			}
		}
		t.Columns[i] = domain.Column{Label: c.Name, Values: values}
	}
	for i, v := range f.index {
		t.Indexes[i] = v
	}
	return t
}

func (f *Frame) position(name string) int {
	for i, c := range f.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (f *Frame) take(rows []int) *Frame {
	out := &Frame{columns: make([]*Series, len(f.columns)), index: make([]int, len(rows))}
	for i, c := range f.columns {
		out.columns[i] = c.take(rows)
	}
	for i, r := range rows {
		out.index[i] = f.index[r]
	}
	return out
}

func (f *Frame) resetIndex() {
	f.index = positionalIndex(len(f.index))
}

func positionalIndex(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// formatFloat renders a float the way Python's str() does for ordinary
// magnitudes: integral values keep a trailing ".0".
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	abs := math.Abs(v)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v == math.Trunc(v) {
		s += ".0"
	}
	return s
}
