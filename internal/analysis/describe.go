package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"oceancli/pkg/contracts/domain"
)

// Describe row labels.
const (
	StatCount = "count"
	StatMean  = "mean"
	StatStd   = "std"
	StatMin   = "min"
	StatQ1    = "25%"
	StatQ2    = "50%"
	StatQ3    = "75%"
	StatMax   = "max"
)

// Null/unique and continuity column labels.
const (
	ColumnNullValues        = "Null_values"
	ColumnUniqueValues      = "Unique values"
	ColumnDifference        = "Difference"
	ColumnPreviousTimeStamp = "Previous TimeStamp"
	ColumnNextTimeStamp     = "Next TimeStamp"
)

// ErrNoTimestamps is returned when a continuity check finds no timestamp column.
var ErrNoTimestamps = errors.New("no timestamp column")

var (
	numericOrder = []string{StatCount, StatMean, StatStd, StatMin, StatQ1, StatQ2, StatQ3, StatMax}
	// a frame holding a datetime column reports std last
	datetimeOrder = []string{StatCount, StatMean, StatMin, StatQ1, StatQ2, StatQ3, StatMax, StatStd}
)

// Analyzer computes the descriptive tables and spike results of reading series.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer. A nil logger uses slog.Default().
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger}
}

type columnKind int

const (
	kindNumeric columnKind = iota
	kindTime
	kindOther
)

func kindOf(values []any) columnKind {
	kind := kindNumeric
	for _, v := range values {
		switch v.(type) {
		case nil:
		case time.Time:
			kind = kindTime
		case float64, float32, int, int64, int32:
		default:
			return kindOther
		}
	}
	return kind
}

func numeric(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	}
	return math.NaN()
}

func isNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case time.Time:
		return x.IsZero()
	}
	return false
}

// Describe summarises every numeric and timestamp column: count, mean,
// standard deviation (n-1), min, quartiles and max. Timestamp columns report
// nil mean and std. Columns of any other type are left out.
func (a *Analyzer) Describe(ctx context.Context, t domain.Table) (domain.Table, error) {
	if err := t.Validate(); err != nil {
		return domain.Table{}, err
	}
	order := numericOrder
	var columns []domain.Column
	for _, c := range t.Columns {
		switch kindOf(c.Values) {
		case kindTime:
			order = datetimeOrder
			columns = append(columns, c)
		case kindNumeric:
			columns = append(columns, c)
		}
	}

	out := domain.Table{Indexes: make([]any, len(order))}
	for i, label := range order {
		out.Indexes[i] = label
	}
	for _, c := range columns {
		var stats map[string]any
		if kindOf(c.Values) == kindTime {
			stats = describeTimes(c.Values)
		} else {
			stats = describeFloats(c.Values)
		}
		values := make([]any, len(order))
		for i, label := range order {
			values[i] = stats[label]
		}
		out.Columns = append(out.Columns, domain.Column{Label: c.Label, Values: values})
	}
	a.logger.DebugContext(ctx, "describe_completed", slog.Int("columns", len(out.Columns)))
	return out, nil
}

func describeFloats(values []any) map[string]any {
	data := make([]float64, 0, len(values))
	for _, v := range values {
		if f := numeric(v); !math.IsNaN(f) {
			data = append(data, f)
		}
	}
	sort.Float64s(data)
	stats := map[string]any{
		StatCount: float64(len(data)),
		StatMean:  math.NaN(),
		StatStd:   math.NaN(),
		StatMin:   math.NaN(),
		StatQ1:    math.NaN(),
		StatQ2:    math.NaN(),
		StatQ3:    math.NaN(),
		StatMax:   math.NaN(),
	}
	if len(data) == 0 {
		return stats
	}
	stats[StatMean] = stat.Mean(data, nil)
	if len(data) > 1 {
		stats[StatStd] = stat.StdDev(data, nil)
	}
	stats[StatMin] = floats.Min(data)
	stats[StatQ1] = percentileSorted(data, 0.25)
	stats[StatQ2] = percentileSorted(data, 0.50)
	stats[StatQ3] = percentileSorted(data, 0.75)
	stats[StatMax] = floats.Max(data)
	return stats
}

func describeTimes(values []any) map[string]any {
	data := make([]time.Time, 0, len(values))
	for _, v := range values {
		if ts, ok := v.(time.Time); ok && !ts.IsZero() {
			data = append(data, ts)
		}
	}
	sort.Slice(data, func(i, j int) bool { return data[i].Before(data[j]) })
	stats := map[string]any{StatCount: float64(len(data)), StatMean: nil, StatStd: nil}
	if len(data) == 0 {
		return stats
	}
	stats[StatMin] = data[0]
	stats[StatQ1] = timePercentile(data, 0.25)
	stats[StatQ2] = timePercentile(data, 0.50)
	stats[StatQ3] = timePercentile(data, 0.75)
	stats[StatMax] = data[len(data)-1]
	return stats
}

// timePercentile interpolates between sorted timestamps in whole durations so
// nanosecond precision is kept.
func timePercentile(sorted []time.Time, q float64) time.Time {
	h := q * float64(len(sorted)-1)
	lower := int(math.Floor(h))
	upper := int(math.Ceil(h))
	if lower == upper {
		return sorted[lower]
	}
	span := sorted[upper].Sub(sorted[lower])
	return sorted[lower].Add(time.Duration(float64(span) * (h - float64(lower))))
}

// NullAndUnique counts, per column, the null cells and the distinct non-null
// values. The result is indexed by column label.
func (a *Analyzer) NullAndUnique(ctx context.Context, t domain.Table) (domain.Table, error) {
	if err := t.Validate(); err != nil {
		return domain.Table{}, err
	}
	nulls := make([]any, len(t.Columns))
	uniques := make([]any, len(t.Columns))
	labels := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		labels[i] = c.Label
		seen := make(map[any]struct{})
		n := 0
		for _, v := range c.Values {
			if isNull(v) {
				n++
				continue
			}
			seen[uniqueKey(v)] = struct{}{}
		}
		nulls[i] = n
		uniques[i] = len(seen)
	}
	a.logger.DebugContext(ctx, "null_unique_completed", slog.Int("columns", len(t.Columns)))
	return domain.Table{
		Columns: []domain.Column{
			{Label: ColumnNullValues, Values: nulls},
			{Label: ColumnUniqueValues, Values: uniques},
		},
		Indexes: labels,
	}, nil
}

func uniqueKey(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UnixNano()
	case float64, float32, int, int64, int32:
		return numeric(x)
	}
	return fmt.Sprint(v)
}

// DataContinuity reports the gaps between consecutive timestamps whose
// duration occurs fewer than countThreshold times across the series. Each
// row holds the gap and the timestamps on both sides.
func (a *Analyzer) DataContinuity(ctx context.Context, t domain.Table, countThreshold int) (domain.Table, error) {
	col, ok := t.Column(domain.ColumnTimeStamp)
	if !ok {
		return domain.Table{}, fmt.Errorf("data continuity: %w: %s", ErrNoTimestamps, domain.ColumnTimeStamp)
	}
	stamps := make([]time.Time, len(col.Values))
	for i, v := range col.Values {
		if ts, ok := v.(time.Time); ok {
			stamps[i] = ts
		}
	}

	type gap struct {
		diff       time.Duration
		prev, next time.Time
	}
	var gaps []gap
	counts := make(map[time.Duration]int)
	for i := 1; i < len(stamps); i++ {
		if stamps[i].IsZero() || stamps[i-1].IsZero() {
			continue
		}
		d := stamps[i].Sub(stamps[i-1])
		counts[d]++
		gaps = append(gaps, gap{diff: d, prev: stamps[i-1], next: stamps[i]})
	}

	var diffs, prevs, nexts, indexes []any
	for _, g := range gaps {
		if counts[g.diff] >= countThreshold {
			continue
		}
		indexes = append(indexes, len(diffs))
		diffs = append(diffs, g.diff)
		prevs = append(prevs, g.prev)
		nexts = append(nexts, g.next)
	}
	if indexes == nil {
		indexes = []any{}
	}
	a.logger.DebugContext(ctx, "data_continuity_completed",
		slog.Int("intervals", len(gaps)),
		slog.Int("irregular", len(diffs)))
	return domain.Table{
		Columns: []domain.Column{
			{Label: ColumnDifference, Values: diffs},
			{Label: ColumnPreviousTimeStamp, Values: prevs},
			{Label: ColumnNextTimeStamp, Values: nexts},
		},
		Indexes: indexes,
	}, nil
}
