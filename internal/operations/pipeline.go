package operations

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"oceancli/internal/dataprocessing"
	"oceancli/pkg/contracts/domain"
)

// Operation names, as used in stage descriptors.
const (
	OpExtract                    = "extract"
	OpRenameColumns              = "rename_columns"
	OpSortValues                 = "sort_values"
	OpFilterColumn               = "filter_column"
	OpFilterColumnAndInterpolate = "filter_column_and_interpolate"
	OpInterpolateOutliers        = "interpolate_outliers"
	OpCorrectDates               = "correct_dates"
	OpMergeColumns               = "merge_columns"
	OpParseDatetimeColumn        = "parse_datetime_column"
	OpAddColumn                  = "add_column"
	OpConcatData                 = "concat_data"
	OpAveragePerTimestamp        = "compute_average_per_timestamp"
	OpAveragePerDayHour          = "compute_average_per_day_hour"
	OpRemoveValuesNotIn          = "remove_values_not_in"
	OpLoad                       = "load"
)

// Pipeline is an immutable ETL builder. Every method returns a new Pipeline
// whose stage list is the receiver's plus one stage; the receiver is left
// unchanged, so a Pipeline can be branched safely:
//
//	base := operations.NewPipeline(extractor, runner).Extract(path).SortValues(domain.ColumnTimeStamp)
//	north := base.FilterColumn(domain.ColumnLatitude, dataprocessing.GreaterOrEqual, 34.2)
//	south := base.FilterColumn(domain.ColumnLatitude, dataprocessing.LessThan, 34.2)
type Pipeline struct {
	extractor dataprocessing.Extractor
	runner    *Runner
	stages    []Stage
}

// NewPipeline creates an empty pipeline reading inputs with extractor and
// executed by runner. A nil runner uses NewRunner(nil, nil).
func NewPipeline(extractor dataprocessing.Extractor, runner *Runner) Pipeline {
	if runner == nil {
		runner = NewRunner(nil, nil)
	}
	return Pipeline{extractor: extractor, runner: runner}
}

// Stages returns a copy of the stage list.
func (p Pipeline) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

// With returns a new pipeline with stage appended.
func (p Pipeline) With(stage Stage) Pipeline {
	stages := make([]Stage, len(p.stages), len(p.stages)+1)
	copy(stages, p.stages)
	p.stages = append(stages, stage)
	return p
}

// Run executes the stage list from an empty state.
func (p Pipeline) Run(ctx context.Context) (*dataprocessing.Frame, error) {
	return p.RunFrom(ctx, nil)
}

// RunFrom executes the stage list starting from initial.
func (p Pipeline) RunFrom(ctx context.Context, initial *dataprocessing.Frame) (*dataprocessing.Frame, error) {
	runner := p.runner
	if runner == nil {
		runner = NewRunner(nil, nil)
	}
	return runner.Run(ctx, p.stages, initial)
}

// Load runs p and converts its final frame with loader. A loader failure is
// reported as a load stage error.
func Load[T any](ctx context.Context, p Pipeline, loader dataprocessing.Loader[T]) (T, error) {
	var zero T
	f, err := p.Run(ctx)
	if err != nil {
		return zero, err
	}
	v, err := loader.Load(f)
	if err != nil {
		return zero, WrapError(err, OpLoad)
	}
	return v, nil
}

// Extract replaces the state with the content of path.
func (p Pipeline) Extract(path string) Pipeline {
	extractor := p.extractor
	return p.With(newStage(OpExtract, fmt.Sprintf("extract(%s)", path),
		func(ctx context.Context, _ *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			if extractor == nil {
				return nil, fmt.Errorf("%w: no extractor configured", dataprocessing.ErrExtract)
			}
			return extractor.Extract(ctx, path)
		}))
}

// RenameColumns substitutes column labels; unmapped labels pass through.
func (p Pipeline) RenameColumns(mapping map[string]string) Pipeline {
	m := make(map[string]string, len(mapping))
	pairs := make([]string, 0, len(mapping))
	for k, v := range mapping {
		m[k] = v
		pairs = append(pairs, k+"->"+v)
	}
	sort.Strings(pairs)
	return p.With(newStage(OpRenameColumns, fmt.Sprintf("rename_columns(%s)", strings.Join(pairs, ", ")),
		func(_ context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			return dataprocessing.RenameColumns(f, m), nil
		}))
}

// SortValues stably sorts rows ascending by col and resets the index.
func (p Pipeline) SortValues(col string) Pipeline {
	return p.With(newStage(OpSortValues, fmt.Sprintf("sort_values(%s)", col),
		func(_ context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			return dataprocessing.SortValues(f, col)
		}))
}

// FilterColumn keeps the rows where cmp(row[col], value) holds.
func (p Pipeline) FilterColumn(col string, cmp dataprocessing.Comparator, value any) Pipeline {
	return p.With(newStage(OpFilterColumn, fmt.Sprintf("filter_column(%s %s %v)", col, cmp, value),
		func(_ context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			return dataprocessing.FilterColumn(f, col, cmp, value)
		}))
}

// FilterColumnAndInterpolate nulls col where the predicate fails and
// interpolates every float column.
func (p Pipeline) FilterColumnAndInterpolate(col string, cmp dataprocessing.Comparator, value any) Pipeline {
	return p.With(newStage(OpFilterColumnAndInterpolate, fmt.Sprintf("filter_column_and_interpolate(%s %s %v)", col, cmp, value),
		func(_ context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			return dataprocessing.FilterColumnAndInterpolate(f, col, cmp, value)
		}))
}

// InterpolateOutliers nulls and interpolates the readings flagged in spikes.
func (p Pipeline) InterpolateOutliers(spikes domain.Spikes, tsCol string) Pipeline {
	return p.With(newStage(OpInterpolateOutliers, fmt.Sprintf("interpolate_outliers(%d spikes, %s)", spikes.Len(), tsCol),
		func(_ context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			return dataprocessing.InterpolateOutliers(f, spikes, tsCol)
		}))
}

// InterpolateOutliersFrom loads the spikes from the result of source, a
// previously stored spike file, and interpolates them.
func (p Pipeline) InterpolateOutliersFrom(source Pipeline, tsCol string) Pipeline {
	return p.With(newStage(OpInterpolateOutliers, fmt.Sprintf("interpolate_outliers(stored, %s)", tsCol),
		func(ctx context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			spikes, err := Load[domain.Spikes](ctx, source, dataprocessing.SpikesLoader{})
			if err != nil {
				return nil, err
			}
			return dataprocessing.InterpolateOutliers(f, spikes, tsCol)
		}))
}

// CorrectDates subtracts delta from the timestamps of col within [lower, upper].
func (p Pipeline) CorrectDates(lower, upper time.Time, col string, delta time.Duration) Pipeline {
	return p.With(newStage(OpCorrectDates, fmt.Sprintf("correct_dates(%s in [%s, %s] -%s)", col, lower.Format(time.DateTime), upper.Format(time.DateTime), delta),
		func(_ context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			return dataprocessing.CorrectDates(f, lower, upper, col, delta)
		}))
}

// MergeColumns joins cols with sep into newCol and drops them.
func (p Pipeline) MergeColumns(cols []string, newCol, sep string) Pipeline {
	cols = append([]string(nil), cols...)
	return p.With(newStage(OpMergeColumns, fmt.Sprintf("merge_columns(%s -> %s)", strings.Join(cols, sep), newCol),
		func(_ context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			return dataprocessing.MergeColumns(f, cols, newCol, sep)
		}))
}

// ParseDatetimeColumn parses a string column into timestamps. An empty
// layout auto-detects.
func (p Pipeline) ParseDatetimeColumn(col, layout string) Pipeline {
	return p.With(newStage(OpParseDatetimeColumn, fmt.Sprintf("parse_datetime_column(%s, %q)", col, layout),
		func(_ context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			return dataprocessing.ParseDatetimeColumn(f, col, layout)
		}))
}

// AddColumn inserts or replaces a column.
func (p Pipeline) AddColumn(s *dataprocessing.Series) Pipeline {
	s = s.Clone()
	return p.With(newStage(OpAddColumn, fmt.Sprintf("add_column(%s)", s.Name),
		func(_ context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			return dataprocessing.AddColumn(f, s)
		}))
}

// AddConstantColumn inserts or replaces a column holding value on every row.
// value is a number, a string or a time.Time.
func (p Pipeline) AddConstantColumn(label string, value any) Pipeline {
	return p.With(newStage(OpAddColumn, fmt.Sprintf("add_column(%s = %v)", label, value),
		func(_ context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			s, err := constantSeries(label, value, f.Len())
			if err != nil {
				return nil, err
			}
			return dataprocessing.AddColumn(f, s)
		}))
}

func constantSeries(label string, value any, n int) (*dataprocessing.Series, error) {
	switch v := value.(type) {
	case time.Time:
		out := make([]time.Time, n)
		for i := range out {
			out[i] = v
		}
		return dataprocessing.NewTimeSeries(label, out), nil
	case string:
		out := make([]string, n)
		for i := range out {
			out[i] = v
		}
		return dataprocessing.NewStringSeries(label, out), nil
	}
	f, ok := toFloat(value)
	if !ok {
		return nil, fmt.Errorf("%w: cannot build column %s from %T", dataprocessing.ErrKindMismatch, label, value)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = f
	}
	return dataprocessing.NewFloatSeries(label, out), nil
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
	}
	return 0, false
}

// ConcatData runs other and appends its rows to the state.
func (p Pipeline) ConcatData(other Pipeline) Pipeline {
	return p.With(newStage(OpConcatData, fmt.Sprintf("concat_data(%d stages)", len(other.stages)),
		func(ctx context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			tail, err := other.Run(ctx)
			if err != nil {
				return nil, err
			}
			return dataprocessing.Concat(f, tail)
		}))
}

// ComputeAveragePerTimestamp averages the float columns per HH:MM of col.
func (p Pipeline) ComputeAveragePerTimestamp(col string) Pipeline {
	return p.With(newStage(OpAveragePerTimestamp, fmt.Sprintf("compute_average_per_timestamp(%s)", col),
		func(_ context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			return dataprocessing.AveragePerTimestamp(f, col)
		}))
}

// ComputeAveragePerDayHour averages the float columns per calendar hour of
// col and fills missing hours from the same hour of other days.
func (p Pipeline) ComputeAveragePerDayHour(col string) Pipeline {
	return p.With(newStage(OpAveragePerDayHour, fmt.Sprintf("compute_average_per_day_hour(%s)", col),
		func(_ context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			return dataprocessing.AveragePerDayHour(f, col)
		}))
}

// RemoveValuesNotIn keeps the rows whose col value appears in col of the
// result of other.
func (p Pipeline) RemoveValuesNotIn(col string, other Pipeline) Pipeline {
	return p.With(newStage(OpRemoveValuesNotIn, fmt.Sprintf("remove_values_not_in(%s)", col),
		func(ctx context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
			reference, err := other.Run(ctx)
			if err != nil {
				return nil, err
			}
			return dataprocessing.RemoveValuesNotIn(f, col, reference)
		}))
}
