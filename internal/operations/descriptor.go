package operations

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"oceancli/internal/dataprocessing"
	"oceancli/internal/files"
	"oceancli/pkg/contracts/domain"
)

// Extractor kinds
const (
	ExtractorCSV     = "csv"
	ExtractorXLSX    = "xlsx"
	ExtractorGeoJSON = "geojson"
)

// ExtractorDescriptor selects and configures the extractor of a pipeline.
type ExtractorDescriptor struct {
	Kind        string                      `yaml:"kind"`
	Delimiter   string                      `yaml:"delimiter"`
	Whitespace  bool                        `yaml:"whitespace"`
	Columns     []int                       `yaml:"columns"`
	IndexColumn *int                        `yaml:"index_column"`
	Dates       *dataprocessing.DateParsing `yaml:"dates"`
	Sheet       string                      `yaml:"sheet"`
}

// StageDescriptor is the YAML form of one pipeline stage. Which fields are
// read depends on Op.
type StageDescriptor struct {
	Op         string              `yaml:"op"`
	Path       string              `yaml:"path"`
	Paths      []string            `yaml:"paths"`
	Column     string              `yaml:"column"`
	Columns    []string            `yaml:"columns"`
	Mapping    map[string]string   `yaml:"mapping"`
	Comparator string              `yaml:"comparator"`
	Value      any                 `yaml:"value"`
	Lower      string              `yaml:"lower"`
	Upper      string              `yaml:"upper"`
	Delta      string              `yaml:"delta"`
	Layout     string              `yaml:"layout"`
	Label      string              `yaml:"label"`
	Separator  string              `yaml:"separator"`
	Source     *PipelineDescriptor `yaml:"source"`
}

// PipelineDescriptor is the YAML form of a pipeline.
type PipelineDescriptor struct {
	Extractor ExtractorDescriptor `yaml:"extractor"`
	Stages    []StageDescriptor   `yaml:"stages"`
}

// Builder turns descriptors into pipelines.
type Builder struct {
	registry  *Registry
	runner    *Runner
	discovery *files.Discovery
	logger    *slog.Logger
}

// NewBuilder creates a Builder resolving relative input paths against
// inputDir. A nil registry uses DefaultRegistry().
func NewBuilder(registry *Registry, runner *Runner, inputDir string, logger *slog.Logger) *Builder {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		registry:  registry,
		runner:    runner,
		discovery: files.NewDiscovery(inputDir),
		logger:    logger,
	}
}

// Build creates the extractor described by desc and its pipeline.
func (b *Builder) Build(desc PipelineDescriptor) (Pipeline, error) {
	return b.BuildPipeline(nil, desc)
}

// BuildPipeline builds desc's stages on extractor. A nil extractor is built
// from desc.Extractor.
func (b *Builder) BuildPipeline(extractor dataprocessing.Extractor, desc PipelineDescriptor) (Pipeline, error) {
	if extractor == nil {
		var err error
		extractor, err = b.Extractor(desc.Extractor)
		if err != nil {
			return Pipeline{}, err
		}
	}

	p := NewPipeline(extractor, b.runner)
	for i, sd := range desc.Stages {
		fn, err := b.registry.Get(sd.Op)
		if err != nil {
			return Pipeline{}, err
		}
		if p, err = fn(b, p, sd); err != nil {
			b.logger.Debug("stage_descriptor_rejected",
				slog.String("op", sd.Op),
				slog.Int("stage_number", i+1),
				slog.String("error", err.Error()))
			return Pipeline{}, err
		}
	}
	return p, nil
}

// Extractor creates the extractor described by d.
func (b *Builder) Extractor(d ExtractorDescriptor) (dataprocessing.Extractor, error) {
	delim, err := parseDelimiter(d.Delimiter)
	if err != nil {
		return nil, err
	}
	opts := dataprocessing.CSVOptions{
		Delimiter:   delim,
		Whitespace:  d.Whitespace,
		Columns:     d.Columns,
		IndexColumn: d.IndexColumn,
	}

	switch strings.ToLower(d.Kind) {
	case "", ExtractorCSV:
		if d.Dates != nil {
			return dataprocessing.NewDatedCSVExtractor(opts, *d.Dates, b.logger), nil
		}
		return dataprocessing.NewRawCSVExtractor(opts, b.logger), nil
	case ExtractorXLSX:
		return dataprocessing.NewXLSXExtractor(d.Sheet, opts, d.Dates, b.logger), nil
	case ExtractorGeoJSON:
		return dataprocessing.NewGeoJSONExtractor(b.logger), nil
	}
	return nil, NewValidationError(OpExtract, fmt.Sprintf("unknown extractor kind %q", d.Kind))
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, NewValidationError(OpExtract, fmt.Sprintf("delimiter must be a single character, got %q", s))
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func (b *Builder) source(op string, d StageDescriptor) (Pipeline, error) {
	if d.Source == nil {
		return Pipeline{}, NewValidationError(op, "source pipeline is required")
	}
	return b.Build(*d.Source)
}

func requireField(op, field, value string) error {
	if value == "" {
		return NewValidationError(op, field+" is required")
	}
	return nil
}

func buildExtract(b *Builder, p Pipeline, d StageDescriptor) (Pipeline, error) {
	raw := d.Paths
	if d.Path != "" {
		raw = append([]string{d.Path}, raw...)
	}
	if len(raw) == 0 {
		return p, NewValidationError(OpExtract, "path is required")
	}
	paths, err := b.discovery.Expand(raw...)
	if err != nil {
		return p, &OperationError{Type: ErrorTypeValidation, Step: OpExtract, Message: "cannot resolve input paths", Cause: err}
	}

	p = p.Extract(paths[0])
	for _, path := range paths[1:] {
		next := NewPipeline(p.extractor, p.runner).Extract(path)
		p = p.ConcatData(next)
	}
	return p, nil
}

func buildRenameColumns(_ *Builder, p Pipeline, d StageDescriptor) (Pipeline, error) {
	if len(d.Mapping) == 0 {
		return p, NewValidationError(OpRenameColumns, "mapping is required")
	}
	return p.RenameColumns(d.Mapping), nil
}

func buildSortValues(_ *Builder, p Pipeline, d StageDescriptor) (Pipeline, error) {
	if err := requireField(OpSortValues, "column", d.Column); err != nil {
		return p, err
	}
	return p.SortValues(d.Column), nil
}

func predicate(op string, d StageDescriptor) (dataprocessing.Comparator, error) {
	if err := requireField(op, "column", d.Column); err != nil {
		return "", err
	}
	c, err := dataprocessing.ParseComparator(d.Comparator)
	if err != nil {
		return "", NewValidationError(op, err.Error())
	}
	if d.Value == nil {
		return "", NewValidationError(op, "value is required")
	}
	return c, nil
}

func buildFilterColumn(_ *Builder, p Pipeline, d StageDescriptor) (Pipeline, error) {
	c, err := predicate(OpFilterColumn, d)
	if err != nil {
		return p, err
	}
	return p.FilterColumn(d.Column, c, d.Value), nil
}

func buildFilterColumnAndInterpolate(_ *Builder, p Pipeline, d StageDescriptor) (Pipeline, error) {
	c, err := predicate(OpFilterColumnAndInterpolate, d)
	if err != nil {
		return p, err
	}
	return p.FilterColumnAndInterpolate(d.Column, c, d.Value), nil
}

func buildInterpolateOutliers(b *Builder, p Pipeline, d StageDescriptor) (Pipeline, error) {
	src, err := b.source(OpInterpolateOutliers, d)
	if err != nil {
		return p, err
	}
	col := d.Column
	if col == "" {
		col = domain.ColumnTimeStamp
	}
	return p.InterpolateOutliersFrom(src, col), nil
}

func buildCorrectDates(_ *Builder, p Pipeline, d StageDescriptor) (Pipeline, error) {
	if err := requireField(OpCorrectDates, "column", d.Column); err != nil {
		return p, err
	}
	lower, err := dataprocessing.ParseTime(d.Lower, d.Layout)
	if err != nil {
		return p, &OperationError{Type: ErrorTypeValidation, Step: OpCorrectDates, Message: "invalid lower bound", Cause: err}
	}
	upper, err := dataprocessing.ParseTime(d.Upper, d.Layout)
	if err != nil {
		return p, &OperationError{Type: ErrorTypeValidation, Step: OpCorrectDates, Message: "invalid upper bound", Cause: err}
	}
	delta, err := time.ParseDuration(d.Delta)
	if err != nil {
		return p, &OperationError{Type: ErrorTypeValidation, Step: OpCorrectDates, Message: "invalid delta", Cause: err}
	}
	return p.CorrectDates(lower, upper, d.Column, delta), nil
}

func buildMergeColumns(_ *Builder, p Pipeline, d StageDescriptor) (Pipeline, error) {
	if len(d.Columns) == 0 {
		return p, NewValidationError(OpMergeColumns, "columns are required")
	}
	if err := requireField(OpMergeColumns, "label", d.Label); err != nil {
		return p, err
	}
	sep := d.Separator
	if sep == "" {
		sep = " "
	}
	return p.MergeColumns(d.Columns, d.Label, sep), nil
}

func buildParseDatetimeColumn(_ *Builder, p Pipeline, d StageDescriptor) (Pipeline, error) {
	if err := requireField(OpParseDatetimeColumn, "column", d.Column); err != nil {
		return p, err
	}
	return p.ParseDatetimeColumn(d.Column, d.Layout), nil
}

func buildAddColumn(_ *Builder, p Pipeline, d StageDescriptor) (Pipeline, error) {
	if err := requireField(OpAddColumn, "label", d.Label); err != nil {
		return p, err
	}
	value := d.Value
	if s, ok := value.(string); ok && d.Layout != "" {
		t, err := dataprocessing.ParseTime(s, d.Layout)
		if err != nil {
			return p, &OperationError{Type: ErrorTypeValidation, Step: OpAddColumn, Message: "invalid value", Cause: err}
		}
		value = t
	}
	if _, err := constantSeries(d.Label, value, 0); err != nil {
		return p, &OperationError{Type: ErrorTypeValidation, Step: OpAddColumn, Message: "invalid value", Cause: err}
	}
	return p.AddConstantColumn(d.Label, value), nil
}

func buildConcatData(b *Builder, p Pipeline, d StageDescriptor) (Pipeline, error) {
	src, err := b.source(OpConcatData, d)
	if err != nil {
		return p, err
	}
	return p.ConcatData(src), nil
}

func buildAveragePerTimestamp(_ *Builder, p Pipeline, d StageDescriptor) (Pipeline, error) {
	if err := requireField(OpAveragePerTimestamp, "column", d.Column); err != nil {
		return p, err
	}
	return p.ComputeAveragePerTimestamp(d.Column), nil
}

func buildAveragePerDayHour(_ *Builder, p Pipeline, d StageDescriptor) (Pipeline, error) {
	if err := requireField(OpAveragePerDayHour, "column", d.Column); err != nil {
		return p, err
	}
	return p.ComputeAveragePerDayHour(d.Column), nil
}

func buildRemoveValuesNotIn(b *Builder, p Pipeline, d StageDescriptor) (Pipeline, error) {
	if err := requireField(OpRemoveValuesNotIn, "column", d.Column); err != nil {
		return p, err
	}
	src, err := b.source(OpRemoveValuesNotIn, d)
	if err != nil {
		return p, err
	}
	return p.RemoveValuesNotIn(d.Column, src), nil
}
