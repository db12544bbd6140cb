package dataprocessing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/golang/snappy"
	"github.com/xuri/excelize/v2"

	"oceancli/pkg/contracts/domain"
)

// SnappySuffix marks inputs and outputs stored as snappy framed streams.
const SnappySuffix = ".sz"

// nullTokens are raw cells read as null.
var nullTokens = map[string]struct{}{
	"":      {},
	"NaN":   {},
	"nan":   {},
	"NA":    {},
	"<nil>": {},
	"NaT":   {},
}

// Extractor reads an input into a Frame.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Frame, error)
}

// CSVOptions control how delimited text is read.
type CSVOptions struct {
	// Delimiter separates fields; zero means ','.
	Delimiter rune `yaml:"delimiter"`
	// Whitespace treats any run of blanks as one separator.
	Whitespace bool `yaml:"whitespace"`
	// Columns restricts the read to these zero-based positions (file order is kept).
	Columns []int `yaml:"columns"`
	// IndexColumn is the position, within the selected columns, of the column
	// holding the row index.
	IndexColumn *int `yaml:"index_column"`
}

// DateParsing names the columns parsed as timestamps at extraction time.
type DateParsing struct {
	Columns []string `yaml:"columns"`
	// Layout is a Go layout or strftime pattern; empty tries the common formats.
	Layout string `yaml:"layout"`
}

// CSVExtractor reads delimited text. Paths ending in SnappySuffix are decompressed first.
type CSVExtractor struct {
	opts   CSVOptions
	dates  *DateParsing
	logger *slog.Logger
}

// NewRawCSVExtractor reads every column as numbers or strings.
func NewRawCSVExtractor(opts CSVOptions, logger *slog.Logger) *CSVExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVExtractor{opts: opts, logger: logger}
}

// NewDatedCSVExtractor additionally parses the named columns as timestamps.
func NewDatedCSVExtractor(opts CSVOptions, dates DateParsing, logger *slog.Logger) *CSVExtractor {
	e := NewRawCSVExtractor(opts, logger)
	e.dates = &dates
	return e
}

// Extract implements Extractor.
func (e *CSVExtractor) Extract(ctx context.Context, path string) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, closer, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	delimiter := e.opts.Delimiter
	if delimiter == 0 {
		delimiter = ','
	}
	if e.opts.Whitespace {
		r, err = collapseWhitespace(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrExtract, path, err)
		}
		delimiter = ','
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExtract, path, err)
	}
	names, records, err := readColumns(data, delimiter)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExtract, path, err)
	}
	frame, err := assemble(names, records, e.opts, e.dates)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	e.logger.DebugContext(ctx, "extract_completed",
		slog.String("path", path),
		slog.Int("rows", frame.Len()),
		slog.Int("columns", len(frame.columns)))
	return frame, nil
}

// readColumns splits delimited text with a header row into column names and
// per-column raw cells. A header without rows yields empty columns.
func readColumns(data []byte, delimiter rune) ([]string, [][]string, error) {
	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.WithDelimiter(delimiter),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithLazyQuotes(true),
	)
	if df.Err != nil {
		names, ok := headerOnly(data, delimiter)
		if !ok {
			return nil, nil, df.Err
		}
		return names, make([][]string, len(names)), nil
	}

	names := df.Names()
	records := make([][]string, len(names))
	for i, name := range names {
		records[i] = df.Col(name).Records()
	}
	return names, records, nil
}

// headerOnly returns the header of data when it is the only record.
func headerOnly(data []byte, delimiter rune) ([]string, bool) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil || len(rows) != 1 {
		return nil, false
	}
	return rows[0], true
}

// XLSXExtractor reads one worksheet of a workbook; the first row is the header.
type XLSXExtractor struct {
	sheet  string
	opts   CSVOptions
	dates  *DateParsing
	logger *slog.Logger
}

// NewXLSXExtractor reads sheet, or the first sheet when sheet is empty.
func NewXLSXExtractor(sheet string, opts CSVOptions, dates *DateParsing, logger *slog.Logger) *XLSXExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXExtractor{sheet: sheet, opts: opts, dates: dates, logger: logger}
}

// Extract implements Extractor.
func (e *XLSXExtractor) Extract(ctx context.Context, path string) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open file: %w", ErrExtract, err)
	}
	defer f.Close()

	sheet := e.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: %s has no sheets", ErrExtract, path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %s: %w", ErrExtract, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %s is empty", ErrExtract, sheet)
	}

	names := rows[0]
	records := make([][]string, len(names))
	for _, row := range rows[1:] {
		for c := range names {
			cell := ""
			if c < len(row) {
				cell = row[c]
			}
			records[c] = append(records[c], cell)
		}
	}
	frame, err := assemble(names, records, e.opts, e.dates)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	e.logger.DebugContext(ctx, "extract_completed",
		slog.String("path", path),
		slog.String("sheet", sheet),
		slog.Int("rows", frame.Len()))
	return frame, nil
}

// GeoJSONExtractor reads the Point features of a FeatureCollection into one
// row per feature: the feature properties followed by longitude and latitude.
type GeoJSONExtractor struct {
	logger *slog.Logger
}

// NewGeoJSONExtractor creates a GeoJSON extractor.
func NewGeoJSONExtractor(logger *slog.Logger) *GeoJSONExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeoJSONExtractor{logger: logger}
}

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		Properties map[string]any `json:"properties"`
		Geometry   *struct {
			Type        string          `json:"type"`
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Extract implements Extractor.
func (e *GeoJSONExtractor) Extract(ctx context.Context, path string) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, closer, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExtract, path, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%w: %s is a %q, expected FeatureCollection", ErrExtract, path, fc.Type)
	}

	var names []string
	seen := make(map[string]struct{})
	for _, feat := range fc.Features {
		keys := make([]string, 0, len(feat.Properties))
		for k := range feat.Properties {
			if _, ok := seen[k]; !ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = struct{}{}
			names = append(names, k)
		}
	}

	records := make([][]string, len(names))
	lon := make([]float64, len(fc.Features))
	lat := make([]float64, len(fc.Features))
	for i, feat := range fc.Features {
		for c, name := range names {
			records[c] = append(records[c], propertyText(feat.Properties[name]))
		}
		lon[i], lat[i] = math.NaN(), math.NaN()
		if feat.Geometry != nil && feat.Geometry.Type == "Point" {
			var coords []float64
			if err := json.Unmarshal(feat.Geometry.Coordinates, &coords); err == nil && len(coords) >= 2 {
				lon[i], lat[i] = coords[0], coords[1]
			}
		}
	}
	frame, err := assemble(names, records, CSVOptions{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	frame, err = AddColumn(frame, NewFloatSeries(domain.ColumnLongitude, lon))
	if err != nil {
		return nil, err
	}
	frame, err = AddColumn(frame, NewFloatSeries(domain.ColumnLatitude, lat))
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "extract_completed",
		slog.String("path", path),
		slog.Int("features", frame.Len()))
	return frame, nil
}

func propertyText(v any) string {
	switch p := v.(type) {
	case nil:
		return ""
	case string:
		return p
	case float64:
		return strconv.FormatFloat(p, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(p)
	default:
		b, _ := json.Marshal(p)
		return string(b)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openInput opens path, decompressing snappy framed files.
func openInput(path string) (io.Reader, io.Closer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nopCloser{}, fmt.Errorf("%w: %w", ErrExtract, err)
	}
	if strings.HasSuffix(path, SnappySuffix) {
		return snappy.NewReader(file), file, nil
	}
	return file, file, nil
}

func collapseWhitespace(r io.Reader) (io.Reader, error) {
	var buf bytes.Buffer
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		buf.WriteString(strings.Join(fields, ","))
		buf.WriteByte('\n')
	}
	return &buf, scanner.Err()
}

// assemble turns raw column records into a typed frame: column selection,
// index extraction, timestamp parsing and numeric detection.
func assemble(names []string, records [][]string, opts CSVOptions, dates *DateParsing) (*Frame, error) {
	positions := make([]int, 0, len(names))
	if len(opts.Columns) == 0 {
		for i := range names {
			positions = append(positions, i)
		}
	} else {
		positions = append(positions, opts.Columns...)
		sort.Ints(positions)
		for _, p := range positions {
			if p < 0 || p >= len(names) {
				return nil, fmt.Errorf("%w: column position %d out of range (%d columns)", ErrExtract, p, len(names))
			}
		}
	}

	var index []int
	if opts.IndexColumn != nil {
		at := *opts.IndexColumn
		if at < 0 || at >= len(positions) {
			return nil, fmt.Errorf("%w: index column %d out of range (%d selected columns)", ErrExtract, at, len(positions))
		}
		raw := records[positions[at]]
		index = make([]int, len(raw))
		for i, cell := range raw {
			v, err := strconv.Atoi(strings.TrimSpace(cell))
			if err != nil {
				return nil, fmt.Errorf("%w: index value %q on row %d", ErrParse, cell, i)
			}
			index[i] = v
		}
		positions = append(positions[:at:at], positions[at+1:]...)
	}

	dateColumns := make(map[string]struct{})
	if dates != nil {
		for _, name := range dates.Columns {
			dateColumns[name] = struct{}{}
		}
	}

	columns := make([]*Series, 0, len(positions))
	for _, p := range positions {
		name := strings.TrimSpace(names[p])
		raw := records[p]
		if _, ok := dateColumns[name]; ok {
			s, err := parseTimeColumn(name, raw, dates.Layout)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrExtract, err)
			}
			columns = append(columns, s)
			delete(dateColumns, name)
			continue
		}
		columns = append(columns, detectColumn(name, raw))
	}
	if len(dateColumns) > 0 {
		missing := make([]string, 0, len(dateColumns))
		for name := range dateColumns {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: date columns %w: %s", ErrExtract, ErrMissingColumn, strings.Join(missing, ", "))
	}

	if len(columns) == 0 {
		rows := 0
		if len(records) > 0 {
			rows = len(records[0])
		}
		if index == nil {
			index = positionalIndex(rows)
		}
		return &Frame{index: index}, nil
	}
	frame, err := NewFrame(columns...)
	if err != nil {
		return nil, err
	}
	if index != nil {
		return frame.WithIndex(index)
	}
	return frame, nil
}

func parseTimeColumn(name string, raw []string, layout string) (*Series, error) {
	out := NewTimeSeries(name, make([]time.Time, len(raw)))
	for i, cell := range raw {
		if isNullToken(cell) {
			continue
		}
		t, err := ParseTime(cell, layout)
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: %w", name, i, err)
		}
		out.Times[i] = t
	}
	return out, nil
}

func detectColumn(name string, raw []string) *Series {
	floats := make([]float64, len(raw))
	for i, cell := range raw {
		if isNullToken(cell) {
			floats[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			strs := make([]string, len(raw))
			for j, c := range raw {
				if !isNullToken(c) {
					strs[j] = c
				}
			}
			return NewStringSeries(name, strs)
		}
		floats[i] = v
	}
	return NewFloatSeries(name, floats)
}

func isNullToken(cell string) bool {
	_, ok := nullTokens[strings.TrimSpace(cell)]
	return ok
}
