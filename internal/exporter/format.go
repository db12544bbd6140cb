package exporter

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"oceancli/pkg/contracts/domain"
)

// DefaultDateLayout is used when StoreOptions.DateLayout is empty.
const DefaultDateLayout = time.DateTime

// ExactDateLayout keeps fractional seconds, trailing zeros trimmed, so stored
// timestamps read back to the same instant.
const ExactDateLayout = "2006-01-02 15:04:05.999999999"

// IndexLabel names the index in Translation.Labels.
const IndexLabel = "indexes"

// StoreOptions control how a table is written.
type StoreOptions struct {
	// Name identifies the table inside multi-table stores: the worksheet of a
	// workbook or the SQL table of a database.
	Name string
	// DateLayout formats timestamp cells, Go layout or strftime pattern.
	DateLayout string
	// Index writes the table indexes as a leading unnamed column.
	Index bool
	// Translate substitutes cell values before writing.
	Translate *Translation
}

// Translation replaces the values of the listed columns, and of the indexes
// when Labels holds IndexLabel, through Dictionary. Values missing from the
// dictionary are kept.
type Translation struct {
	Labels     []string          `yaml:"labels"`
	Dictionary map[string]string `yaml:"dictionary"`
}

func (tr *Translation) applies(label string) bool {
	if tr == nil {
		return false
	}
	for _, l := range tr.Labels {
		if l == label {
			return true
		}
	}
	return false
}

func (tr *Translation) values(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
		key, ok := v.(string)
		if !ok {
			key = fmt.Sprint(v)
		}
		if t, found := tr.Dictionary[key]; found {
			out[i] = t
		}
	}
	return out
}

// translate returns a copy of t with the translation applied. t is not modified.
func translate(t domain.Table, tr *Translation) domain.Table {
	if tr == nil {
		return t
	}
	out := t.Clone()
	for i, c := range out.Columns {
		if tr.applies(c.Label) {
			out.Columns[i].Values = tr.values(c.Values)
		}
	}
	if out.Indexes != nil && tr.applies(IndexLabel) {
		out.Indexes = tr.values(out.Indexes)
	}
	return out
}

// cellFormatter renders cells as text.
type cellFormatter struct {
	decimals int
	layout   string
}

func (f cellFormatter) format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return formatFloat(x, f.decimals)
	case float32:
		return formatFloat(float64(x), f.decimals)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return formatBool(x)
	case string:
		return x
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(f.layout)
	case time.Duration:
		return formatDuration(x)
	}
	return fmt.Sprint(v)
}

// formatFloat formats with a fixed number of decimals; NaN is an empty cell.
func formatFloat(v float64, decimals int) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// formatDuration writes durations as "D days HH:MM:SS", e.g. "0 days 03:10:00".
func formatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%s%d days %02d:%02d:%02d", sign, days, h, m, s)
}

// records renders t as a header and rows of text.
func (f cellFormatter) records(t domain.Table, index bool) ([]string, [][]string) {
	header := make([]string, 0, len(t.Columns)+1)
	if index {
		header = append(header, "")
	}
	header = append(header, t.Labels()...)

	rows := make([][]string, t.Len())
	for r := range rows {
		row := make([]string, 0, len(header))
		if index {
			var idx any = r
			if t.Indexes != nil {
				idx = t.Indexes[r]
			}
			row = append(row, f.format(idx))
		}
		for _, c := range t.Columns {
			row = append(row, f.format(c.Values[r]))
		}
		rows[r] = row
	}
	return header, rows
}
