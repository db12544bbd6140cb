package dataprocessing

import (
	"math"
	"sort"
	"time"
)

// ClockKeyLayout is the key format of AveragePerTimestamp.
const ClockKeyLayout = "15:04"

// AveragePerTimestamp groups rows by the clock time (HH:MM) of col across all
// dates and averages every float column, skipping nulls. The result has the
// key as a string column followed by the float columns, one row per key in
// ascending order, with a positional index. Non-float columns are dropped.
func AveragePerTimestamp(f *Frame, col string) (*Frame, error) {
	stamps, err := f.Times(col)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(stamps))
	for i, ts := range stamps {
		if !ts.IsZero() {
			keys[i] = ts.Format(ClockKeyLayout)
		}
	}
	groups := groupRows(keys)
	order := make([]string, 0, len(groups))
	for k := range groups {
		order = append(order, k)
	}
	sort.Strings(order)

	out := []*Series{NewStringSeries(col, order)}
	for _, c := range floatColumns(f, col) {
		means := make([]float64, len(order))
		for i, k := range order {
			means[i] = nanMean(c.Floats, groups[k])
		}
		out = append(out, NewFloatSeries(c.Name, means))
	}
	return NewFrame(out...)
}

// AveragePerDayHour averages every float column per calendar hour of col,
// reindexes the result to the contiguous hourly range between the first and
// last hour, and fills the gaps from the same hour of day: first carried
// forward in time, then carried backward for hours with no earlier value.
// The result has col first followed by the float columns, with a positional
// index.
func AveragePerDayHour(f *Frame, col string) (*Frame, error) {
	stamps, err := f.Times(col)
	if err != nil {
		return nil, err
	}
	hourOf := make(map[int64]time.Time)
	keys := make([]int64, len(stamps))
	valid := make([]bool, len(stamps))
	for i, ts := range stamps {
		if ts.IsZero() {
			continue
		}
		h := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, ts.Location())
		keys[i] = h.UnixNano()
		valid[i] = true
		hourOf[keys[i]] = h
	}
	groups := make(map[int64][]int)
	for i, k := range keys {
		if valid[i] {
			groups[k] = append(groups[k], i)
		}
	}
	columns := floatColumns(f, col)
	if len(groups) == 0 {
		out := []*Series{NewTimeSeries(col, nil)}
		for _, c := range columns {
			out = append(out, NewFloatSeries(c.Name, nil))
		}
		return NewFrame(out...)
	}

	var first, last time.Time
	for _, h := range hourOf {
		if first.IsZero() || h.Before(first) {
			first = h
		}
		if last.IsZero() || h.After(last) {
			last = h
		}
	}
	var hours []time.Time
	for h := first; !h.After(last); h = h.Add(time.Hour) {
		hours = append(hours, h)
	}

	// rows of the reindexed frame sharing an hour of day, in ascending time
	byHourOfDay := make(map[int][]int)
	for i, h := range hours {
		byHourOfDay[h.Hour()] = append(byHourOfDay[h.Hour()], i)
	}

	out := []*Series{NewTimeSeries(col, hours)}
	for _, c := range columns {
		values := make([]float64, len(hours))
		for i, h := range hours {
			rows, ok := groups[h.UnixNano()]
			if !ok {
				values[i] = math.NaN()
				continue
			}
			values[i] = nanMean(c.Floats, rows)
		}
		for _, rows := range byHourOfDay {
			fillForward(values, rows)
			fillBackward(values, rows)
		}
		out = append(out, NewFloatSeries(c.Name, values))
	}
	return NewFrame(out...)
}

func fillForward(values []float64, rows []int) {
	prev := math.NaN()
	for _, r := range rows {
		if math.IsNaN(values[r]) {
			values[r] = prev
			continue
		}
		prev = values[r]
	}
}

func fillBackward(values []float64, rows []int) {
	next := math.NaN()
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		if math.IsNaN(values[r]) {
			values[r] = next
			continue
		}
		next = values[r]
	}
}

func groupRows(keys []string) map[string][]int {
	groups := make(map[string][]int)
	for i, k := range keys {
		if k == "" {
			continue
		}
		groups[k] = append(groups[k], i)
	}
	return groups
}

func floatColumns(f *Frame, except string) []*Series {
	var out []*Series
	for _, c := range f.columns {
		if c.Kind == KindFloat && c.Name != except {
			out = append(out, c)
		}
	}
	return out
}

func nanMean(values []float64, rows []int) float64 {
	sum, n := 0.0, 0
	for _, r := range rows {
		if math.IsNaN(values[r]) {
			continue
		}
		sum += values[r]
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
