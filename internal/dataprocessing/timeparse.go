package dataprocessing

import (
	"fmt"
	"strings"
	"time"
)

// commonLayouts are tried in order when no layout is configured.
var commonLayouts = []string{
	time.DateTime,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
	"2006/01/02 15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006 15",
	"02/01/2006",
}

var strftimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'p': "PM",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'f': "000000",
	'z': "-0700",
	'Z': "MST",
	'%': "%",
}

// ParseTime parses a timestamp. Timestamps without a zone are read as UTC.
// An empty layout tries the common formats in turn.
func ParseTime(raw, layout string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if layout != "" {
		t, err := time.Parse(GoLayout(layout), raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q does not match layout %q", ErrParse, raw, layout)
		}
		return t, nil
	}
	for _, l := range commonLayouts {
		if t, err := time.Parse(l, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised timestamp %q", ErrParse, raw)
}

// GoLayout translates a strftime pattern such as "%d/%m/%Y %H:%M" into a Go
// layout. Layouts without a '%' are returned unchanged.
func GoLayout(layout string) string {
	if !strings.Contains(layout, "%") {
		return layout
	}
	var b strings.Builder
	for i := 0; i < len(layout); i++ {
		if layout[i] != '%' || i+1 == len(layout) {
			b.WriteByte(layout[i])
			continue
		}
		i++
		if repl, ok := strftimeDirectives[layout[i]]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(layout[i])
	}
	return b.String()
}
