package exporter

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oceancli/internal/dataprocessing"
	"oceancli/internal/shared/testutil"
	"oceancli/pkg/contracts/domain"
)

func weatherTable() domain.Table {
	ts := func(h, m int) any { return time.Date(2024, 7, 10, h, m, 0, 0, time.UTC) }
	return domain.Table{Columns: []domain.Column{
		{Label: "TimeStamp", Values: []any{ts(9, 5), ts(9, 10), ts(12, 30)}},
		{Label: "Temperatura Cº", Values: []any{25.0, 26.5, math.NaN()}},
		{Label: "Variable", Values: []any{"Salinity_PSU", "Oxygen_umol_L", "Salinity_PSU"}},
	}}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCSVStorer(t *testing.T) {
	table := weatherTable()
	indexed := table.Clone()
	indexed.Indexes = []any{4, 7, 9}

	tests := []struct {
		name     string
		table    domain.Table
		decimals int
		opts     StoreOptions
		want     string
	}{
		{
			name:     "defaults",
			table:    table,
			decimals: -1,
			want: "TimeStamp,Temperatura Cº,Variable\n" +
				"2024-07-10 09:05:00,25.000,Salinity_PSU\n" +
				"2024-07-10 09:10:00,26.500,Oxygen_umol_L\n" +
				"2024-07-10 12:30:00,,Salinity_PSU\n",
		},
		{
			name:     "index column and date layout",
			table:    indexed,
			decimals: 1,
			opts:     StoreOptions{Index: true, DateLayout: "%d/%m/%Y %H:%M"},
			want: ",TimeStamp,Temperatura Cº,Variable\n" +
				"4,10/07/2024 09:05,25.0,Salinity_PSU\n" +
				"7,10/07/2024 09:10,26.5,Oxygen_umol_L\n" +
				"9,10/07/2024 12:30,,Salinity_PSU\n",
		},
		{
			name:     "positional index when the table has none",
			table:    table,
			decimals: 1,
			opts:     StoreOptions{Index: true},
			want: ",TimeStamp,Temperatura Cº,Variable\n" +
				"0,2024-07-10 09:05:00,25.0,Salinity_PSU\n" +
				"1,2024-07-10 09:10:00,26.5,Oxygen_umol_L\n" +
				"2,2024-07-10 12:30:00,,Salinity_PSU\n",
		},
		{
			name:     "translation of values and indexes",
			table:    indexed,
			decimals: 2,
			opts: StoreOptions{Index: true, Translate: &Translation{
				Labels:     []string{"Variable", IndexLabel},
				Dictionary: map[string]string{"Salinity_PSU": "Salinidad", "7": "siete"},
			}},
			want: ",TimeStamp,Temperatura Cº,Variable\n" +
				"4,2024-07-10 09:05:00,25.00,Salinidad\n" +
				"siete,2024-07-10 09:10:00,26.50,Oxygen_umol_L\n" +
				"9,2024-07-10 12:30:00,,Salinidad\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "dir", "out.csv")
			storer := NewCSVStorer(tt.decimals, false, nil)

			require.NoError(t, storer.Store(context.Background(), tt.table, path, tt.opts))
			assert.Equal(t, tt.want, readFile(t, path))
		})
	}

	// the translated input is left untouched
	assert.Equal(t, "Salinity_PSU", indexed.Columns[2].Values[0])
	assert.Equal(t, 7, indexed.Indexes[1])
}

func TestCSVStorerSnappyAndBOM(t *testing.T) {
	dir := t.TempDir()
	storer := NewCSVStorer(3, true, nil)
	ctx := context.Background()

	plain := filepath.Join(dir, "plain.csv")
	require.NoError(t, storer.Store(ctx, weatherTable(), plain, StoreOptions{}))
	assert.True(t, strings.HasPrefix(readFile(t, plain), string(utf8BOM)+"TimeStamp,"))

	storer.BOMPrefix = false
	packed := filepath.Join(dir, "packed.csv"+dataprocessing.SnappySuffix)
	require.NoError(t, storer.Store(ctx, weatherTable(), packed, StoreOptions{}))
	assert.True(t, strings.HasPrefix(testutil.ReadSnappy(t, packed), "TimeStamp,Temperatura Cº,Variable\n"))
}

func TestCSVStorerSpikesRoundTrip(t *testing.T) {
	fx := testutil.NewSensorFixtures(t)
	src := fx.WriteFile("spikes.csv", testutil.SpikesCSV)
	extractor := dataprocessing.NewDatedCSVExtractor(
		dataprocessing.CSVOptions{IndexColumn: func(v int) *int { return &v }(0)},
		dataprocessing.DateParsing{Columns: []string{domain.SpikeColumnTimeStamp}}, nil)
	ctx := context.Background()

	f, err := extractor.Extract(ctx, src)
	require.NoError(t, err)
	spikes, err := dataprocessing.SpikesLoader{}.Load(f)
	require.NoError(t, err)

	out := filepath.Join(fx.TestDataDir, "stored", "spikes.csv")
	require.NoError(t, NewCSVStorer(2, false, nil).Store(ctx, spikes.ToTable(), out, StoreOptions{Index: true}))
	assert.True(t, strings.HasPrefix(readFile(t, out), ",Variable,Threshold,TimeStamp,Values\n1,Oxygen_umol_L,0.36,2024-07-10 09:10:00,8.20\n"))

	again, err := extractor.Extract(ctx, out)
	require.NoError(t, err)
	reloaded, err := dataprocessing.SpikesLoader{}.Load(again)
	require.NoError(t, err)
	assert.Equal(t, spikes, reloaded)
}

func TestCSVStorerErrors(t *testing.T) {
	storer := NewCSVStorer(3, false, nil)

	bad := domain.Table{Columns: []domain.Column{
		{Label: "a", Values: []any{1.0, 2.0}},
		{Label: "b", Values: []any{1.0}},
	}}
	assert.Error(t, storer.Store(context.Background(), bad, filepath.Join(t.TempDir(), "bad.csv"), StoreOptions{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, storer.Store(ctx, weatherTable(), filepath.Join(t.TempDir(), "x.csv"), StoreOptions{}), context.Canceled)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 days 00:00:00"},
		{3*time.Hour + 10*time.Minute, "0 days 03:10:00"},
		{26*time.Hour + 5*time.Second, "1 days 02:00:05"},
		{-5 * time.Minute, "-0 days 00:05:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}
