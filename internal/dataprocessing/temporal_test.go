package dataprocessing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAveragePerTimestamp(t *testing.T) {
	stamps := []string{
		"2024-04-10 09:05:00", "2024-05-10 09:05:00", "2024-06-10 09:05:00",
		"2024-04-10 09:10:00", "2024-05-10 09:10:00", "2024-06-10 09:10:00",
		"2024-05-10 09:15:00", "2024-06-10 09:15:00", "2024-07-10 09:15:00",
		"2024-05-10 09:20:00", "2024-06-10 09:20:00", "2024-07-10 09:20:00",
	}
	ts := make([]time.Time, len(stamps))
	for i, s := range stamps {
		ts[i] = at(s)
	}
	f := MustFrame(
		NewTimeSeries("TimeStamp", ts),
		NewFloatSeries("Pressure_d", []float64{1010.0, 1010.5, 1011.0, 1011.5, 1012.0, 1012.5, 1013.0, 1013.5, 1014.0, 1014.5, 1005.0, 1004.5}),
		NewFloatSeries("Temperature_C", []float64{16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 25, 26}),
		NewStringSeries("Vehicle", make([]string, len(stamps))),
	)

	out, err := AveragePerTimestamp(f, "TimeStamp")
	require.NoError(t, err)

	assert.Equal(t, []string{"TimeStamp", "Pressure_d", "Temperature_C"}, out.Columns())
	keys, _ := out.Strings("TimeStamp")
	assert.Equal(t, []string{"09:05", "09:10", "09:15", "09:20"}, keys)
	pressure, _ := out.Floats("Pressure_d")
	assert.InDeltaSlice(t, []float64{1010.5, 1012.0, 1013.5, 1008}, pressure, 1e-9)
	temperature, _ := out.Floats("Temperature_C")
	assert.InDeltaSlice(t, []float64{17, 20, 23, 25.3333333}, temperature, 1e-6)
	assert.Equal(t, []int{0, 1, 2, 3}, out.Index())
}

func TestAveragePerTimestamp_SkipsNulls(t *testing.T) {
	f := MustFrame(
		NewTimeSeries("TimeStamp", []time.Time{at("2024-04-10 09:05:00"), at("2024-04-11 09:05:00"), {}}),
		NewFloatSeries("v", []float64{2, math.NaN(), 100}),
	)

	out, err := AveragePerTimestamp(f, "TimeStamp")
	require.NoError(t, err)

	keys, _ := out.Strings("TimeStamp")
	assert.Equal(t, []string{"09:05"}, keys)
	v, _ := out.Floats("v")
	assert.Equal(t, []float64{2}, v)
}

func dayHourInput() *Frame {
	stamps := []string{
		"2024-03-08 21:00:00",

		"2024-03-09 00:00:00", "2024-03-09 01:05:00", "2024-03-09 02:10:00", "2024-03-09 03:15:00",
		"2024-03-09 04:20:00", "2024-03-09 05:25:00", "2024-03-09 06:30:00", "2024-03-09 07:35:00",
		"2024-03-09 08:40:00", "2024-03-09 09:45:00",

		"2024-03-09 10:00:00", "2024-03-09 11:00:00", "2024-03-09 12:05:00", "2024-03-09 13:10:00",
		"2024-03-09 14:15:00", "2024-03-09 15:20:00", "2024-03-09 16:25:00", "2024-03-09 17:30:00",
		"2024-03-09 18:35:00", "2024-03-09 19:40:00", "2024-03-09 20:45:00",

		"2024-03-09 21:00:00", "2024-03-09 22:05:00", "2024-03-09 23:10:00", "2024-03-09 23:15:00",

		"2024-03-10 05:25:00", "2024-03-10 06:30:00", "2024-03-10 07:35:00", "2024-03-10 08:40:00",
		"2024-03-10 09:45:00",
	}
	ts := make([]time.Time, len(stamps))
	for i, s := range stamps {
		ts[i] = at(s)
	}
	return MustFrame(
		NewTimeSeries("TimeStamp", ts),
		NewFloatSeries("Latitude_deg", dayHourLatitudes()),
	)
}

func dayHourLatitudes() []float64 {
	return []float64{
		-100,
		-100, -90, -75, -60, -45, -30, -15, 0, 15, 30, 45,
		-90, -75, -60, -45, -30, -15, 0, 15, 30, 45,
		-90, -75, -60, -45,
		-30, -15, 0, 15, 15,
	}
}

func TestAveragePerDayHour(t *testing.T) {
	out, err := AveragePerDayHour(dayHourInput(), "TimeStamp")
	require.NoError(t, err)

	require.Equal(t, 37, out.Len())
	hours, _ := out.Times("TimeStamp")
	start := at("2024-03-08 21:00:00")
	for i, h := range hours {
		assert.Equal(t, start.Add(time.Duration(i)*time.Hour), h, "row %d", i)
	}

	original := dayHourLatitudes()
	want := make([]float64, 37)
	want[0] = original[0]
	// 8th 22h and 23h have no data and take the next day's value for the same hour
	want[1] = original[23]
	want[2] = (-60 + -45) / 2.0
	copy(want[3:27], original[1:25])
	want[26] = (-60 + -45) / 2.0
	// 10th 00h..04h carry the 9th forward
	copy(want[27:32], original[1:6])
	copy(want[32:37], original[len(original)-5:])

	got, err := out.Floats("Latitude_deg")
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-9)
	assert.Equal(t, []string{"TimeStamp", "Latitude_deg"}, out.Columns())
}

func TestAveragePerDayHour_Errors(t *testing.T) {
	_, err := AveragePerDayHour(baseFrame(), "Oxygen")
	assert.ErrorIs(t, err, ErrKindMismatch)

	_, err = AveragePerTimestamp(baseFrame(), "Missing")
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestAveragePerDayHour_Empty(t *testing.T) {
	f := MustFrame(NewTimeSeries("TimeStamp", nil), NewFloatSeries("v", nil))

	out, err := AveragePerDayHour(f, "TimeStamp")
	require.NoError(t, err)
	assert.Zero(t, out.Len())
	assert.Equal(t, []string{"TimeStamp", "v"}, out.Columns())
}
