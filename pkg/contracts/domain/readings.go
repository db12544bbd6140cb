package domain

import (
	"fmt"
	"time"
)

// Column labels shared by extractors, loaders and analyzers.
const (
	ColumnTimeStamp     = "TimeStamp"
	ColumnTemperature   = "Temperature_C"
	ColumnConductivity  = "Conductivity_S_m"
	ColumnSalinity      = "Salinity_PSU"
	ColumnPressure      = "Pressure_d"
	ColumnOxygen        = "Oxygen_umol_L"
	ColumnLatitude      = "Latitude_deg"
	ColumnLongitude     = "Longitude_deg"
	ColumnWindSpeed     = "Wind_speed_kt"
	ColumnWindGustSpeed = "Wind_gust_speed_kt"
	ColumnWindDirection = "Wind_direction"
)

// ReadingSeries is a typed, time-stamped set of sensor readings.
type ReadingSeries interface {
	Len() int
	Timestamps() []time.Time
	Indexes() []int
	// Variable returns the values of the named numeric column.
	Variable(name string) ([]float64, error)
	// Table returns the columns analyzers work on.
	Table() Table
}

// SeabedReadings are the samples of a moored seabed CTD.
type SeabedReadings struct {
	TimeStamp    []time.Time `json:"timestamp"`
	Temperature  []float64   `json:"temperature_c"`
	Conductivity []float64   `json:"conductivity_s_m"`
	Salinity     []float64   `json:"salinity_psu"`
	Index        []int       `json:"index"`
}

// NewSeabedReadings checks that all series have the same length and assigns
// a positional index.
func NewSeabedReadings(ts []time.Time, temperature, conductivity, salinity []float64) (*SeabedReadings, error) {
	if err := sameLength(len(ts), map[string]int{
		ColumnTemperature:  len(temperature),
		ColumnConductivity: len(conductivity),
		ColumnSalinity:     len(salinity),
	}); err != nil {
		return nil, err
	}
	return &SeabedReadings{
		TimeStamp:    ts,
		Temperature:  temperature,
		Conductivity: conductivity,
		Salinity:     salinity,
		Index:        positions(len(ts)),
	}, nil
}

func (r *SeabedReadings) Len() int                { return len(r.TimeStamp) }
func (r *SeabedReadings) Timestamps() []time.Time { return r.TimeStamp }
func (r *SeabedReadings) Indexes() []int          { return r.Index }

func (r *SeabedReadings) Variable(name string) ([]float64, error) {
	switch name {
	case ColumnTemperature:
		return r.Temperature, nil
	case ColumnConductivity:
		return r.Conductivity, nil
	case ColumnSalinity:
		return r.Salinity, nil
	}
	return nil, fmt.Errorf("seabed readings have no variable %q", name)
}

func (r *SeabedReadings) Table() Table {
	return Table{
		Columns: []Column{
			timeColumn(ColumnTimeStamp, r.TimeStamp),
			floatColumn(ColumnTemperature, r.Temperature),
			floatColumn(ColumnConductivity, r.Conductivity),
			floatColumn(ColumnSalinity, r.Salinity),
		},
		Indexes: intValues(r.Index),
	}
}

// GliderOceanReadings are the water-side samples of a wave glider.
type GliderOceanReadings struct {
	TimeStamp    []time.Time `json:"timestamp"`
	Temperature  []float64   `json:"temperature_c"`
	Conductivity []float64   `json:"conductivity_s_m"`
	Salinity     []float64   `json:"salinity_psu"`
	Pressure     []float64   `json:"pressure_d"`
	Oxygen       []float64   `json:"oxygen_umol_l"`
	Latitude     []float64   `json:"latitude_deg"`
	Longitude    []float64   `json:"longitude_deg"`
	Index        []int       `json:"index"`
}

// NewGliderOceanReadings checks lengths and assigns a positional index.
func NewGliderOceanReadings(ts []time.Time, temperature, conductivity, salinity, pressure, oxygen, latitude, longitude []float64) (*GliderOceanReadings, error) {
	if err := sameLength(len(ts), map[string]int{
		ColumnTemperature:  len(temperature),
		ColumnConductivity: len(conductivity),
		ColumnSalinity:     len(salinity),
		ColumnPressure:     len(pressure),
		ColumnOxygen:       len(oxygen),
		ColumnLatitude:     len(latitude),
		ColumnLongitude:    len(longitude),
	}); err != nil {
		return nil, err
	}
	return &GliderOceanReadings{
		TimeStamp:    ts,
		Temperature:  temperature,
		Conductivity: conductivity,
		Salinity:     salinity,
		Pressure:     pressure,
		Oxygen:       oxygen,
		Latitude:     latitude,
		Longitude:    longitude,
		Index:        positions(len(ts)),
	}, nil
}

func (r *GliderOceanReadings) Len() int                { return len(r.TimeStamp) }
func (r *GliderOceanReadings) Timestamps() []time.Time { return r.TimeStamp }
func (r *GliderOceanReadings) Indexes() []int          { return r.Index }

func (r *GliderOceanReadings) Variable(name string) ([]float64, error) {
	switch name {
	case ColumnTemperature:
		return r.Temperature, nil
	case ColumnConductivity:
		return r.Conductivity, nil
	case ColumnSalinity:
		return r.Salinity, nil
	case ColumnPressure:
		return r.Pressure, nil
	case ColumnOxygen:
		return r.Oxygen, nil
	case ColumnLatitude:
		return r.Latitude, nil
	case ColumnLongitude:
		return r.Longitude, nil
	}
	return nil, fmt.Errorf("glider ocean readings have no variable %q", name)
}

// Table leaves out the position columns.
func (r *GliderOceanReadings) Table() Table {
	return Table{
		Columns: []Column{
			timeColumn(ColumnTimeStamp, r.TimeStamp),
			floatColumn(ColumnTemperature, r.Temperature),
			floatColumn(ColumnConductivity, r.Conductivity),
			floatColumn(ColumnSalinity, r.Salinity),
			floatColumn(ColumnPressure, r.Pressure),
			floatColumn(ColumnOxygen, r.Oxygen),
		},
		Indexes: intValues(r.Index),
	}
}

// GliderWeatherReadings are the air-side samples of a wave glider.
type GliderWeatherReadings struct {
	TimeStamp     []time.Time `json:"timestamp"`
	Temperature   []float64   `json:"temperature_c"`
	WindSpeed     []float64   `json:"wind_speed_kt"`
	WindGustSpeed []float64   `json:"wind_gust_speed_kt"`
	WindDirection []float64   `json:"wind_direction"`
	Latitude      []float64   `json:"latitude_deg"`
	Longitude     []float64   `json:"longitude_deg"`
	Index         []int       `json:"index"`
}

// NewGliderWeatherReadings checks lengths and assigns a positional index.
func NewGliderWeatherReadings(ts []time.Time, temperature, windSpeed, windGust, windDirection, latitude, longitude []float64) (*GliderWeatherReadings, error) {
	if err := sameLength(len(ts), map[string]int{
		ColumnTemperature:   len(temperature),
		ColumnWindSpeed:     len(windSpeed),
		ColumnWindGustSpeed: len(windGust),
		ColumnWindDirection: len(windDirection),
		ColumnLatitude:      len(latitude),
		ColumnLongitude:     len(longitude),
	}); err != nil {
		return nil, err
	}
	return &GliderWeatherReadings{
		TimeStamp:     ts,
		Temperature:   temperature,
		WindSpeed:     windSpeed,
		WindGustSpeed: windGust,
		WindDirection: windDirection,
		Latitude:      latitude,
		Longitude:     longitude,
		Index:         positions(len(ts)),
	}, nil
}

func (r *GliderWeatherReadings) Len() int                { return len(r.TimeStamp) }
func (r *GliderWeatherReadings) Timestamps() []time.Time { return r.TimeStamp }
func (r *GliderWeatherReadings) Indexes() []int          { return r.Index }

func (r *GliderWeatherReadings) Variable(name string) ([]float64, error) {
	switch name {
	case ColumnTemperature:
		return r.Temperature, nil
	case ColumnWindSpeed:
		return r.WindSpeed, nil
	case ColumnWindGustSpeed:
		return r.WindGustSpeed, nil
	case ColumnWindDirection:
		return r.WindDirection, nil
	case ColumnLatitude:
		return r.Latitude, nil
	case ColumnLongitude:
		return r.Longitude, nil
	}
	return nil, fmt.Errorf("glider weather readings have no variable %q", name)
}

// Table leaves out the position columns.
func (r *GliderWeatherReadings) Table() Table {
	return Table{
		Columns: []Column{
			timeColumn(ColumnTimeStamp, r.TimeStamp),
			floatColumn(ColumnTemperature, r.Temperature),
			floatColumn(ColumnWindSpeed, r.WindSpeed),
			floatColumn(ColumnWindGustSpeed, r.WindGustSpeed),
			floatColumn(ColumnWindDirection, r.WindDirection),
		},
		Indexes: intValues(r.Index),
	}
}

// Glider pairs the ocean and weather payloads of one wave glider mission.
type Glider struct {
	Ocean   *GliderOceanReadings   `json:"ocean"`
	Weather *GliderWeatherReadings `json:"weather"`
}

// CorrelationInput is a labelled pair of equally long series.
type CorrelationInput struct {
	Label string    `json:"label" validate:"required"`
	X     []float64 `json:"x" validate:"required,min=2"`
	Y     []float64 `json:"y" validate:"required,min=2"`
}

func sameLength(want int, got map[string]int) error {
	for name, n := range got {
		if n != want {
			return fmt.Errorf("column %s has %d values, expected %d", name, n, want)
		}
	}
	return nil
}

func positions(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func timeColumn(label string, ts []time.Time) Column {
	values := make([]any, len(ts))
	for i, t := range ts {
		if t.IsZero() {
			continue
		}
		values[i] = t
	}
	return Column{Label: label, Values: values}
}

func floatColumn(label string, v []float64) Column {
	values := make([]any, len(v))
	for i, f := range v {
		values[i] = f
	}
	return Column{Label: label, Values: values}
}

func intValues(v []int) []any {
	out := make([]any, len(v))
	for i, n := range v {
		out[i] = n
	}
	return out
}
