package dataprocessing

import (
	"fmt"
	"math"

	"oceancli/pkg/contracts/domain"
)

// Loader converts the final frame of a pipeline run into a typed value.
type Loader[T any] interface {
	Load(f *Frame) (T, error)
}

// SeabedLoader builds SeabedReadings.
type SeabedLoader struct{}

// Load implements Loader.
func (SeabedLoader) Load(f *Frame) (*domain.SeabedReadings, error) {
	ts, err := f.Times(domain.ColumnTimeStamp)
	if err != nil {
		return nil, err
	}
	cols, err := floatsOf(f, domain.ColumnTemperature, domain.ColumnConductivity, domain.ColumnSalinity)
	if err != nil {
		return nil, err
	}
	return domain.NewSeabedReadings(ts, cols[0], cols[1], cols[2])
}

// GliderOceanLoader builds GliderOceanReadings.
type GliderOceanLoader struct{}

// Load implements Loader.
func (GliderOceanLoader) Load(f *Frame) (*domain.GliderOceanReadings, error) {
	ts, err := f.Times(domain.ColumnTimeStamp)
	if err != nil {
		return nil, err
	}
	cols, err := floatsOf(f,
		domain.ColumnTemperature,
		domain.ColumnConductivity,
		domain.ColumnSalinity,
		domain.ColumnPressure,
		domain.ColumnOxygen,
		domain.ColumnLatitude,
		domain.ColumnLongitude,
	)
	if err != nil {
		return nil, err
	}
	return domain.NewGliderOceanReadings(ts, cols[0], cols[1], cols[2], cols[3], cols[4], cols[5], cols[6])
}

// GliderWeatherLoader builds GliderWeatherReadings.
type GliderWeatherLoader struct{}

// Load implements Loader.
func (GliderWeatherLoader) Load(f *Frame) (*domain.GliderWeatherReadings, error) {
	ts, err := f.Times(domain.ColumnTimeStamp)
	if err != nil {
		return nil, err
	}
	cols, err := floatsOf(f,
		domain.ColumnTemperature,
		domain.ColumnWindSpeed,
		domain.ColumnWindGustSpeed,
		domain.ColumnWindDirection,
		domain.ColumnLatitude,
		domain.ColumnLongitude,
	)
	if err != nil {
		return nil, err
	}
	return domain.NewGliderWeatherReadings(ts, cols[0], cols[1], cols[2], cols[3], cols[4], cols[5])
}

// SpikesLoader rebuilds Spikes from a persisted spike table. The threshold
// is taken from the first row and the frame index becomes the source index.
type SpikesLoader struct{}

// Load implements Loader.
func (SpikesLoader) Load(f *Frame) (domain.Spikes, error) {
	if f.Len() == 0 {
		// column kinds of an empty file are unknown
		for _, name := range []string{domain.SpikeColumnVariable, domain.SpikeColumnThreshold, domain.SpikeColumnTimeStamp, domain.SpikeColumnValues} {
			if _, err := f.Column(name); err != nil {
				return domain.Spikes{}, err
			}
		}
		return domain.Spikes{Threshold: math.NaN(), Items: []domain.Spike{}}, nil
	}
	variables, err := f.Strings(domain.SpikeColumnVariable)
	if err != nil {
		return domain.Spikes{}, err
	}
	thresholds, err := f.Floats(domain.SpikeColumnThreshold)
	if err != nil {
		return domain.Spikes{}, err
	}
	ts, err := f.Times(domain.SpikeColumnTimeStamp)
	if err != nil {
		return domain.Spikes{}, err
	}
	values, err := f.Floats(domain.SpikeColumnValues)
	if err != nil {
		return domain.Spikes{}, err
	}
	out := domain.Spikes{Items: make([]domain.Spike, f.Len())}
	if len(thresholds) > 0 {
		out.Threshold = thresholds[0]
	}
	for i, idx := range f.index {
		out.Items[i] = domain.Spike{
			Variable:  domain.SpikeVariable(variables[i]),
			TimeStamp: ts[i],
			Value:     values[i],
			Index:     idx,
		}
	}
	return out, nil
}

// FrameLoader returns the frame itself.
type FrameLoader struct{}

// Load implements Loader.
func (FrameLoader) Load(f *Frame) (*Frame, error) {
	return f, nil
}

func floatsOf(f *Frame, names ...string) ([][]float64, error) {
	out := make([][]float64, len(names))
	for i, name := range names {
		v, err := f.Floats(name)
		if err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		out[i] = append([]float64(nil), v...)
	}
	return out, nil
}
