package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"oceancli/internal/infrastructure"
	"oceancli/pkg/contracts/domain"
)

// TestValues computes the three-point spike test value of every interior
// reading:
//
//	test(i) = |V[i] - (V[i-1]+V[i+1])/2| - |(V[i+1]-V[i-1])/2|
//
// The first and last elements have no test value and are NaN.
func TestValues(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	for i := 1; i < len(values)-1; i++ {
		prev, cur, next := values[i-1], values[i], values[i+1]
		out[i] = math.Abs(cur-(next+prev)/2) - math.Abs((next-prev)/2)
	}
	return out
}

// DetectSpikes flags the readings whose test value is strictly greater than
// threshold. indexes are the source row positions reported on each spike;
// nil means positional. The threshold is carried into the result unchanged.
func DetectSpikes(variable domain.SpikeVariable, timestamps []time.Time, values []float64, indexes []int, threshold float64) (domain.Spikes, error) {
	if len(timestamps) != len(values) {
		return domain.Spikes{}, fmt.Errorf("spike test on %s: %d timestamps for %d values", variable, len(timestamps), len(values))
	}
	if indexes != nil && len(indexes) != len(values) {
		return domain.Spikes{}, fmt.Errorf("spike test on %s: %d indexes for %d values", variable, len(indexes), len(values))
	}

	out := domain.Spikes{Threshold: threshold}
	for i, tv := range TestValues(values) {
		// NaN compares false, so the ends and NaN thresholds never flag
		if !(tv > threshold) {
			continue
		}
		idx := i
		if indexes != nil {
			idx = indexes[i]
		}
		out.Items = append(out.Items, domain.Spike{
			Variable:  variable,
			TimeStamp: timestamps[i],
			Value:     values[i],
			Index:     idx,
		})
	}
	return out, nil
}

// PooledThreshold computes the spike threshold of variable pooled across
// every given series.
func PooledThreshold(variable domain.SpikeVariable, series ...domain.ReadingSeries) (float64, error) {
	reference := make([][]float64, 0, len(series))
	for _, s := range series {
		v, err := s.Variable(string(variable))
		if err != nil {
			return math.NaN(), err
		}
		reference = append(reference, v)
	}
	return ComputeThreshold(reference...), nil
}

// Spikes runs the spike test for one variable of a reading series.
func (a *Analyzer) Spikes(ctx context.Context, series domain.ReadingSeries, variable domain.SpikeVariable, threshold float64) (domain.Spikes, error) {
	values, err := series.Variable(string(variable))
	if err != nil {
		return domain.Spikes{}, err
	}
	spikes, err := DetectSpikes(variable, series.Timestamps(), values, series.Indexes(), threshold)
	if err != nil {
		return domain.Spikes{}, err
	}
	a.logger.DebugContext(ctx, "spike_test_completed",
		slog.String("variable", string(variable)),
		infrastructure.FloatAttr("threshold", threshold),
		slog.Int("readings", len(values)),
		slog.Int("spikes", spikes.Len()))
	return spikes, nil
}
