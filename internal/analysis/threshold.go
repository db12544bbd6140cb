package analysis

import (
	"math"
	"sort"
)

// SpikeThresholdFactor scales the interquartile range into a spike threshold.
const SpikeThresholdFactor = 1.5

// Thresholds are Tukey fences around the interquartile range.
type Thresholds struct {
	Lower float64 `json:"lower"`
	Q1    float64 `json:"q1"`
	Q3    float64 `json:"q3"`
	Upper float64 `json:"upper"`
}

// Percentile returns the q-th quantile (0 <= q <= 1) of values using linear
// interpolation between closest ranks, h = (n-1)q. An empty input or one
// holding NaN yields NaN.
func Percentile(values []float64, q float64) float64 {
	return percentileSorted(sortedPool(values), q)
}

// ComputeThreshold pools the reference sequences and returns
// SpikeThresholdFactor times their interquartile range.
//
// The pool is not guarded: an empty pool or a single NaN reading yields NaN,
// and a NaN threshold flags nothing.
func ComputeThreshold(reference ...[]float64) float64 {
	var pool []float64
	for _, r := range reference {
		pool = append(pool, r...)
	}
	sorted := sortedPool(pool)
	q1 := percentileSorted(sorted, 0.25)
	q3 := percentileSorted(sorted, 0.75)
	return (q3 - q1) * SpikeThresholdFactor
}

// IQRThresholds returns the quartiles of values and the fences
// Q1 - 1.5*IQR and Q3 + 1.5*IQR. NaN readings make every field NaN.
func IQRThresholds(values []float64) Thresholds {
	sorted := sortedPool(values)
	q1 := percentileSorted(sorted, 0.25)
	q3 := percentileSorted(sorted, 0.75)
	iqr := q3 - q1
	return Thresholds{
		Lower: q1 - SpikeThresholdFactor*iqr,
		Q1:    q1,
		Q3:    q3,
		Upper: q3 + SpikeThresholdFactor*iqr,
	}
}

// sortedPool returns a sorted copy of values, or nil when any value is NaN
// so that every percentile of the pool is NaN.
func sortedPool(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) {
			return nil
		}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// percentileSorted calculates the value at a given quantile of sorted values.
func percentileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	h := q * float64(n-1)
	lower := int(math.Floor(h))
	upper := int(math.Ceil(h))
	if lower == upper {
		return sorted[lower]
	}
	weight := h - float64(lower)
	return sorted[lower] + weight*(sorted[upper]-sorted[lower])
}
