// Package analysis implements spike detection and the descriptive analyses run
// on cleaned sensor readings.
//
// # Spike Detection
//
// A spike is a reading that departs from its two neighbours by more than the
// neighbours differ from each other. For every interior reading the test value
//
//	test(i) = |V[i] - (V[i-1]+V[i+1])/2| - |(V[i+1]-V[i-1])/2|
//
// is compared against a threshold, and readings whose test value is strictly
// greater are flagged. The first and last readings are never flagged.
//
// Thresholds are computed separately from detection:
//
//	threshold := analysis.ComputeThreshold(mission2023.Salinity, mission2024.Salinity)
//	spikes, err := analysis.DetectSpikes(domain.SpikeVariableSalinity, ts, values, nil, threshold)
//
// ComputeThreshold pools every reference sequence and returns 1.5 times the
// interquartile range, with quartiles interpolated linearly between closest
// ranks. Pooling several missions gives one threshold for all of them.
//
// # Descriptive Analyses
//
// Analyzer works on the domain.Table view of a reading series:
//
//   - Describe: count, mean, std, min, quartiles and max per column
//   - NullAndUnique: null and distinct value counts per column
//   - DataContinuity: irregular gaps between consecutive timestamps
//   - Correlate: covariance, Pearson and Spearman with Benjamini-Hochberg
//     adjusted p-values
//
// Statistics come from gonum. Empty or constant inputs are not guarded and
// produce NaN.
package analysis
