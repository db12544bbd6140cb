package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"oceancli/pkg/contracts/domain"
)

// Correlation table column labels.
const (
	ColumnCovariance             = "Covariance"
	ColumnPearson                = "Pearson"
	ColumnPearsonPValue          = "Pearson p-value"
	ColumnPearsonPValueAdjusted  = "Pearson p-value adjusted"
	ColumnSpearman               = "Spearman"
	ColumnSpearmanPValue         = "Spearman p-value"
	ColumnSpearmanPValueAdjusted = "Spearman p-value adjusted"
)

// Correlate computes, per input pair, the sample covariance, Pearson and
// Spearman coefficients with two-sided p-values, and Benjamini-Hochberg
// adjusted p-values across all inputs. The result is indexed by input label.
func (a *Analyzer) Correlate(ctx context.Context, inputs []domain.CorrelationInput) (domain.Table, error) {
	n := len(inputs)
	cov := make([]float64, n)
	pearson := make([]float64, n)
	pearsonP := make([]float64, n)
	spearman := make([]float64, n)
	spearmanP := make([]float64, n)
	labels := make([]any, n)

	for i, in := range inputs {
		if len(in.X) != len(in.Y) {
			return domain.Table{}, fmt.Errorf("correlation %q: %d x values for %d y values", in.Label, len(in.X), len(in.Y))
		}
		labels[i] = in.Label
		cov[i] = stat.Covariance(in.X, in.Y, nil)
		pearson[i] = stat.Correlation(in.X, in.Y, nil)
		pearsonP[i] = correlationPValue(pearson[i], len(in.X))
		spearman[i] = stat.Correlation(Rank(in.X), Rank(in.Y), nil)
		spearmanP[i] = correlationPValue(spearman[i], len(in.X))
	}

	a.logger.DebugContext(ctx, "correlation_completed", slog.Int("pairs", n))
	return domain.Table{
		Columns: []domain.Column{
			{Label: ColumnCovariance, Values: anyFloats(cov)},
			{Label: ColumnPearson, Values: anyFloats(pearson)},
			{Label: ColumnPearsonPValue, Values: anyFloats(pearsonP)},
			{Label: ColumnPearsonPValueAdjusted, Values: anyFloats(BenjaminiHochberg(pearsonP))},
			{Label: ColumnSpearman, Values: anyFloats(spearman)},
			{Label: ColumnSpearmanPValue, Values: anyFloats(spearmanP)},
			{Label: ColumnSpearmanPValueAdjusted, Values: anyFloats(BenjaminiHochberg(spearmanP))},
		},
		Indexes: labels,
	}, nil
}

// correlationPValue is the two-sided p-value of a correlation coefficient r
// over n pairs under the null hypothesis of no correlation, using Student's t
// with n-2 degrees of freedom.
func correlationPValue(r float64, n int) float64 {
	if n < 3 || math.IsNaN(r) {
		return math.NaN()
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.Survival(math.Abs(t))
}

// Rank assigns 1-based ranks to values, giving ties the average of the ranks
// they span.
func Rank(values []float64) []float64 {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := values[order[i]], values[order[j]]
		return !math.IsNaN(a) && (math.IsNaN(b) || a < b)
	})

	ranks := make([]float64, len(values))
	for i := 0; i < len(order); {
		if math.IsNaN(values[order[i]]) {
			ranks[order[i]] = math.NaN()
			i++
			continue
		}
		j := i
		for j < len(order) && values[order[j]] == values[order[i]] {
			j++
		}
		// positions i..j-1 share the average of ranks i+1..j
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}
	return ranks
}

// BenjaminiHochberg adjusts p-values for the false discovery rate. NaN
// p-values are left as NaN and do not count towards the number of tests.
func BenjaminiHochberg(p []float64) []float64 {
	out := make([]float64, len(p))
	valid := make([]int, 0, len(p))
	for i, v := range p {
		out[i] = math.NaN()
		if !math.IsNaN(v) {
			valid = append(valid, i)
		}
	}
	m := len(valid)
	if m == 0 {
		return out
	}
	sort.SliceStable(valid, func(i, j int) bool { return p[valid[i]] < p[valid[j]] })

	running := math.Inf(1)
	for k := m - 1; k >= 0; k-- {
		idx := valid[k]
		adj := p[idx] * float64(m) / float64(k+1)
		running = math.Min(running, adj)
		out[idx] = math.Min(running, 1)
	}
	return out
}

func anyFloats(v []float64) []any {
	out := make([]any, len(v))
	for i, f := range v {
		out[i] = f
	}
	return out
}
