// Package analysis decides which analysis modes a dataset is suited for.
package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"datafit/pkg/contracts/domain"
)

// DefaultSignificanceLevel is the p-value at or below which a column is
// considered not normal.
const DefaultSignificanceLevel = 0.05

// coefficientTolerance absorbs rounding noise when comparing correlation
// magnitudes, so a perfect linear and rank relationship compares as a tie.
const coefficientTolerance = 1e-12

// Series is a named column of optional values aligned by row position.
type Series struct {
	Name   string
	Values []domain.OptionalFloat
}

// DiscriminantResult is the outcome of the normality classifier.
type DiscriminantResult struct {
	Fits bool
	// Tested is the number of columns tested before a decision was reached.
	Tested int
	// FailingColumn and PValue describe the first column that failed, if any.
	FailingColumn string
	PValue        float64
}

// DiscriminantFit tests every series against N(0,1) with a one-sample KS test,
// ignoring missing cells. The dataset fits only if every p-value exceeds alpha;
// testing stops at the first failure.
func DiscriminantFit(series []Series, alpha float64) DiscriminantResult {
	result := DiscriminantResult{Fits: true}
	for _, s := range series {
		values := domain.Present(s.Values)
		if len(values) == 0 {
			continue
		}
		result.Tested++

		_, p := KSTest(values)
		if p <= alpha {
			result.Fits = false
			result.FailingColumn = s.Name
			result.PValue = p
			return result
		}
	}
	return result
}

// CorrelationResult is the outcome of the correlation-dominance classifier.
type CorrelationResult struct {
	Fits         bool
	Strengthened int
	Weakened     int
}

// CorrelationFit compares |Pearson| against |Spearman| for every unordered pair
// of series. Rows are aligned by position and a row is skipped for a pair when
// either cell is missing. A pair is strengthened when the Pearson magnitude is
// larger; ties and undefined coefficients count as weakened. The dataset fits
// when strengthened pairs strictly outnumber weakened ones.
func CorrelationFit(series []Series) CorrelationResult {
	var result CorrelationResult
	for i := 0; i < len(series); i++ {
		for j := i + 1; j < len(series); j++ {
			if pairStrengthened(series[i].Values, series[j].Values) {
				result.Strengthened++
			} else {
				result.Weakened++
			}
		}
	}
	result.Fits = FitsCorrelation(result.Strengthened, result.Weakened)
	return result
}

// FitsCorrelation reports whether strengthened pairs strictly dominate.
func FitsCorrelation(strengthened, weakened int) bool {
	return strengthened > weakened
}

func pairStrengthened(a, b []domain.OptionalFloat) bool {
	x, y := pairwiseComplete(a, b)
	if len(x) < 2 {
		return false
	}

	pearson := stat.Correlation(x, y, nil)
	spearman := stat.Correlation(rank(x), rank(y), nil)
	if math.IsNaN(pearson) || math.IsNaN(spearman) {
		return false
	}
	return math.Abs(pearson)-math.Abs(spearman) > coefficientTolerance
}

// PearsonSpearman returns both coefficients for a pair, for reporting.
func PearsonSpearman(a, b []domain.OptionalFloat) (pearson, spearman float64) {
	x, y := pairwiseComplete(a, b)
	if len(x) < 2 {
		return math.NaN(), math.NaN()
	}
	return stat.Correlation(x, y, nil), stat.Correlation(rank(x), rank(y), nil)
}

func pairwiseComplete(a, b []domain.OptionalFloat) (x, y []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	x = make([]float64, 0, n)
	y = make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if a[i].Valid && b[i].Valid {
			x = append(x, a[i].Float64)
			y = append(y, b[i].Float64)
		}
	}
	return x, y
}

// rank returns 1-based ranks, giving tied values the average of their ranks.
func rank(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return values[idx[i]] < values[idx[j]] })

	ranks := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && values[idx[j]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}
	return ranks
}
