package calculations

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Median returns the middle value, averaging the two middle values for even counts.
func Median(values []float64) float64 {
	return percentile(sortedCopy(values), 0.5)
}

// Mean returns the arithmetic mean.
func Mean(values []float64) float64 {
	return stat.Mean(values, nil)
}

// Mode returns the most frequent value. Ties go to the smallest value.
func Mode(values []float64) float64 {
	sorted := sortedCopy(values)

	best, bestCount := sorted[0], 0
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		if count := j - i; count > bestCount {
			best, bestCount = sorted[i], count
		}
		i = j
	}
	return best
}

// QuartileQ1 returns the 25th percentile.
func QuartileQ1(values []float64) float64 {
	return percentile(sortedCopy(values), 0.25)
}

// QuartileQ2 returns the 50th percentile.
func QuartileQ2(values []float64) float64 {
	return percentile(sortedCopy(values), 0.5)
}

// QuartileQ3 returns the 75th percentile.
func QuartileQ3(values []float64) float64 {
	return percentile(sortedCopy(values), 0.75)
}

// OutliersNumber counts values strictly outside [Q1-IQR, Q3+IQR].
// The fence is one IQR wide, not the usual 1.5.
func OutliersNumber(values []float64) float64 {
	sorted := sortedCopy(values)
	q1 := percentile(sorted, 0.25)
	q3 := percentile(sorted, 0.75)
	iqr := q3 - q1
	lower, upper := q1-iqr, q3+iqr

	count := 0
	for _, v := range values {
		if v < lower || v > upper {
			count++
		}
	}
	return float64(count)
}

// VariationRange returns max - min.
func VariationRange(values []float64) float64 {
	return floats.Max(values) - floats.Min(values)
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

// percentile interpolates linearly between the order statistics around p*(n-1).
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
