package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"datafit/pkg/contracts/domain"
)

func cells(values ...float64) []domain.OptionalFloat {
	out := make([]domain.OptionalFloat, len(values))
	for i, v := range values {
		out[i] = domain.Some(v)
	}
	return out
}

// normalQuantiles returns n evenly spaced quantiles of N(0,1) plus shift.
func normalQuantiles(n int, shift float64) []domain.OptionalFloat {
	values := make([]float64, n)
	for i := range values {
		values[i] = distuv.UnitNormal.Quantile((float64(i)+0.5)/float64(n)) + shift
	}
	return cells(values...)
}

func TestKolmogorovCDFKnownValues(t *testing.T) {
	assert.InDelta(t, 0.6284796154565043, kolmogorovCDF(10, 0.274), 1e-9)
	assert.InDelta(t, 0.5, kolmogorovCDF(1, 0.75), 1e-12)
	assert.InDelta(t, 0.0, kolmogorovCDF(1, 0.4), 1e-12)
}

func TestKolmogorovSurvivalBounds(t *testing.T) {
	assert.Equal(t, 1.0, kolmogorovSurvival(20, 0))
	assert.Equal(t, 0.0, kolmogorovSurvival(20, 1))

	prev := 1.0
	for _, d := range []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8} {
		p := kolmogorovSurvival(30, d)
		assert.LessOrEqual(t, p, prev, "survival is non-increasing in d")
		prev = p
	}
	assert.Less(t, kolmogorovSurvival(500, 0.2), 1e-6, "large sample shortcut")
}

func TestKolmogorovAsymptoticKnownValues(t *testing.T) {
	const n = 1000000
	scale := math.Sqrt(n) + 0.12 + 0.11/math.Sqrt(n)

	assert.InDelta(t, 0.27, kolmogorovAsymptotic(n, 1.0/scale), 1e-4)
	assert.InDelta(t, 0.05, kolmogorovAsymptotic(n, 1.3581/scale), 1e-4)
	assert.Equal(t, 1.0, kolmogorovAsymptotic(n, 0.0001))
}

func TestKolmogorovAsymptoticMatchesExactAtCutoff(t *testing.T) {
	for _, d := range []float64{0.008, 0.01, 0.015} {
		exact := 1 - kolmogorovCDF(asymptoticMinN, d)
		assert.InDelta(t, exact, kolmogorovAsymptotic(asymptoticMinN, d), 2e-3, "d=%v", d)
	}
}

func TestKSTestLargeSampleUsesLimitingDistribution(t *testing.T) {
	values := domain.Present(normalQuantiles(50000, 0))
	d, p := KSTest(values)
	assert.Less(t, d, 1e-4)
	assert.Equal(t, kolmogorovAsymptotic(len(values), d), p)
	assert.Greater(t, p, 0.99)

	_, p = KSTest(domain.Present(normalQuantiles(50000, 0.05)))
	assert.Less(t, p, 0.05, "a small shift is detected at this size")
}

func TestKSTest(t *testing.T) {
	d, p := KSTest(domain.Present(normalQuantiles(50, 0)))
	assert.InDelta(t, 0.01, d, 1e-9)
	assert.Greater(t, p, 0.99)

	d, p = KSTest([]float64{1, 2, 3, 4, 7, 7})
	assert.Greater(t, d, 0.8)
	assert.Less(t, p, 0.05)
}

func TestDiscriminantFit(t *testing.T) {
	normal := Series{Name: "normal", Values: normalQuantiles(40, 0)}
	shifted := Series{Name: "shifted", Values: normalQuantiles(40, 5)}
	withGaps := Series{Name: "gaps", Values: append(normalQuantiles(40, 0), domain.None(), domain.None())}

	t.Run("all columns pass", func(t *testing.T) {
		res := DiscriminantFit([]Series{normal, withGaps}, DefaultSignificanceLevel)
		assert.True(t, res.Fits)
		assert.Equal(t, 2, res.Tested)
		assert.Empty(t, res.FailingColumn)
	})

	t.Run("one failing column is enough", func(t *testing.T) {
		res := DiscriminantFit([]Series{normal, shifted}, DefaultSignificanceLevel)
		assert.False(t, res.Fits)
		assert.Equal(t, "shifted", res.FailingColumn)
		assert.LessOrEqual(t, res.PValue, DefaultSignificanceLevel)
	})

	t.Run("stops at first failure", func(t *testing.T) {
		res := DiscriminantFit([]Series{shifted, normal}, DefaultSignificanceLevel)
		assert.False(t, res.Fits)
		assert.Equal(t, 1, res.Tested)
	})
}

func TestCorrelationFit(t *testing.T) {
	tests := []struct {
		name             string
		series           []Series
		wantStrengthened int
		wantWeakened     int
		wantFits         bool
	}{
		{
			name: "linear dominates rank",
			series: []Series{
				{"x", cells(1, 2, 3, 4, 100)},
				{"y", cells(2, 1, 3, 4, 100)},
			},
			wantStrengthened: 1,
			wantFits:         true,
		},
		{
			name: "rank dominates linear",
			series: []Series{
				{"x", cells(1, 2, 3, 4, 5)},
				{"y", cells(1, 2, 3, 4, 100)},
			},
			wantWeakened: 1,
		},
		{
			name: "perfect relationship is a tie",
			series: []Series{
				{"x", cells(1, 2, 3)},
				{"y", cells(2, 4, 6)},
			},
			wantWeakened: 1,
		},
		{
			name: "constant column is undefined",
			series: []Series{
				{"x", cells(1, 2, 3)},
				{"y", cells(5, 5, 5)},
			},
			wantWeakened: 1,
		},
		{
			name: "sample columns",
			series: []Series{
				{"A", cells(1, 2, 3, 4, 7, 7)},
				{"B", cells(4, 5, 6, 7, 7, 7)},
			},
			wantWeakened: 1,
		},
		{
			name:   "single column has no pairs",
			series: []Series{{"x", cells(1, 2, 3)}},
		},
		{
			name: "three columns give three pairs",
			series: []Series{
				{"x", cells(1, 2, 3, 4, 100)},
				{"y", cells(2, 1, 3, 4, 100)},
				{"z", cells(1, 2, 3, 4, 5)},
			},
			wantStrengthened: 1,
			wantWeakened:     2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CorrelationFit(tt.series)
			assert.Equal(t, tt.wantStrengthened, res.Strengthened)
			assert.Equal(t, tt.wantWeakened, res.Weakened)
			assert.Equal(t, tt.wantFits, res.Fits)
		})
	}
}

func TestFitsCorrelationNeedsStrictMajority(t *testing.T) {
	assert.False(t, FitsCorrelation(0, 0))
	assert.False(t, FitsCorrelation(2, 2))
	assert.True(t, FitsCorrelation(3, 2))
}

func TestPairwiseCompleteDropsRowsWithGaps(t *testing.T) {
	a := []domain.OptionalFloat{domain.Some(1), domain.None(), domain.Some(3), domain.Some(4), domain.Some(9)}
	b := []domain.OptionalFloat{domain.Some(2), domain.Some(5), domain.None(), domain.Some(8)}

	x, y := pairwiseComplete(a, b)
	assert.Equal(t, []float64{1, 4}, x)
	assert.Equal(t, []float64{2, 8}, y)
}

func TestRankAveragesTies(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, rank([]float64{10, 20, 20, 30}))
	assert.Equal(t, []float64{3, 1, 2}, rank([]float64{9, -1, 0}))
}

func TestPearsonSpearmanSampleColumns(t *testing.T) {
	pearson, spearman := PearsonSpearman(cells(1, 2, 3, 4, 7, 7), cells(4, 5, 6, 7, 7, 7))
	assert.InDelta(t, 0.875, pearson, 1e-12)
	assert.InDelta(t, 15.5/math.Sqrt(17*15.5), spearman, 1e-12)

	pearson, _ = PearsonSpearman(cells(1), cells(2))
	require.True(t, math.IsNaN(pearson))
}
