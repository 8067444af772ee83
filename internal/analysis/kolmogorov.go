package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// KSTest runs a two-sided one-sample Kolmogorov-Smirnov test of values against
// the standard normal distribution. values must be non-empty and finite.
func KSTest(values []float64) (statistic, pValue float64) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := float64(len(sorted))
	for i, x := range sorted {
		cdf := distuv.UnitNormal.CDF(x)
		if dPlus := float64(i+1)/n - cdf; dPlus > statistic {
			statistic = dPlus
		}
		if dMinus := cdf - float64(i)/n; dMinus > statistic {
			statistic = dMinus
		}
	}

	return statistic, kolmogorovSurvival(len(sorted), statistic)
}

// asymptoticMinN is the sample size above which the limiting Kolmogorov
// distribution replaces the exact one. The exact matrix grows with n*d.
const asymptoticMinN = 10000

// kolmogorovSurvival returns P(D_n >= d) using the Marsaglia-Tsang-Wang
// algorithm, with their closed form for large n*d^2 and the limiting
// distribution for large n.
func kolmogorovSurvival(n int, d float64) float64 {
	if d <= 0 {
		return 1
	}
	if d >= 1 {
		return 0
	}

	nf := float64(n)
	s := d * d * nf
	if s > 7.24 || (s > 3.76 && n > 99) {
		return clamp01(2 * math.Exp(-(2.000071+0.331/math.Sqrt(nf)+1.409/nf)*s))
	}
	if n > asymptoticMinN {
		return kolmogorovAsymptotic(n, d)
	}
	return clamp01(1 - kolmogorovCDF(n, d))
}

// kolmogorovAsymptotic returns P(D_n >= d) from the limiting distribution
// 2 * sum (-1)^(k-1) exp(-2 k^2 t^2), with Stephens' small-sample scaling of t.
func kolmogorovAsymptotic(n int, d float64) float64 {
	sqrtN := math.Sqrt(float64(n))
	t := d * (sqrtN + 0.12 + 0.11/sqrtN)
	if t < 0.2 {
		return 1
	}

	sum, sign := 0.0, 1.0
	for k := 1; k <= 100; k++ {
		term := math.Exp(-2 * float64(k*k) * t * t)
		sum += sign * term
		if term < 1e-16 {
			break
		}
		sign = -sign
	}
	return clamp01(2 * sum)
}

// kolmogorovCDF returns P(D_n < d) exactly.
func kolmogorovCDF(n int, d float64) float64 {
	nf := float64(n)
	k := int(nf*d) + 1
	m := 2*k - 1
	h := float64(k) - nf*d

	H := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			if i-j+1 >= 0 {
				H.Set(i, j, 1)
			}
		}
	}
	for i := 0; i < m; i++ {
		H.Set(i, 0, H.At(i, 0)-math.Pow(h, float64(i+1)))
		H.Set(m-1, i, H.At(m-1, i)-math.Pow(h, float64(m-i)))
	}
	if 2*h-1 > 0 {
		H.Set(m-1, 0, H.At(m-1, 0)+math.Pow(2*h-1, float64(m)))
	}
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			if i-j+1 > 0 {
				v := H.At(i, j)
				for g := 2; g <= i-j+1; g++ {
					v /= float64(g)
				}
				H.Set(i, j, v)
			}
		}
	}

	Q, exp := matrixPower(H, 0, n)
	p := Q.At(k-1, k-1)
	for i := 1; i <= n; i++ {
		p = p * float64(i) / nf
		if p < 1e-140 {
			p *= 1e140
			exp -= 140
		}
	}
	return p * math.Pow(10, float64(exp))
}

// matrixPower returns A^n as a matrix and a base-10 exponent kept separately
// so the entries stay in floating point range.
func matrixPower(A *mat.Dense, expA, n int) (*mat.Dense, int) {
	if n == 1 {
		return mat.DenseCopyOf(A), expA
	}

	V, expV := matrixPower(A, expA, n/2)
	B := new(mat.Dense)
	B.Mul(V, V)
	expB := 2 * expV

	out, exp := B, expB
	if n%2 == 1 {
		out = new(mat.Dense)
		out.Mul(A, B)
		exp = expA + expB
	}

	m, _ := out.Dims()
	if out.At(m/2, m/2) > 1e140 {
		out.Scale(1e-140, out)
		exp += 140
	}
	return out, exp
}

func clamp01(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}
