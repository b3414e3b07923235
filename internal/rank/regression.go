package rank

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// varianceEps is the floor under which a price series counts as flat and
// its trend score resolves to 0 instead of dividing by zero.
const varianceEps = 1e-12

// TrendScores computes the trend-strength score R² × sign(slope) for every
// row of prices, each row holding exactly window trailing closes, as one
// batched linear-algebra pass over the (N × window) matrix.
//
// With x the integer time index 0..window-1 and y one price row:
//
//	R² = cov(x,y)² / (var(x) · var(y))
//
// sign(slope) equals sign(Σ xc·yc) since var(x) > 0, so the whole batch
// reduces to two matrix-vector products against the centered matrix.
func TrendScores(prices *mat.Dense, window int) []float64 {
	n, w := prices.Dims()
	if n == 0 {
		return nil
	}
	if w != window {
		panic("rank: price matrix width does not match regression window")
	}

	// Centered time index and its sum of squares.
	xc := make([]float64, w)
	xMean := float64(w-1) / 2
	for j := 0; j < w; j++ {
		xc[j] = float64(j) - xMean
	}
	sxx := floats.Dot(xc, xc)

	ones := onesVec(w)

	// Row means, then the row-centered matrix.
	means := mat.NewVecDense(n, nil)
	means.MulVec(prices, ones)
	means.ScaleVec(1/float64(w), means)

	centered := mat.NewDense(n, w, nil)
	centered.Apply(func(i, _ int, v float64) float64 {
		return v - means.AtVec(i)
	}, prices)

	// sxy_i = Σ_j yc_ij · xc_j for all rows at once.
	sxy := mat.NewVecDense(n, nil)
	sxy.MulVec(centered, mat.NewVecDense(w, xc))

	// syy_i = Σ_j yc_ij² via an element-wise square and a second product.
	squared := mat.NewDense(n, w, nil)
	squared.MulElem(centered, centered)
	syy := mat.NewVecDense(n, nil)
	syy.MulVec(squared, ones)

	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		sy := syy.AtVec(i)
		if sy < varianceEps {
			scores[i] = 0
			continue
		}
		cov := sxy.AtVec(i)
		r2 := cov * cov / (sxx * sy)
		if cov < 0 {
			r2 = -r2
		}
		scores[i] = r2
	}
	return scores
}

// scalarTrendScore is the per-symbol reference regression. The batched
// form must agree with it within 1e-6; it also serves short series the
// batch never sees.
func scalarTrendScore(y []float64) float64 {
	n := len(y)
	if n < 2 {
		return 0
	}

	xMean := float64(n-1) / 2
	yMean := floats.Sum(y) / float64(n)

	var sxx, sxy, syy float64
	for i, v := range y {
		dx := float64(i) - xMean
		dy := v - yMean
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}

	if syy < varianceEps {
		return 0
	}

	r2 := sxy * sxy / (sxx * syy)
	if sxy < 0 {
		return -r2
	}
	return r2
}

func onesVec(n int) *mat.VecDense {
	data := make([]float64, n)
	for i := range data {
		data[i] = 1
	}
	return mat.NewVecDense(n, data)
}

// tail returns the last n elements of s, or s itself when shorter.
func tail(s []float64, n int) []float64 {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// round2 rounds to two decimal places for report output.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
