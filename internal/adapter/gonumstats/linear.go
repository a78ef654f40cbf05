package gonumstats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/MikhalGarbuz/analyze-your-life/internal/analysis"
)

// ErrSingularDesign is returned when the design is rank deficient after
// aliased predictors were dropped.
var ErrSingularDesign = errors.New("design matrix is singular")

// fitLinear is ordinary least squares with an intercept, t-test p-values and
// R².
func fitLinear(req analysis.RegressionRequest) (*analysis.RegressionResult, error) {
	n := len(req.Y)
	k := len(req.Predictors) + 1
	if n <= k {
		return nil, fmt.Errorf("%d rows cannot fit %d terms", n, k)
	}

	x := mat.NewDense(n, k, nil)
	for i, row := range req.X {
		x.Set(i, 0, 1)
		for j, v := range row {
			x.Set(i, j+1, v)
		}
	}
	y := mat.NewVecDense(n, append([]float64(nil), req.Y...))

	// Thin SVD X = U·diag(s)·Vᵀ: β = V·diag(1/s)·Uᵀy and
	// (XᵀX)⁻¹ = V·diag(1/s²)·Vᵀ.
	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, ErrSingularDesign
	}
	sv := svd.Values(nil)
	if sv[k-1] <= rankTol*sv[0] {
		return nil, ErrSingularDesign
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var uty mat.VecDense
	uty.MulVec(u.T(), y)
	for l := 0; l < k; l++ {
		uty.SetVec(l, uty.AtVec(l)/sv[l])
	}
	var beta mat.VecDense
	beta.MulVec(&v, &uty)

	// unscaledVar(j) is the j-th diagonal element of (XᵀX)⁻¹.
	unscaledVar := func(j int) float64 {
		var sum float64
		for l := 0; l < k; l++ {
			w := v.At(j, l) / sv[l]
			sum += w * w
		}
		return sum
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	residuals := make([]float64, n)
	var ssr float64
	for i := 0; i < n; i++ {
		residuals[i] = req.Y[i] - fitted.AtVec(i)
		ssr += residuals[i] * residuals[i]
	}

	df := float64(n - k)
	sigma2 := ssr / df
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}

	names := append([]string{"const"}, req.Predictors...)
	coefs := make([]analysis.Coefficient, k)
	for j := 0; j < k; j++ {
		est := beta.AtVec(j)
		se := math.Sqrt(sigma2 * unscaledVar(j))
		p := math.NaN()
		if se > 0 {
			p = 2 * tdist.Survival(math.Abs(est/se))
		}
		coefs[j] = analysis.Coefficient{
			Name:     names[j],
			Estimate: analysis.Number(est),
			StdErr:   analysis.Number(se),
			PValue:   analysis.Number(p),
		}
	}

	mean := stat.Mean(req.Y, nil)
	var sst float64
	for _, v := range req.Y {
		sst += (v - mean) * (v - mean)
	}
	r2 := math.NaN()
	if sst > 0 {
		r2 = 1 - ssr/sst
	}

	fittedValues := make([]float64, n)
	for i := range fittedValues {
		fittedValues[i] = fitted.AtVec(i)
	}

	return &analysis.RegressionResult{
		Method:       analysis.MethodLinear,
		Target:       req.Target,
		Rows:         n,
		Coefficients: coefs,
		FitLabel:     "R²",
		Fit:          analysis.Number(r2),
		Fitted:       fittedValues,
		Residuals:    residuals,
	}, nil
}
