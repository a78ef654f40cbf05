package gonumstats

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/MikhalGarbuz/analyze-your-life/internal/analysis"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// rankTol is the relative singular value cutoff below which a design column
// counts as dependent.
const rankTol = 1e-9

// aliasedPredictors reports, for each predictor, whether its column is a
// linear combination of a constant and the predictors kept before it. A
// habit logged the same way every day is aliased with the constant.
func aliasedPredictors(x [][]float64, p int) []bool {
	aliased := make([]bool, p)
	if len(x) == 0 {
		return aliased
	}
	keep := []int{-1}
	for j := 0; j < p; j++ {
		cand := append(append([]int(nil), keep...), j)
		if columnRank(x, cand) < len(cand) {
			aliased[j] = true
			continue
		}
		keep = cand
	}
	return aliased
}

// columnRank is the numerical rank of the selected columns of x; column -1
// is the constant.
func columnRank(x [][]float64, cols []int) int {
	m := mat.NewDense(len(x), len(cols), nil)
	for i, row := range x {
		for c, j := range cols {
			v := 1.0
			if j >= 0 {
				v = row[j]
			}
			m.Set(i, c, v)
		}
	}
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDNone) {
		return 0
	}
	return svd.Rank(rankTol)
}

// withoutAliased drops aliased predictors from req. It fails with an
// InsufficientDataError when no predictor is left.
func withoutAliased(req analysis.RegressionRequest) (analysis.RegressionRequest, []bool, error) {
	aliased := aliasedPredictors(req.X, len(req.Predictors))
	var dropped []string
	for j, a := range aliased {
		if a {
			dropped = append(dropped, req.Predictors[j])
		}
	}
	if len(dropped) == 0 {
		return req, aliased, nil
	}
	if len(dropped) == len(req.Predictors) {
		return req, aliased, &domain.InsufficientDataError{
			Rows:   len(req.Y),
			Reason: "every predictor is constant or a combination of the others: " + strings.Join(dropped, ", "),
		}
	}

	out := req
	out.Predictors = nil
	for j, name := range req.Predictors {
		if !aliased[j] {
			out.Predictors = append(out.Predictors, name)
		}
	}
	out.X = make([][]float64, len(req.X))
	for i, row := range req.X {
		for j, v := range row {
			if !aliased[j] {
				out.X[i] = append(out.X[i], v)
			}
		}
	}
	return out, aliased, nil
}

// restoreAliased re-inserts aliased predictors into the fitted coefficients
// with undefined estimates. Coefficients before the first predictor (the
// constant of a linear fit) stay in front.
func restoreAliased(res *analysis.RegressionResult, predictors []string, aliased []bool) {
	lead := len(res.Coefficients) - (len(predictors) - countTrue(aliased))
	coefs := append([]analysis.Coefficient(nil), res.Coefficients[:lead]...)
	fitted := res.Coefficients[lead:]
	nan := analysis.Number(math.NaN())
	for j, name := range predictors {
		if aliased[j] {
			coefs = append(coefs, analysis.Coefficient{Name: name, Estimate: nan, StdErr: nan, PValue: nan, Aliased: true})
			continue
		}
		coefs = append(coefs, fitted[0])
		fitted = fitted[1:]
	}
	res.Coefficients = coefs
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
