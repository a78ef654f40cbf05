package gonumstats

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/MikhalGarbuz/analyze-your-life/internal/analysis"
)

// ordinalModel is a proportional-odds logit model without intercept:
// P(y <= c_j | x) = σ(τ_j − x·β). Cut points are parameterized as τ_0
// followed by log increments so that they stay ordered.
type ordinalModel struct {
	x       [][]float64
	yIdx    []int
	classes []float64
	p       int
}

func newOrdinalModel(req analysis.RegressionRequest) *ordinalModel {
	seen := make(map[float64]struct{})
	for _, v := range req.Y {
		seen[v] = struct{}{}
	}
	classes := make([]float64, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Float64s(classes)

	yIdx := make([]int, len(req.Y))
	for i, v := range req.Y {
		yIdx[i] = sort.SearchFloat64s(classes, v)
	}
	return &ordinalModel{x: req.X, yIdx: yIdx, classes: classes, p: len(req.Predictors)}
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func (m *ordinalModel) cuts(theta []float64) []float64 {
	k := len(m.classes) - 1
	cuts := make([]float64, k)
	cuts[0] = theta[m.p]
	for j := 1; j < k; j++ {
		cuts[j] = cuts[j-1] + math.Exp(theta[m.p+j])
	}
	return cuts
}

func (m *ordinalModel) classProbs(theta []float64, cuts []float64, row []float64) []float64 {
	eta := floats.Dot(theta[:m.p], row)
	probs := make([]float64, len(m.classes))
	prev := 0.0
	for j := range probs {
		upper := 1.0
		if j < len(cuts) {
			upper = sigmoid(cuts[j] - eta)
		}
		probs[j] = upper - prev
		prev = upper
	}
	return probs
}

func (m *ordinalModel) negLogLik(theta []float64) float64 {
	cuts := m.cuts(theta)
	var nll float64
	for i, row := range m.x {
		p := m.classProbs(theta, cuts, row)[m.yIdx[i]]
		if p < 1e-300 {
			p = 1e-300
		}
		nll -= math.Log(p)
	}
	return nll
}

func (m *ordinalModel) initial() []float64 {
	n := float64(len(m.yIdx))
	counts := make([]float64, len(m.classes))
	for _, k := range m.yIdx {
		counts[k]++
	}
	theta := make([]float64, m.p+len(m.classes)-1)
	var cum, prevCut float64
	for j := 0; j < len(m.classes)-1; j++ {
		cum += counts[j]
		frac := cum / n
		cut := math.Log(frac / (1 - frac))
		if j == 0 {
			theta[m.p] = cut
		} else {
			theta[m.p+j] = math.Log(math.Max(cut-prevCut, 1e-3))
		}
		prevCut = cut
	}
	return theta
}

func (m *ordinalModel) nullLogLik() float64 {
	n := float64(len(m.yIdx))
	counts := make([]float64, len(m.classes))
	for _, k := range m.yIdx {
		counts[k]++
	}
	var ll float64
	for _, c := range counts {
		if c > 0 {
			ll += c * math.Log(c/n)
		}
	}
	return ll
}

// fitOrdinal maximizes the likelihood with BFGS and derives standard errors
// from a finite-difference Hessian.
func fitOrdinal(ctx context.Context, req analysis.RegressionRequest, curvePoints int) (*analysis.RegressionResult, error) {
	m := newOrdinalModel(req)
	if len(m.classes) < 2 {
		return nil, fmt.Errorf("target %q has fewer than two classes", req.Target)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	central := &fd.Settings{Formula: fd.Central}
	problem := optimize.Problem{
		Func: m.negLogLik,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, m.negLogLik, x, central)
		},
	}
	res, err := optimize.Minimize(problem, m.initial(), nil, &optimize.BFGS{})
	if res == nil {
		return nil, fmt.Errorf("ordinal fit: %w", err)
	}
	if err != nil {
		log.Printf("gonumstats: ordinal fit for %s stopped early: %v", req.Target, err)
	}
	theta := res.X

	hess := mat.NewSymDense(len(theta), nil)
	fd.Hessian(hess, m.negLogLik, theta, nil)
	var cov mat.Dense
	covOK := cov.Inverse(hess) == nil

	stdErr := func(j int) (se, p float64) {
		if !covOK || cov.At(j, j) <= 0 {
			return math.NaN(), math.NaN()
		}
		se = math.Sqrt(cov.At(j, j))
		return se, 2 * distuv.UnitNormal.Survival(math.Abs(theta[j]/se))
	}

	result := &analysis.RegressionResult{
		Method:   analysis.MethodOrdinal,
		Target:   req.Target,
		Rows:     len(req.Y),
		FitLabel: "McFadden pseudo-R²",
	}
	for j, name := range req.Predictors {
		se, p := stdErr(j)
		result.Coefficients = append(result.Coefficients, analysis.Coefficient{
			Name:     name,
			Estimate: analysis.Number(theta[j]),
			StdErr:   analysis.Number(se),
			PValue:   analysis.Number(p),
		})
	}
	for j := 0; j < len(m.classes)-1; j++ {
		_, p := stdErr(m.p + j)
		result.Thresholds = append(result.Thresholds, analysis.Threshold{
			Label:  fmt.Sprintf("%g/%g", m.classes[j], m.classes[j+1]),
			Value:  analysis.Number(theta[m.p+j]),
			PValue: analysis.Number(p),
		})
	}

	ll := -res.F
	if ll0 := m.nullLogLik(); ll0 != 0 {
		result.Fit = analysis.Number(1 - ll/ll0)
	} else {
		result.Fit = analysis.Number(math.NaN())
	}

	if len(req.Predictors) > 0 && curvePoints > 1 {
		result.CurveVariable = req.Predictors[0]
		result.Curves = m.curves(theta, curvePoints)
	}
	return result, nil
}

// curves varies the first predictor over its observed range, holding the
// others at their mean.
func (m *ordinalModel) curves(theta []float64, points int) []analysis.Curve {
	cols := make([][]float64, m.p)
	for j := range cols {
		cols[j] = make([]float64, len(m.x))
		for i, row := range m.x {
			cols[j][i] = row[j]
		}
	}
	base := make([]float64, m.p)
	for j := range base {
		base[j] = stat.Mean(cols[j], nil)
	}
	lo, hi := floats.Min(cols[0]), floats.Max(cols[0])
	xs := make([]float64, points)
	floats.Span(xs, lo, hi)

	cuts := m.cuts(theta)
	curves := make([]analysis.Curve, len(m.classes))
	for k, c := range m.classes {
		curves[k] = analysis.Curve{Class: c, X: xs, P: make([]float64, points)}
	}
	row := make([]float64, m.p)
	for i, v := range xs {
		copy(row, base)
		row[0] = v
		probs := m.classProbs(theta, cuts, row)
		for k := range curves {
			curves[k].P[i] = probs[k]
		}
	}
	return curves
}
