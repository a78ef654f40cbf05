// Package gonumstats implements the analysis statistics port with gonum.
package gonumstats

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/MikhalGarbuz/analyze-your-life/internal/analysis"
)

// Stats fits correlation and regression models.
type Stats struct {
	// CurvePoints is the number of samples along each class-probability curve.
	CurvePoints int
}

// New returns a Stats with default settings.
func New() *Stats {
	return &Stats{CurvePoints: 40}
}

var _ analysis.Statistics = (*Stats)(nil)

// Correlate computes independent-vs-goal coefficients on pairwise complete
// rows. Pairs with fewer than two rows or no variance yield NaN.
func (s *Stats) Correlate(ctx context.Context, req analysis.CorrelationRequest) (*analysis.Matrix, error) {
	m := &analysis.Matrix{
		Method: req.Method,
		Rows:   req.Independents,
		Cols:   req.Goals,
		Values: make([][]analysis.Number, len(req.Independents)),
	}
	for i, ind := range req.Independents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.Values[i] = make([]analysis.Number, len(req.Goals))
		for j, goal := range req.Goals {
			x, y := pairwise(req.Table, ind, goal)
			var r float64
			switch req.Method {
			case analysis.MethodKendall:
				r = kendallTauB(x, y)
			case analysis.MethodPearson:
				r = pearson(x, y)
			default:
				return nil, fmt.Errorf("unsupported correlation method %q", req.Method)
			}
			m.Values[i][j] = analysis.Number(r)
		}
	}
	return m, nil
}

// Regress fits a linear or ordinal logistic model.
func (s *Stats) Regress(ctx context.Context, req analysis.RegressionRequest) (*analysis.RegressionResult, error) {
	if len(req.Y) != len(req.X) {
		return nil, fmt.Errorf("design has %d targets and %d rows", len(req.Y), len(req.X))
	}
	if req.Method != analysis.MethodLinear && req.Method != analysis.MethodOrdinal {
		return nil, fmt.Errorf("unsupported regression method %q", req.Method)
	}

	reduced, aliased, err := withoutAliased(req)
	if err != nil {
		return nil, err
	}
	var res *analysis.RegressionResult
	if req.Method == analysis.MethodLinear {
		res, err = fitLinear(reduced)
	} else {
		res, err = fitOrdinal(ctx, reduced, s.CurvePoints)
	}
	if err != nil {
		return nil, err
	}
	restoreAliased(res, req.Predictors, aliased)
	return res, nil
}

func pairwise(t *analysis.Table, a, b string) (x, y []float64) {
	for _, i := range t.CompleteRows([]string{a, b}) {
		va, _ := t.Value(i, a)
		vb, _ := t.Value(i, b)
		x = append(x, va)
		y = append(y, vb)
	}
	return x, y
}

func pearson(x, y []float64) float64 {
	if len(x) < 2 || stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

// kendallTauB is Kendall's tau-b, which corrects for ties. gonum's
// stat.Kendall counts tied pairs as concordant, which skews boolean and class
// columns.
func kendallTauB(x, y []float64) float64 {
	n := len(x)
	if n < 2 {
		return math.NaN()
	}
	var concordant, discordant, tiesX, tiesY float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := x[i] - x[j]
			dy := y[i] - y[j]
			switch {
			case dx == 0 && dy == 0:
			case dx == 0:
				tiesX++
			case dy == 0:
				tiesY++
			case (dx > 0) == (dy > 0):
				concordant++
			default:
				discordant++
			}
		}
	}
	denom := math.Sqrt((concordant + discordant + tiesX) * (concordant + discordant + tiesY))
	if denom == 0 {
		return math.NaN()
	}
	return (concordant - discordant) / denom
}
