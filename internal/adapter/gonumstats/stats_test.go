package gonumstats

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikhalGarbuz/analyze-your-life/internal/analysis"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

func TestKendallTauB(t *testing.T) {
	assert.InDelta(t, 1.0, kendallTauB([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 6, 8, 10}), 1e-12)
	assert.InDelta(t, -1.0, kendallTauB([]float64{1, 2, 3}, []float64{3, 2, 1}), 1e-12)
	assert.InDelta(t, -0.4714045, kendallTauB([]float64{12, 2, 1, 12, 2}, []float64{1, 4, 7, 1, 0}), 1e-6)
	assert.InDelta(t, 0.0, kendallTauB([]float64{1, 1, 2, 2}, []float64{1, 2, 1, 2}), 1e-12)
	assert.True(t, math.IsNaN(kendallTauB([]float64{1, 1, 1}, []float64{1, 2, 3})))
	assert.True(t, math.IsNaN(kendallTauB([]float64{1}, []float64{1})))
}

func TestCorrelate_PairwiseComplete(t *testing.T) {
	params := []domain.Parameter{
		{Name: "mood", Role: domain.RoleGoal, Type: domain.TypeNumeric},
		{Name: "sleep", Role: domain.RoleIndependent, Type: domain.TypeNumeric},
		{Name: "coffee", Role: domain.RoleIndependent, Type: domain.TypeBoolean},
	}
	var entries []domain.DailyEntry
	for i := 0; i < 12; i++ {
		values := map[string]domain.Value{
			"mood":   domain.NumericValue(float64(i)),
			"sleep":  domain.NumericValue(float64(2 * i)),
			"coffee": domain.BoolValue(i%2 == 0),
		}
		if i == 5 {
			delete(values, "sleep")
		}
		entries = append(entries, domain.DailyEntry{Date: "2025-01-" + twoDigits(i+1), Values: values})
	}
	table := analysis.Assemble(entries, params)

	s := New()
	for _, method := range []analysis.Method{analysis.MethodKendall, analysis.MethodPearson} {
		m, err := s.Correlate(context.Background(), analysis.CorrelationRequest{
			Table:        table,
			Goals:        []string{"mood"},
			Independents: []string{"sleep", "coffee"},
			Method:       method,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"sleep", "coffee"}, m.Rows)
		assert.Equal(t, []string{"mood"}, m.Cols)
		assert.InDelta(t, 1.0, float64(m.Values[0][0]), 1e-9, "%s sleep vs mood", method)
		assert.Less(t, float64(m.Values[1][0]), 0.0, "%s coffee vs mood", method)
	}

	_, err := s.Correlate(context.Background(), analysis.CorrelationRequest{
		Table: table, Goals: []string{"mood"}, Independents: []string{"sleep"}, Method: analysis.MethodLinear,
	})
	assert.Error(t, err)
}

func twoDigits(n int) string {
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}

func TestRegress_Linear(t *testing.T) {
	req := analysis.RegressionRequest{
		Method:     analysis.MethodLinear,
		Target:     "energy",
		Predictors: []string{"sleep", "steps"},
	}
	for i := 0; i < 20; i++ {
		x1 := float64(i)
		x2 := float64((i * 7) % 5)
		noise := 0.01 * (float64((i*3)%4) - 1.5)
		req.X = append(req.X, []float64{x1, x2})
		req.Y = append(req.Y, 1+2*x1-0.5*x2+noise)
	}

	res, err := New().Regress(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Coefficients, 3)
	assert.Equal(t, "const", res.Coefficients[0].Name)
	assert.InDelta(t, 1.0, float64(res.Coefficients[0].Estimate), 0.05)
	assert.InDelta(t, 2.0, float64(res.Coefficients[1].Estimate), 0.01)
	assert.InDelta(t, -0.5, float64(res.Coefficients[2].Estimate), 0.02)
	assert.Less(t, float64(res.Coefficients[1].PValue), 0.01)
	assert.Greater(t, float64(res.Fit), 0.99)
	assert.Len(t, res.Residuals, 20)
	assert.Len(t, res.Fitted, 20)
}

func TestRegress_LinearNeedsMoreRowsThanTerms(t *testing.T) {
	_, err := New().Regress(context.Background(), analysis.RegressionRequest{
		Method:     analysis.MethodLinear,
		Predictors: []string{"a", "b"},
		Y:          []float64{1, 2, 3},
		X:          [][]float64{{1, 2}, {2, 1}, {3, 5}},
	})
	assert.Error(t, err)
}

func TestRegress_Ordinal(t *testing.T) {
	req := analysis.RegressionRequest{
		Method:     analysis.MethodOrdinal,
		Target:     "mood",
		Predictors: []string{"sleep", "noise"},
	}
	for i := 0; i < 30; i++ {
		x := float64(i % 10)
		shifted := x + float64(i/10) - 1
		y := 3.0
		switch {
		case shifted < 4:
			y = 1
		case shifted < 7:
			y = 2
		}
		req.X = append(req.X, []float64{x, float64((i * 7) % 5)})
		req.Y = append(req.Y, y)
	}

	res, err := New().Regress(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodOrdinal, res.Method)
	require.Len(t, res.Coefficients, 2)
	assert.Greater(t, float64(res.Coefficients[0].Estimate), 0.0)
	require.Len(t, res.Thresholds, 2)
	assert.Equal(t, "1/2", res.Thresholds[0].Label)
	assert.Greater(t, float64(res.Fit), 0.0)
	assert.LessOrEqual(t, float64(res.Fit), 1.0)

	assert.Equal(t, "sleep", res.CurveVariable)
	require.Len(t, res.Curves, 3)
	for i := range res.Curves[0].X {
		var sum float64
		for _, c := range res.Curves {
			sum += c.P[i]
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
	first, last := res.Curves[2].P[0], res.Curves[2].P[len(res.Curves[2].P)-1]
	assert.Greater(t, last, first, "top class becomes likelier as sleep grows")
}

func TestRegress_LinearConstantPredictorIsAliased(t *testing.T) {
	req := analysis.RegressionRequest{
		Method:     analysis.MethodLinear,
		Target:     "weight",
		Predictors: []string{"sleep_hours", "vitamins"},
	}
	for i := 0; i < 15; i++ {
		sleep := 6 + float64(i%4)
		req.X = append(req.X, []float64{sleep, 1})
		req.Y = append(req.Y, 80-0.5*sleep+0.1*float64(i%3))
	}

	res, err := New().Regress(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Coefficients, 3)
	assert.Equal(t, []string{"const", "sleep_hours", "vitamins"},
		[]string{res.Coefficients[0].Name, res.Coefficients[1].Name, res.Coefficients[2].Name})

	assert.False(t, res.Coefficients[1].Aliased)
	assert.InDelta(t, -0.5, float64(res.Coefficients[1].Estimate), 0.05)

	vitamins := res.Coefficients[2]
	assert.True(t, vitamins.Aliased)
	assert.True(t, math.IsNaN(float64(vitamins.Estimate)))
	assert.True(t, math.IsNaN(float64(vitamins.PValue)))
}

func TestRegress_LinearSquaredBooleanIsAliased(t *testing.T) {
	req := analysis.RegressionRequest{
		Method:     analysis.MethodLinear,
		Target:     "mood",
		Predictors: []string{"walk", "walk_squared", "sleep"},
	}
	for i := 0; i < 20; i++ {
		walk := float64(i % 2)
		sleep := float64(5 + i%5)
		req.X = append(req.X, []float64{walk, walk * walk, sleep})
		req.Y = append(req.Y, 2+walk+0.3*sleep+0.01*float64(i%3))
	}

	res, err := New().Regress(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Coefficients, 4)
	assert.False(t, res.Coefficients[1].Aliased)
	assert.True(t, res.Coefficients[2].Aliased, "walk_squared equals walk")
	assert.False(t, res.Coefficients[3].Aliased)
	assert.InDelta(t, 0.3, float64(res.Coefficients[3].Estimate), 0.02)
}

func TestRegress_AllPredictorsConstant(t *testing.T) {
	for _, method := range []analysis.Method{analysis.MethodLinear, analysis.MethodOrdinal} {
		req := analysis.RegressionRequest{Method: method, Target: "mood", Predictors: []string{"vitamins"}}
		for i := 0; i < 12; i++ {
			req.X = append(req.X, []float64{1})
			req.Y = append(req.Y, float64(1+i%3))
		}
		_, err := New().Regress(context.Background(), req)
		var ide *domain.InsufficientDataError
		require.ErrorAs(t, err, &ide, "%s", method)
		assert.Contains(t, ide.Reason, "vitamins")
	}
}

func TestRegress_OrdinalConstantPredictorIsAliased(t *testing.T) {
	req := analysis.RegressionRequest{
		Method:     analysis.MethodOrdinal,
		Target:     "mood",
		Predictors: []string{"vitamins", "sleep"},
	}
	for i := 0; i < 30; i++ {
		x := float64(i % 10)
		y := 3.0
		switch {
		case x+float64(i/10)-1 < 4:
			y = 1
		case x+float64(i/10)-1 < 7:
			y = 2
		}
		req.X = append(req.X, []float64{1, x})
		req.Y = append(req.Y, y)
	}

	res, err := New().Regress(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Coefficients, 2)
	assert.True(t, res.Coefficients[0].Aliased)
	assert.Equal(t, "sleep", res.Coefficients[1].Name)
	assert.Greater(t, float64(res.Coefficients[1].Estimate), 0.0)
	assert.Equal(t, "sleep", res.CurveVariable)
}
