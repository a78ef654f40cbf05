package analysis_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikhalGarbuz/analyze-your-life/internal/analysis"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

type fakeStats struct {
	correlateFn func(ctx context.Context, req analysis.CorrelationRequest) (*analysis.Matrix, error)
	regressFn   func(ctx context.Context, req analysis.RegressionRequest) (*analysis.RegressionResult, error)
}

func (f *fakeStats) Correlate(ctx context.Context, req analysis.CorrelationRequest) (*analysis.Matrix, error) {
	if f.correlateFn != nil {
		return f.correlateFn(ctx, req)
	}
	values := make([][]analysis.Number, len(req.Independents))
	for i := range values {
		values[i] = make([]analysis.Number, len(req.Goals))
	}
	return &analysis.Matrix{Method: req.Method, Rows: req.Independents, Cols: req.Goals, Values: values}, nil
}

func (f *fakeStats) Regress(ctx context.Context, req analysis.RegressionRequest) (*analysis.RegressionResult, error) {
	if f.regressFn != nil {
		return f.regressFn(ctx, req)
	}
	res := &analysis.RegressionResult{Method: req.Method, Target: req.Target, Rows: len(req.Y)}
	for _, p := range req.Predictors {
		res.Coefficients = append(res.Coefficients, analysis.Coefficient{Name: p, Estimate: 0.3, PValue: 0.02})
	}
	return res, nil
}

type fakeRenderer struct {
	panels int
}

func (f *fakeRenderer) RenderCorrelation(_ context.Context, panels []analysis.Matrix) ([]byte, error) {
	f.panels = len(panels)
	return []byte("png"), nil
}

func (f *fakeRenderer) RenderRegression(_ context.Context, _ *analysis.RegressionResult) ([]byte, error) {
	return []byte("png"), nil
}

func sleepStudyEntries(days int) []domain.DailyEntry {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := make([]domain.DailyEntry, days)
	for i := range entries {
		entries[i] = domain.DailyEntry{
			Date: start.AddDate(0, 0, i).Format(domain.DayLayout),
			Values: map[string]domain.Value{
				"mood":        domain.ClassValue(1 + i%10),
				"sleep_hours": domain.NumericValue(5 + float64(i%4)),
				"coffee":      domain.BoolValue(i%2 == 0),
			},
		}
	}
	return entries
}

func TestSelectCorrelationMethods_Thresholds(t *testing.T) {
	tests := []struct {
		rows int
		want []analysis.Method
	}{
		{10, []analysis.Method{analysis.MethodKendall}},
		{19, []analysis.Method{analysis.MethodKendall}},
		{20, []analysis.Method{analysis.MethodKendall, analysis.MethodPearson}},
		{34, []analysis.Method{analysis.MethodKendall, analysis.MethodPearson}},
		{35, []analysis.Method{analysis.MethodPearson}},
		{400, []analysis.Method{analysis.MethodPearson}},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%d rows", tc.rows), func(t *testing.T) {
			got, err := analysis.SelectCorrelationMethods(tc.rows)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, n := range []int{0, 9} {
		_, err := analysis.SelectCorrelationMethods(n)
		var ide *domain.InsufficientDataError
		require.ErrorAs(t, err, &ide)
		assert.Equal(t, n, ide.Rows)
	}
}

func TestSelectRegressionMethod_ByTargetType(t *testing.T) {
	assert.Equal(t, analysis.MethodLinear, analysis.SelectRegressionMethod(domain.Parameter{Type: domain.TypeNumeric}))
	assert.Equal(t, analysis.MethodOrdinal, analysis.SelectRegressionMethod(domain.Parameter{Type: domain.TypeClass}))
	assert.Equal(t, analysis.MethodOrdinal, analysis.SelectRegressionMethod(domain.Parameter{Type: domain.TypeBoolean}))
}

func TestDispatcher_Correlate_SleepStudyRunsKendallOnly(t *testing.T) {
	var requests []analysis.CorrelationRequest
	stats := &fakeStats{}
	stats.correlateFn = func(ctx context.Context, req analysis.CorrelationRequest) (*analysis.Matrix, error) {
		requests = append(requests, req)
		return (&fakeStats{}).Correlate(ctx, req)
	}
	render := &fakeRenderer{}
	d := analysis.NewDispatcher(stats, render, nil, analysis.Options{})

	table := analysis.Assemble(sleepStudyEntries(12), sleepStudy)
	report, err := d.Correlate(context.Background(), table, sleepStudy)
	require.NoError(t, err)

	assert.Equal(t, []analysis.Method{analysis.MethodKendall}, report.Methods)
	require.Len(t, requests, 1)
	assert.Equal(t, []string{"mood"}, requests[0].Goals)
	assert.Equal(t, []string{"sleep_hours", "coffee"}, requests[0].Independents)
	assert.Equal(t, 1, render.panels)
	assert.Equal(t, []byte("png"), report.Chart)
}

func TestDispatcher_Correlate_TwoPanelsBetween20And34(t *testing.T) {
	render := &fakeRenderer{}
	d := analysis.NewDispatcher(&fakeStats{}, render, nil, analysis.Options{})

	report, err := d.Correlate(context.Background(), analysis.Assemble(sleepStudyEntries(25), sleepStudy), sleepStudy)
	require.NoError(t, err)
	assert.Len(t, report.Matrices, 2)
	assert.Equal(t, 2, render.panels)
}

func TestDispatcher_Correlate_Refusals(t *testing.T) {
	d := analysis.NewDispatcher(&fakeStats{}, &fakeRenderer{}, nil, analysis.Options{})
	ctx := context.Background()

	_, err := d.Correlate(ctx, analysis.Assemble(sleepStudyEntries(9), sleepStudy), sleepStudy)
	var ide *domain.InsufficientDataError
	require.ErrorAs(t, err, &ide)

	noGoals := []domain.Parameter{sleepStudy[1], sleepStudy[2]}
	_, err = d.Correlate(ctx, analysis.Assemble(sleepStudyEntries(12), noGoals), noGoals)
	require.ErrorAs(t, err, &ide)
	assert.Contains(t, ide.Reason, "goal")

	onlyGoal := []domain.Parameter{sleepStudy[0]}
	_, err = d.Correlate(ctx, analysis.Assemble(sleepStudyEntries(12), onlyGoal), onlyGoal)
	require.ErrorAs(t, err, &ide)
	assert.Contains(t, ide.Reason, "at least one independent parameter")
}

func TestDispatcher_Correlate_PropagatesCollaboratorError(t *testing.T) {
	boom := errors.New("boom")
	d := analysis.NewDispatcher(&fakeStats{
		correlateFn: func(context.Context, analysis.CorrelationRequest) (*analysis.Matrix, error) { return nil, boom },
	}, &fakeRenderer{}, nil, analysis.Options{})

	_, err := d.Correlate(context.Background(), analysis.Assemble(sleepStudyEntries(12), sleepStudy), sleepStudy)
	require.ErrorIs(t, err, boom)
}

func TestDispatcher_Regress_DispatchAndDesign(t *testing.T) {
	params := []domain.Parameter{
		{Name: "mood", Role: domain.RoleGoal, Type: domain.TypeClass, ClassMin: intPtr(1), ClassMax: intPtr(10)},
		{Name: "energy", Role: domain.RoleGoal, Type: domain.TypeNumeric},
		{Name: "sleep_hours", Role: domain.RoleIndependent, Type: domain.TypeNumeric},
		{Name: "coffee", Role: domain.RoleIndependent, Type: domain.TypeBoolean},
	}
	entries := sleepStudyEntries(15)
	for i := range entries {
		entries[i].Values["energy"] = domain.NumericValue(float64(i))
	}
	delete(entries[3].Values, "sleep_hours")
	table := analysis.Assemble(entries, params)

	var got analysis.RegressionRequest
	stats := &fakeStats{}
	stats.regressFn = func(ctx context.Context, req analysis.RegressionRequest) (*analysis.RegressionResult, error) {
		got = req
		return (&fakeStats{}).Regress(ctx, req)
	}

	d := analysis.NewDispatcher(stats, &fakeRenderer{}, nil, analysis.Options{SquaredTerms: true})

	report, err := d.Regress(context.Background(), table, params, "energy")
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodLinear, got.Method)
	assert.Equal(t, []string{"mood", "sleep_hours", "coffee", "mood_squared", "sleep_hours_squared"}, got.Predictors)
	assert.Len(t, got.Y, 14, "row with a missing cell is dropped")
	for _, row := range got.X {
		require.Len(t, row, 5)
		assert.Equal(t, row[1]*row[1], row[4])
		for _, v := range row {
			assert.False(t, math.IsNaN(v))
		}
	}
	assert.Equal(t, analysis.StrengthModerate, report.Result.Coefficients[0].Strength)
	assert.Equal(t, analysis.SignificanceSignificant, report.Result.Coefficients[0].Significance)

	_, err = d.Regress(context.Background(), table, params, "mood")
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodOrdinal, got.Method)
	assert.Equal(t, []string{"energy", "sleep_hours", "coffee"}, got.Predictors, "squared terms only apply to linear fits")
}

func TestDispatcher_Regress_Refusals(t *testing.T) {
	d := analysis.NewDispatcher(&fakeStats{}, &fakeRenderer{}, nil, analysis.Options{})
	ctx := context.Background()
	table := analysis.Assemble(sleepStudyEntries(12), sleepStudy)

	_, err := d.Regress(ctx, table, sleepStudy, "sleep_hours")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf, "independent parameters are not valid targets")

	_, err = d.Regress(ctx, table, sleepStudy, "missing")
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Name)
	assert.EqualError(t, err, `goal parameter "missing" not found`)

	onlyGoal := []domain.Parameter{sleepStudy[0]}
	_, err = d.Regress(ctx, analysis.Assemble(sleepStudyEntries(12), onlyGoal), onlyGoal, "mood")
	var ide *domain.InsufficientDataError
	require.ErrorAs(t, err, &ide)

	_, err = d.Regress(ctx, analysis.Assemble(sleepStudyEntries(3), sleepStudy), sleepStudy, "mood")
	require.ErrorAs(t, err, &ide)
}

func TestClassifyBuckets(t *testing.T) {
	assert.Equal(t, analysis.StrengthVeryStrong, analysis.ClassifyStrength(-1.5))
	assert.Equal(t, analysis.StrengthStrong, analysis.ClassifyStrength(0.51))
	assert.Equal(t, analysis.StrengthModerate, analysis.ClassifyStrength(0.5))
	assert.Equal(t, analysis.StrengthWeak, analysis.ClassifyStrength(0.06))
	assert.Equal(t, analysis.StrengthNegligible, analysis.ClassifyStrength(0.05))

	assert.Equal(t, analysis.SignificanceReliable, analysis.ClassifySignificance(0.001))
	assert.Equal(t, analysis.SignificanceSignificant, analysis.ClassifySignificance(0.01))
	assert.Equal(t, analysis.SignificanceBorderline, analysis.ClassifySignificance(0.07))
	assert.Equal(t, analysis.SignificanceUnreliable, analysis.ClassifySignificance(0.1))
	assert.Equal(t, analysis.SignificanceUnreliable, analysis.ClassifySignificance(math.NaN()))
}

func TestNumber_MarshalJSON(t *testing.T) {
	b, err := analysis.Number(0.123456).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "0.1235", string(b))

	b, err = analysis.Number(math.NaN()).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}
