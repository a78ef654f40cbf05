package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikhalGarbuz/analyze-your-life/internal/adapter/gonumstats"
	"github.com/MikhalGarbuz/analyze-your-life/internal/adapter/memory"
	"github.com/MikhalGarbuz/analyze-your-life/internal/analysis"
	"github.com/MikhalGarbuz/analyze-your-life/internal/app"
	"github.com/MikhalGarbuz/analyze-your-life/internal/conversation"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

type stubRenderer struct{}

func (stubRenderer) RenderCorrelation(context.Context, []analysis.Matrix) ([]byte, error) {
	return []byte("png"), nil
}

func (stubRenderer) RenderRegression(context.Context, *analysis.RegressionResult) ([]byte, error) {
	return []byte("png"), nil
}

func newAnalysisService(db *memory.DB) *app.AnalysisService {
	d := analysis.NewDispatcher(gonumstats.New(), stubRenderer{}, nil, analysis.Options{})
	return app.NewAnalysisService(db, db, db, d)
}

// say applies one conversation action that must succeed.
func say(t *testing.T, m *conversation.Machine, userID int64, a conversation.Action) *conversation.Reply {
	t.Helper()
	reply, err := m.Handle(context.Background(), userID, a)
	require.NoError(t, err)
	return reply
}

func TestSleepStudyEndToEnd(t *testing.T) {
	db := memory.New()
	svc := newAnalysisService(db)
	now := time.Date(2025, 1, 2, 12, 0, 0, 0, time.Local)
	m := conversation.New(conversation.Config{
		Experiments: db,
		Parameters:  db,
		Entries:     db,
		Analyzer:    svc,
		Store:       db.NewConversationStore(),
		Now:         func() time.Time { return now },
	})
	const user = int64(1)

	say(t, m, user, conversation.Start(conversation.FlowDefineExperiment))
	say(t, m, user, conversation.Text("Sleep Study"))
	created := say(t, m, user, conversation.Choose(conversation.PayloadCreate))
	expID := created.ExperimentID

	defineParam := func(name, role string, addAnother bool) *domain.Parameter {
		say(t, m, user, conversation.Text(name))
		say(t, m, user, conversation.Choose("role:"+role))
		say(t, m, user, conversation.Choose("type:numeric"))
		confirm := conversation.PayloadConfirm
		if addAnother {
			confirm = conversation.PayloadConfirmAddAnother
		}
		return say(t, m, user, conversation.Choose(confirm)).Parameter
	}
	say(t, m, user, conversation.ActionFromPayload(created.Choices[0].Payload))
	mood := defineParam("mood", "goal", true)
	sleep := defineParam("sleep_hours", "independent", false)

	start := time.Date(2024, 12, 20, 0, 0, 0, 0, time.Local)
	for i := 0; i < 12; i++ {
		day := start.AddDate(0, 0, i).Format(domain.DayLayout)
		say(t, m, user, conversation.Action{Kind: conversation.ActionStart, Flow: conversation.FlowEnterData, AskDate: true})
		say(t, m, user, conversation.Text(day))
		say(t, m, user, conversation.Choose(fmt.Sprintf("exp:%d", expID)))
		say(t, m, user, conversation.Choose(fmt.Sprintf("param:%d", sleep.ID)))
		say(t, m, user, conversation.Text(fmt.Sprintf("%.2f", 5+0.25*float64(i))))
		say(t, m, user, conversation.Choose(fmt.Sprintf("param:%d", mood.ID)))
		say(t, m, user, conversation.Text(fmt.Sprintf("%.1f", 3+0.5*float64(i)+0.1*float64(i%2))))
		done := say(t, m, user, conversation.Finish())
		require.True(t, done.Done)
	}

	say(t, m, user, conversation.Start(conversation.FlowCorrelation))
	reply := say(t, m, user, conversation.Choose(fmt.Sprintf("exp:%d", expID)))

	require.NotNil(t, reply.Correlation)
	assert.Equal(t, 12, reply.Correlation.Rows)
	assert.Equal(t, []analysis.Method{analysis.MethodKendall}, reply.Correlation.Methods)
	require.Len(t, reply.Correlation.Matrices, 1)
	matrix := reply.Correlation.Matrices[0]
	assert.Equal(t, []string{"sleep_hours"}, matrix.Rows)
	assert.Equal(t, []string{"mood"}, matrix.Cols)
	assert.InDelta(t, 1.0, float64(matrix.Values[0][0]), 1e-9)
	assert.Contains(t, reply.Text, "sleep_hours")

	say(t, m, user, conversation.Start(conversation.FlowRegression))
	say(t, m, user, conversation.Choose(fmt.Sprintf("exp:%d", expID)))
	reply = say(t, m, user, conversation.Choose(fmt.Sprintf("param:%d", mood.ID)))
	require.NotNil(t, reply.Regression)
	assert.Equal(t, analysis.MethodLinear, reply.Regression.Result.Method)
	assert.Equal(t, 12, reply.Regression.Result.Rows)
}

func TestAnalysisService_ForeignExperiment(t *testing.T) {
	db := memory.New()
	svc := newAnalysisService(db)
	ctx := context.Background()
	exp, err := db.CreateExperiment(ctx, 2, "Theirs")
	require.NoError(t, err)

	_, err = svc.Correlate(ctx, 1, exp.ID)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "experiment", nf.Kind)
}

func TestAnalysisService_RegressRequiresGoalTarget(t *testing.T) {
	db := memory.New()
	svc := newAnalysisService(db)
	ctx := context.Background()
	exp, _ := db.CreateExperiment(ctx, 1, "E")
	_, _ = db.CreateParameter(ctx, domain.Parameter{ExperimentID: exp.ID, Name: "mood", Role: domain.RoleGoal, Type: domain.TypeNumeric})
	ind, _ := db.CreateParameter(ctx, domain.Parameter{ExperimentID: exp.ID, Name: "coffee", Role: domain.RoleIndependent, Type: domain.TypeBoolean})

	_, err := svc.Regress(ctx, 1, exp.ID, ind.ID)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, ind.ID, nf.ID)
}

func TestAnalysisService_TooFewDays(t *testing.T) {
	db := memory.New()
	svc := newAnalysisService(db)
	ctx := context.Background()
	exp, _ := db.CreateExperiment(ctx, 1, "E")
	_, _ = db.CreateParameter(ctx, domain.Parameter{ExperimentID: exp.ID, Name: "mood", Role: domain.RoleGoal, Type: domain.TypeNumeric})
	_, _ = db.CreateParameter(ctx, domain.Parameter{ExperimentID: exp.ID, Name: "coffee", Role: domain.RoleIndependent, Type: domain.TypeBoolean})
	for i := 1; i <= 9; i++ {
		_, err := db.UpsertDailyEntry(ctx, 1, exp.ID, fmt.Sprintf("2024-03-%02d", i), map[string]domain.Value{
			"mood":   domain.NumericValue(float64(i)),
			"coffee": domain.BoolValue(i%2 == 0),
		})
		require.NoError(t, err)
	}

	_, err := svc.Correlate(ctx, 1, exp.ID)
	var ide *domain.InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 9, ide.Rows)
}

func TestAnalysisService_RegressWithHabitLoggedEveryDay(t *testing.T) {
	db := memory.New()
	svc := newAnalysisService(db)
	ctx := context.Background()
	exp, _ := db.CreateExperiment(ctx, 1, "Weight")
	weight, _ := db.CreateParameter(ctx, domain.Parameter{ExperimentID: exp.ID, Name: "weight", Role: domain.RoleGoal, Type: domain.TypeNumeric})
	_, _ = db.CreateParameter(ctx, domain.Parameter{ExperimentID: exp.ID, Name: "sleep_hours", Role: domain.RoleIndependent, Type: domain.TypeNumeric})
	_, _ = db.CreateParameter(ctx, domain.Parameter{ExperimentID: exp.ID, Name: "vitamins", Role: domain.RoleIndependent, Type: domain.TypeBoolean})
	for i := 1; i <= 15; i++ {
		sleep := 6 + float64(i%4)
		_, err := db.UpsertDailyEntry(ctx, 1, exp.ID, fmt.Sprintf("2024-03-%02d", i), map[string]domain.Value{
			"weight":      domain.NumericValue(80 - 0.5*sleep + 0.1*float64(i%3)),
			"sleep_hours": domain.NumericValue(sleep),
			"vitamins":    domain.BoolValue(true),
		})
		require.NoError(t, err)
	}

	report, err := svc.Regress(ctx, 1, exp.ID, weight.ID)
	require.NoError(t, err)
	require.NotNil(t, report)
	coefs := report.Result.Coefficients
	require.Len(t, coefs, 3)
	assert.Equal(t, "vitamins", coefs[2].Name)
	assert.True(t, coefs[2].Aliased)
	assert.Contains(t, report.Result.Markdown(), "vitamins (constant or redundant, not fitted)")
}
