package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/MikhalGarbuz/analyze-your-life/internal/adapter/memory"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

func TestExport(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	exp, _ := db.CreateExperiment(ctx, 1, "Sleep Study")
	_, _ = db.CreateParameter(ctx, domain.Parameter{ExperimentID: exp.ID, Name: "mood", Role: domain.RoleGoal, Type: domain.TypeNumeric})
	_, _ = db.CreateParameter(ctx, domain.Parameter{ExperimentID: exp.ID, Name: "coffee", Role: domain.RoleIndependent, Type: domain.TypeBoolean})
	_, _ = db.UpsertDailyEntry(ctx, 1, exp.ID, "2025-01-01", map[string]domain.Value{"mood": domain.NumericValue(6), "coffee": domain.BoolValue(true)})
	_, _ = db.UpsertDailyEntry(ctx, 1, exp.ID, "2025-01-02", map[string]domain.Value{"mood": domain.NumericValue(8)})

	svc := NewExportService(NewExperimentService(db, db, db))
	name, data, err := svc.Export(ctx, 1, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sleep Study.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(EntriesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"date", "mood", "coffee"}, rows[0])
	assert.Equal(t, []string{"2025-01-01", "6", "+"}, rows[1])
	assert.Equal(t, "2025-01-02", rows[2][0])
	assert.Equal(t, "8", rows[2][1])

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, "mood", summary[1][0])
	assert.Equal(t, "2", summary[1][3])
	assert.Equal(t, "7", summary[1][4])
	assert.Equal(t, "1", summary[2][3])
}

func TestExport_ForeignExperiment(t *testing.T) {
	db := memory.New()
	exp, _ := db.CreateExperiment(context.Background(), 2, "Theirs")

	svc := NewExportService(NewExperimentService(db, db, db))
	_, _, err := svc.Export(context.Background(), 1, exp.ID)
	var nf *domain.NotFoundError
	assert.True(t, errors.As(err, &nf))
}
