package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestExporterCounts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exp, err := newExporter(provider)
	require.NoError(t, err)

	ctx := context.Background()
	exp.WorkflowFinished(ctx, "enter_data", "completed")
	exp.WorkflowFinished(ctx, "enter_data", "completed")
	exp.AnalysisDispatched(ctx, "correlation", "kendall")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, m.Name)
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), totals["ayl_workflows_total"])
	assert.Equal(t, int64(1), totals["ayl_analyses_total"])

	require.NoError(t, exp.Close(ctx))
}

func TestNewExporterDisabled(t *testing.T) {
	_, err := NewExporter(context.Background(), Config{Enabled: false, Endpoint: "localhost:4317"})
	assert.Error(t, err)
	assert.False(t, Config{Enabled: true}.Active())
}
