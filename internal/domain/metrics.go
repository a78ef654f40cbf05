package domain

import "context"

// Metrics records operational counters.
type Metrics interface {
	WorkflowFinished(ctx context.Context, flow, outcome string)
	AnalysisDispatched(ctx context.Context, kind, method string)
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

// WorkflowFinished implements Metrics.
func (NopMetrics) WorkflowFinished(context.Context, string, string) {}

// AnalysisDispatched implements Metrics.
func (NopMetrics) AnalysisDispatched(context.Context, string, string) {}
