package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

const (
	serviceName    = "analyze-your-life"
	serviceVersion = "1.0.0"
)

// Exporter records domain metrics and ships them to an OTEL Collector.
type Exporter struct {
	provider  *sdkmetric.MeterProvider
	workflows metric.Int64Counter
	analyses  metric.Int64Counter
}

var _ domain.Metrics = (*Exporter)(nil)

// NewExporter creates an OTLP gRPC metrics exporter.
func NewExporter(ctx context.Context, cfg Config) (*Exporter, error) {
	if !cfg.Active() {
		return nil, fmt.Errorf("OTEL exporter is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts,
			otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			otlpmetricgrpc.WithInsecure(),
		)
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return newExporter(provider)
}

func newExporter(provider *sdkmetric.MeterProvider) (*Exporter, error) {
	meter := provider.Meter(serviceName)

	workflows, err := meter.Int64Counter(
		"ayl_workflows_total",
		metric.WithDescription("Conversation workflows that reached idle, by flow and outcome"),
		metric.WithUnit("{workflow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating workflows counter: %w", err)
	}

	analyses, err := meter.Int64Counter(
		"ayl_analyses_total",
		metric.WithDescription("Statistical procedures dispatched, by kind and method"),
		metric.WithUnit("{analysis}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating analyses counter: %w", err)
	}

	return &Exporter{provider: provider, workflows: workflows, analyses: analyses}, nil
}

// WorkflowFinished counts a workflow ending with outcome.
func (e *Exporter) WorkflowFinished(ctx context.Context, flow, outcome string) {
	e.workflows.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("outcome", outcome),
	))
}

// AnalysisDispatched counts one statistical procedure run.
func (e *Exporter) AnalysisDispatched(ctx context.Context, kind, method string) {
	e.analyses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("method", method),
	))
}

// Close shuts down the exporter and flushes any pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
