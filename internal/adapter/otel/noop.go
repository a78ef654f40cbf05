package otel

import (
	"context"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// NoOpExporter discards metrics when no collector is configured.
type NoOpExporter struct {
	domain.NopMetrics
}

// NewNoOpExporter creates a new no-op exporter for graceful degradation.
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

// Close does nothing.
func (e *NoOpExporter) Close(ctx context.Context) error {
	return nil
}
