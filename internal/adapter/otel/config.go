// Package otel exports workflow and analysis metrics to an OTLP collector.
package otel

// Config holds OTLP exporter configuration.
type Config struct {
	Endpoint string `validate:"required_if=Enabled true"`
	Enabled  bool
	Insecure bool
}

// Active reports whether metrics should be exported.
func (c Config) Active() bool { return c.Enabled && c.Endpoint != "" }
