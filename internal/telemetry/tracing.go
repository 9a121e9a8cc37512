package telemetry

import (
	"context"
	"fmt"

	"auction-engine/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc flushes and stops the installed tracer provider.
type ShutdownFunc func(ctx context.Context) error

// InitTracing installs the global tracer provider selected by cfg.TraceExporter.
// With "none" the global no-op provider is left in place.
func InitTracing(cfg config.MonitoringConfig) (ShutdownFunc, error) {
	switch cfg.TraceExporter {
	case "", "none":
		return func(context.Context) error { return nil }, nil
	case "stdout":
		exp, err := stdouttrace.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: stdout exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(tp)
		return tp.Shutdown, nil
	default:
		return nil, fmt.Errorf("telemetry: unsupported trace exporter %q", cfg.TraceExporter)
	}
}
