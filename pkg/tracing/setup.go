package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

// SetupConfig configures the tracer provider for the service.
type SetupConfig struct {
	ServiceName string
	Environment string
	// OTLPEndpoint enables the OTLP exporter when non-empty; spans are
	// otherwise dropped.
	OTLPEndpoint string
	OTLPProtocol string
	Insecure     bool
}

// Setup installs a tracer provider and the service tracer. The returned
// shutdown func flushes pending spans.
func Setup(ctx context.Context, cfg SetupConfig) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	if cfg.OTLPEndpoint != "" {
		protocol := cfg.OTLPProtocol
		if protocol == "" {
			protocol = "grpc"
		}
		otlpExporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: protocol,
			Insecure: cfg.Insecure,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		exporter = otlpExporter
	} else {
		exporter = &exporters.ConsoleExporter{}
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	SetTracer(provider.Tracer(cfg.ServiceName))

	return provider.Shutdown, nil
}
