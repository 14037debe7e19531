package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "rustyrefactor"

// Tracer is the package-wide tracer. It resolves through the global provider,
// so spans are no-ops until InitTracing installs an exporter.
var Tracer trace.Tracer = otel.Tracer(instrumentationName)

// InitTracing installs an OTLP/gRPC exporter when endpoint is set. The
// returned shutdown func flushes pending spans and is always non-nil.
func InitTracing(ctx context.Context, endpoint, serviceName string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if strings.TrimSpace(endpoint) == "" {
		return noop, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSpanProcessor(serviceNameProcessor{name: serviceName}),
	)
	otel.SetTracerProvider(provider)
	Tracer = provider.Tracer(instrumentationName)

	return provider.Shutdown, nil
}

// serviceNameProcessor stamps every span with the configured service name.
type serviceNameProcessor struct {
	name string
}

func (p serviceNameProcessor) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	if p.name != "" {
		s.SetAttributes(attribute.String("service.name", p.name))
	}
}

func (serviceNameProcessor) OnEnd(sdktrace.ReadOnlySpan) {}

func (serviceNameProcessor) Shutdown(context.Context) error { return nil }

func (serviceNameProcessor) ForceFlush(context.Context) error { return nil }
