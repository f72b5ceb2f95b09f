package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"dtw/pkg/logger"
	"dtw/pkg/model"
)

// Tracer wraps an OpenTelemetry tracer together with its provider so the
// services can flush spans on shutdown.
type Tracer struct {
	oteltrace.Tracer

	provider *sdktrace.TracerProvider
	log      *logger.Log
}

// New configures the OTLP/HTTP exporter and installs the jaeger propagator.
// An empty tracing address yields a no-op tracer.
func New(ctx context.Context, cfg *model.Cfg, log *logger.Log, projectName, serviceName string) (*Tracer, error) {
	if cfg.Common.Tracing.Addr == "" {
		log.Info("tracing disabled, no exporter address configured")
		return NewForTesting(), nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Common.Tracing.Addr),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	resource := sdkresource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.namespace", projectName),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(jaeger.Jaeger{})

	return &Tracer{
		Tracer:   provider.Tracer(serviceName),
		provider: provider,
		log:      log,
	}, nil
}

// NewForTesting returns a tracer that records nothing.
func NewForTesting() *Tracer {
	return &Tracer{Tracer: noop.NewTracerProvider().Tracer("testing")}
}

// Shutdown flushes buffered spans.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return t.provider.Shutdown(ctx)
}
