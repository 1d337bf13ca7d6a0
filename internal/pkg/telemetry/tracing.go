package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for every span in the module.
const TracerName = "github.com/samirrijal/menuwatch"

// Span attribute keys.
const (
	AttrOperation   = attribute.Key("menuwatch.gateway.operation")
	AttrStatusCode  = attribute.Key("http.status_code")
	AttrLocationID  = attribute.Key("menuwatch.location_id")
	AttrCanonicalID = attribute.Key("menuwatch.canonical_id")
	AttrMergeMode   = attribute.Key("menuwatch.merge_mode")
	AttrRegion      = attribute.Key("menuwatch.region")
)

// Tracer returns the module tracer from the global provider. Without
// InitTracer the global provider is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// InitTracer installs an OTLP/gRPC tracer provider. An empty endpoint leaves
// the no-op provider in place and returns a no-op shutdown.
func InitTracer(ctx context.Context, service, endpoint string, sampleRatio float64) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", service))

	if sampleRatio <= 0 || sampleRatio > 1 {
		sampleRatio = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
