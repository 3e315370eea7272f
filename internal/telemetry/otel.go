// Package telemetry wires the event pipeline into OpenTelemetry tracing and
// Prometheus metrics, the way the teacher's common/mopentelemetry wires the
// rest of the platform into the OTel SDK.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config selects the resource attributes and collector endpoint for traces.
type Config struct {
	ServiceName     string
	ServiceVersion  string
	DeploymentEnv   string
	OTLPEndpoint    string
	EnableTelemetry bool
}

// Telemetry holds the process-wide tracer provider and a no-op fallback
// tracer used when telemetry is disabled, so call sites never nil-check.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	shutdown       func(context.Context) error
}

// Init builds and globally registers the tracer provider described by cfg.
// When cfg.EnableTelemetry is false, Init still returns a usable Telemetry
// backed by otel's no-op tracer so instrumentation code never special-cases
// "telemetry off".
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.EnableTelemetry {
		return &Telemetry{tracer: otel.Tracer(cfg.ServiceName), shutdown: func(context.Context) error { return nil }}, nil
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.DeploymentEnv),
			attribute.String("rustok.pipeline", "events"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("merge otel resource: %w", err)
	}

	exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("build otlp trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return &Telemetry{
		TracerProvider: tp,
		tracer:         tp.Tracer(cfg.ServiceName),
		shutdown:       shutdownBoth(tp, exp),
	}, nil
}

func shutdownBoth(tp *sdktrace.TracerProvider, exp *otlptrace.Exporter) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}

		return exp.Shutdown(ctx)
	}
}

// Tracer returns the process-wide tracer. Safe to call even when telemetry
// is disabled.
func (t *Telemetry) Tracer() trace.Tracer { return t.tracer }

// Shutdown flushes and tears down the tracer provider.
func (t *Telemetry) Shutdown(ctx context.Context) error { return t.shutdown(ctx) }

// HandleSpanError records err on span and marks it as failed. Mirrors the
// teacher's HandleSpanError helper used at every publish/claim call site.
func HandleSpanError(span trace.Span, message string, err error) {
	span.SetStatus(codes.Error, message+": "+err.Error())
	span.RecordError(err)
}

