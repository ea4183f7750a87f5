// Package telemetry traces the benchmark run itself with OpenTelemetry.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const ServiceName = "coldbench"

// Runtime holds the tracer and the hook flushing it.
type Runtime struct {
	Tracer   oteltrace.Tracer
	Shutdown func(context.Context) error
}

// Setup installs a tracer provider exporting spans to w when enabled.
// Otherwise the global no-op tracer is returned.
func Setup(enabled bool, w io.Writer) (Runtime, error) {
	noop := Runtime{
		Tracer:   otel.Tracer(ServiceName),
		Shutdown: func(context.Context) error { return nil },
	}
	if !enabled {
		return noop, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", ServiceName),
		),
	)
	if err != nil {
		return Runtime{}, fmt.Errorf("otel resource: %w", err)
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return Runtime{}, fmt.Errorf("otel stdout exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return Runtime{
		Tracer:   tp.Tracer(ServiceName),
		Shutdown: tp.Shutdown,
	}, nil
}
