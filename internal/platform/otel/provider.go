// Package otel configures OpenTelemetry tracing for governance commands.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/louisbranch/governing.space/internal/platform/config"
)

// Settings selects where spans go. Tracing stays off without an endpoint.
type Settings struct {
	Endpoint string `env:"GOVERNING_SPACE_OTEL_ENDPOINT"`
	Disabled bool   `env:"GOVERNING_SPACE_OTEL_DISABLED"`
	// SampleRatio applies to root spans; children follow their parent.
	SampleRatio float64 `env:"GOVERNING_SPACE_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Enabled reports whether Setup registers a provider for s.
func (s Settings) Enabled() bool {
	return !s.Disabled && s.Endpoint != ""
}

// Setup reads Settings from the environment and calls SetupWith.
func Setup(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	var settings Settings
	if err := config.ParseEnv(&settings); err != nil {
		return nil, err
	}
	return SetupWith(ctx, serviceName, settings)
}

// SetupWith registers a global OTLP/HTTP tracer provider for serviceName.
// When tracing is not enabled the returned shutdown is a no-op and no global
// provider is registered. Callers defer the shutdown to flush pending spans.
func SetupWith(ctx context.Context, serviceName string, settings Settings) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !settings.Enabled() {
		return noop, nil
	}
	if settings.SampleRatio < 0 || settings.SampleRatio > 1 {
		return noop, fmt.Errorf("otel sample ratio must be within [0, 1], got %v", settings.SampleRatio)
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(settings.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, fmt.Errorf("build otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(settings.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}
