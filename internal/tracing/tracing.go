// Package tracing builds the OpenTelemetry tracer provider used by the command line tool.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Supported exporters.
const (
	// Tracing disabled
	ExporterNone = "none"
	// Spans are pretty printed to a writer
	ExporterStdout = "stdout"
	// Spans are sent to an OTLP/HTTP collector
	ExporterOTLP = "otlp"
)

// Tracer provider settings.
type Config struct {
	// Exporter: ExporterNone, ExporterStdout or ExporterOTLP
	Exporter string
	// host:port of the OTLP/HTTP collector
	Endpoint string
	// Use plain HTTP to reach the collector
	Insecure bool
	// Service name and version recorded in the resource
	ServiceName    string
	ServiceVersion string
	// Destination of ExporterStdout. Defaults to stdout when nil.
	Writer io.Writer
}

// Flush and release the tracer provider.
type ShutdownFunc func(ctx context.Context) error

// # Description
//
// Build a tracer provider from the provided configuration. With ExporterNone, a no-op tracer
// provider is returned.
//
// # Returns
//
// The tracer provider, a function to call on exit to flush pending spans and an error if the
// exporter cannot be created.
func NewTracerProvider(ctx context.Context, cfg Config) (trace.TracerProvider, ShutdownFunc, error) {
	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case ExporterNone, "":
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	case ExporterStdout:
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if cfg.Writer != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Writer))
		}
		exporter, err = stdouttrace.New(opts...)
	case ExporterOTLP:
		opts := []otlptracehttp.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default:
		return nil, nil, fmt.Errorf("unsupported trace exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s exporter: %w", cfg.Exporter, err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		)),
	)
	return tp, tp.Shutdown, nil
}
