package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNoneExporter(t *testing.T) {
	tp, shutdown, err := NewTracerProvider(context.Background(), Config{Exporter: ExporterNone})
	require.NoError(t, err)
	require.IsType(t, noop.TracerProvider{}, tp)
	require.NoError(t, shutdown(context.Background()))
}

func TestStdoutExporter(t *testing.T) {
	out := new(bytes.Buffer)
	tp, shutdown, err := NewTracerProvider(context.Background(), Config{
		Exporter:       ExporterStdout,
		ServiceName:    "wsfacade",
		ServiceVersion: "test",
		Writer:         out,
	})
	require.NoError(t, err)
	_, span := tp.Tracer("test").Start(context.Background(), "hello")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	require.Contains(t, out.String(), `"Name": "hello"`)
	require.Contains(t, out.String(), "wsfacade")
}

func TestOTLPExporter(t *testing.T) {
	// The exporter connects lazily: creation succeeds without a collector
	tp, shutdown, err := NewTracerProvider(context.Background(), Config{
		Exporter: ExporterOTLP,
		Endpoint: "localhost:4318",
		Insecure: true,
	})
	require.NoError(t, err)
	require.NotNil(t, tp)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestUnknownExporter(t *testing.T) {
	_, _, err := NewTracerProvider(context.Background(), Config{Exporter: "jaeger"})
	require.Error(t, err)
}
