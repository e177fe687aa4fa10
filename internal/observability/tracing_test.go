package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracingDisabledReturnsNoopShutdown(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if shutdown == nil {
		t.Fatalf("shutdown func is nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin", SampleRatio: 1}, nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported tracing exporter") {
		t.Fatalf("InitTracing error = %v, want unsupported exporter", err)
	}
}

func TestInitTracingRejectsBadRatio(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, SampleRatio: 2}, nil)
	if err == nil {
		t.Fatalf("InitTracing accepted sample ratio 2")
	}
}

func TestInitTracingStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{
		Enabled:     true,
		ServiceName: "soilcn-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := otel.Tracer("test").Start(ctx, "steady_state")
	span.End()
	ShutdownWithTimeout(ctx, shutdown, nil)

	if !strings.Contains(buf.String(), "steady_state") {
		t.Fatalf("exported spans missing steady_state: %q", buf.String())
	}
}
