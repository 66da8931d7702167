package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func installTestProviders(t *testing.T) (*tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
	})
	return spans, reader
}

func TestStepRecorderSpans(t *testing.T) {
	spans, _ := installTestProviders(t)
	ctx := context.Background()
	r := NewStepRecorder()

	_, span, start := r.Start(ctx, "EnsureColumn")
	r.Done(ctx, span, start, "EnsureColumn", true, nil)
	_, span, start = r.Start(ctx, "AddForeignKey")
	r.Done(ctx, span, start, "AddForeignKey", false, errors.New("orphaned rows"))

	ended := spans.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
	if ended[0].Name() != "migrate.EnsureColumn" {
		t.Errorf("span name = %q", ended[0].Name())
	}
	if got := outcomeOf(ended[0]); got != "applied" {
		t.Errorf("outcome = %q, want applied", got)
	}
	if got := outcomeOf(ended[1]); got != "failed" {
		t.Errorf("outcome = %q, want failed", got)
	}
	if ended[1].Status().Code != codes.Error {
		t.Errorf("failed span status = %v", ended[1].Status().Code)
	}
}

func TestStepRecorderMetrics(t *testing.T) {
	_, reader := installTestProviders(t)
	ctx := context.Background()
	r := NewStepRecorder()

	for _, applied := range []bool{true, false, false} {
		_, span, start := r.Start(ctx, "Remap")
		r.Done(ctx, span, start, "Remap", applied, nil)
	}
	r.Unresolved(ctx, 2)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var steps, unresolved int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "firma.migrate.steps":
				for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
					steps += dp.Value
				}
			case "firma.migrate.unresolved":
				for _, dp := range m.Data.(metricdata.Gauge[int64]).DataPoints {
					unresolved = dp.Value
				}
			}
		}
	}
	if steps != 3 {
		t.Errorf("firma.migrate.steps = %d, want 3", steps)
	}
	if unresolved != 2 {
		t.Errorf("firma.migrate.unresolved = %d, want 2", unresolved)
	}
}

func TestInitDisabledIsNoop(t *testing.T) {
	t.Setenv("FIRMA_OTEL_ENABLED", "")
	if err := Init(context.Background(), "firma", "test"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Enabled() {
		t.Error("Enabled() with empty FIRMA_OTEL_ENABLED")
	}
	Shutdown(context.Background())
}

func outcomeOf(s sdktrace.ReadOnlySpan) string {
	for _, kv := range s.Attributes() {
		if kv.Key == "firma.outcome" {
			return kv.Value.AsString()
		}
	}
	return ""
}
