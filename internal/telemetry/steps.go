package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const migrateScopeName = "github.com/fhwedel/firma/migrate"

// StepRecorder traces migration steps and counts them in firma.migrate.* metrics.
// With telemetry disabled the global no-op providers make every call free.
type StepRecorder struct {
	tracer     trace.Tracer
	steps      metric.Int64Counter
	dur        metric.Float64Histogram
	errs       metric.Int64Counter
	unresolved metric.Int64Gauge
}

// NewStepRecorder builds a recorder from the global providers.
func NewStepRecorder() *StepRecorder {
	m := Meter(migrateScopeName)
	steps, _ := m.Int64Counter("firma.migrate.steps",
		metric.WithDescription("Migration steps evaluated, by step and outcome"),
	)
	dur, _ := m.Float64Histogram("firma.migrate.step.duration",
		metric.WithDescription("Migration step duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("firma.migrate.errors",
		metric.WithDescription("Migration steps that failed"),
	)
	unresolved, _ := m.Int64Gauge("firma.migrate.unresolved",
		metric.WithDescription("Entity rows left without a reference after the last run"),
	)
	return &StepRecorder{
		tracer:     Tracer(migrateScopeName),
		steps:      steps,
		dur:        dur,
		errs:       errs,
		unresolved: unresolved,
	}
}

// Start opens a span for the named step.
func (r *StepRecorder) Start(ctx context.Context, step string) (context.Context, trace.Span, time.Time) {
	ctx, span := r.tracer.Start(ctx, "migrate."+step,
		trace.WithAttributes(attribute.String("firma.step", step)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, span, time.Now()
}

// Done ends the span and records whether the step was applied or skipped.
func (r *StepRecorder) Done(ctx context.Context, span trace.Span, start time.Time, step string, applied bool, err error) {
	outcome := "skipped"
	if applied {
		outcome = "applied"
	}
	if err != nil {
		outcome = "failed"
	}
	attrs := metric.WithAttributes(
		attribute.String("firma.step", step),
		attribute.String("firma.outcome", outcome),
	)
	span.SetAttributes(attribute.String("firma.outcome", outcome))
	r.steps.Add(ctx, 1, attrs)
	r.dur.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.errs.Add(ctx, 1, attrs)
	}
	span.End()
}

// Unresolved records the number of rows left without a reference.
func (r *StepRecorder) Unresolved(ctx context.Context, n int64) {
	r.unresolved.Record(ctx, n)
}
