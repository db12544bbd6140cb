package operations

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"oceancli/internal/infrastructure"
)

const (
	TracerName = "oceancli.pipeline"
)

// OperationTracer provides OpenTelemetry instrumentation for pipeline runs
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewOperationTracer creates a tracer recording spans on the global tracer
// provider and metrics on the providers' meter. Nil providers record spans
// only.
func NewOperationTracer(providers *infrastructure.OTelProviders) (*OperationTracer, error) {
	pt := &OperationTracer{tracer: otel.Tracer(TracerName)}
	if providers == nil || providers.Meter == nil {
		return pt, nil
	}
	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	pt.metrics = metrics
	return pt, nil
}

// Metrics returns the metrics the tracer records to, or nil.
func (pt *OperationTracer) Metrics() *infrastructure.PipelineMetrics {
	return pt.metrics
}

// TracePipeline creates a span for a whole pipeline run
func (pt *OperationTracer) TracePipeline(ctx context.Context, stages []Stage) (context.Context, trace.Span) {
	ops := make([]string, len(stages))
	for i, s := range stages {
		ops[i] = s.ID()
	}
	return pt.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("pipeline.run_id", infrastructure.GetTraceID(ctx)),
			attribute.Int("pipeline.stage_count", len(stages)),
			attribute.StringSlice("pipeline.ops", ops),
		),
	)
}

// TraceStageExecution creates a span for individual Stage execution
func (pt *OperationTracer) TraceStageExecution(ctx context.Context, position int, stage Stage) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "stage."+stage.ID(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("stage.op", stage.ID()),
			attribute.String("stage.name", stage.Name()),
			attribute.Int("stage.position", position),
		),
	)
}

// RecordStageCompletion records Stage completion with metrics and span events
func (pt *OperationTracer) RecordStageCompletion(ctx context.Context, span trace.Span, state *StepState) {
	duration := state.Duration()
	span.SetAttributes(
		attribute.String("stage.status", string(state.Status)),
		attribute.Float64("stage.duration_seconds", duration.Seconds()),
		attribute.Int("stage.rows", state.Rows),
	)

	pt.metrics.RecordStage(ctx, state.ID, duration, state.Rows, state.Error)

	if state.Error != nil {
		infrastructure.RecordError(ctx, state.Error,
			trace.WithAttributes(
				attribute.String("stage.op", state.ID),
				attribute.String("error.type", string(GetErrorType(state.Error))),
			),
		)
		span.SetStatus(codes.Error, "stage execution failed")
		return
	}

	infrastructure.AddSpanEvent(ctx, "stage.completed", map[string]any{
		"op":       state.ID,
		"rows":     state.Rows,
		"duration": duration.Seconds(),
	})
	span.SetStatus(codes.Ok, "stage completed")
}

// RecordPipelineCompletion closes the status of a pipeline span
func (pt *OperationTracer) RecordPipelineCompletion(ctx context.Context, span trace.Span, rows int, err error) {
	if err != nil {
		infrastructure.RecordError(ctx, err,
			trace.WithAttributes(attribute.String("error.type", string(GetErrorType(err)))))
		return
	}
	span.SetAttributes(attribute.Int("pipeline.rows", rows))
	span.SetStatus(codes.Ok, "pipeline completed")
}
