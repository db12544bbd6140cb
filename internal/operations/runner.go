package operations

import (
	"context"
	"log/slog"

	"oceancli/internal/dataprocessing"
)

// Runner executes stage lists sequentially. There are no retries and no
// partial results: the first failing stage aborts the run.
type Runner struct {
	logger *slog.Logger
	tracer *OperationTracer
}

// NewRunner creates a Runner. A nil logger uses slog.Default(); a nil tracer
// records spans on the global tracer provider without metrics.
func NewRunner(logger *slog.Logger, tracer *OperationTracer) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer, _ = NewOperationTracer(nil)
	}
	return &Runner{logger: logger, tracer: tracer}
}

// Run threads initial through stages in order and returns the final frame.
// A nil initial frame is only valid when the first stage is an extraction.
// Failures are returned as *OperationError.
func (r *Runner) Run(ctx context.Context, stages []Stage, initial *dataprocessing.Frame) (*dataprocessing.Frame, error) {
	ctx, span := r.tracer.TracePipeline(ctx, stages)
	defer span.End()

	r.logger.DebugContext(ctx, "pipeline_started", slog.Int("stage_count", len(stages)))

	current := initial
	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			opErr := NewCancellationError(stage.ID(), err)
			r.logger.WarnContext(ctx, "pipeline_cancelled",
				slog.String("stage", stage.ID()),
				slog.Int("stage_number", i+1))
			r.tracer.RecordPipelineCompletion(ctx, span, 0, opErr)
			return nil, opErr
		}
		if current == nil && stage.ID() != OpExtract {
			opErr := &OperationError{
				Type:    ErrorTypeExecution,
				Step:    stage.ID(),
				Message: "no data to transform, the pipeline must start with an extraction",
			}
			r.tracer.RecordPipelineCompletion(ctx, span, 0, opErr)
			return nil, opErr
		}

		next, err := r.execute(ctx, i, stage, current)
		if err != nil {
			r.tracer.RecordPipelineCompletion(ctx, span, 0, err)
			return nil, err
		}
		current = next
	}

	rows := 0
	if current != nil {
		rows = current.Len()
	}
	r.logger.DebugContext(ctx, "pipeline_completed",
		slog.Int("stage_count", len(stages)),
		slog.Int("rows", rows))
	r.tracer.RecordPipelineCompletion(ctx, span, rows, nil)
	return current, nil
}

func (r *Runner) execute(ctx context.Context, i int, stage Stage, current *dataprocessing.Frame) (*dataprocessing.Frame, error) {
	ctx, span := r.tracer.TraceStageExecution(ctx, i, stage)
	defer span.End()

	state := NewStepState(stage.ID(), stage.Name())
	state.Start()

	next, err := stage.Execute(ctx, current)
	if err != nil {
		opErr := WrapError(err, stage.ID())
		state.Fail(opErr)
		r.tracer.RecordStageCompletion(ctx, span, state)
		r.logger.ErrorContext(ctx, "stage_failed",
			slog.String("stage", stage.Name()),
			slog.Int("stage_number", i+1),
			slog.String("error_type", string(opErr.Type)),
			slog.String("error", err.Error()))
		return nil, opErr
	}

	state.Complete(next.Len())
	r.tracer.RecordStageCompletion(ctx, span, state)
	r.logger.DebugContext(ctx, "stage_completed",
		slog.String("stage", stage.Name()),
		slog.Int("stage_number", i+1),
		slog.Int("rows", state.Rows),
		slog.Duration("duration", state.Duration()))
	return next, nil
}
