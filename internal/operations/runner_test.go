package operations

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oceancli/internal/dataprocessing"
	"oceancli/internal/infrastructure"
	"oceancli/internal/shared/testutil"
	"oceancli/pkg/contracts/domain"
)

func seedFrame() *dataprocessing.Frame {
	return dataprocessing.MustFrame(
		dataprocessing.NewFloatSeries(domain.ColumnSalinity, []float64{36.2, 35.5, 34.9}),
	)
}

func TestRunner(t *testing.T) {
	failing := newStage("explode", "explode()", func(context.Context, *dataprocessing.Frame) (*dataprocessing.Frame, error) {
		return nil, errors.New("boom")
	})

	tests := []struct {
		name     string
		stages   []Stage
		initial  *dataprocessing.Frame
		wantType ErrorType
		wantStep string
		rows     int
	}{
		{
			name:    "no stages returns the initial frame",
			initial: seedFrame(),
			rows:    3,
		},
		{
			name:    "stages thread the frame",
			stages:  NewPipeline(nil, nil).SortValues(domain.ColumnSalinity).FilterColumn(domain.ColumnSalinity, dataprocessing.LessThan, 36.0).Stages(),
			initial: seedFrame(),
			rows:    2,
		},
		{
			name:     "transform without data",
			stages:   NewPipeline(nil, nil).SortValues(domain.ColumnSalinity).Stages(),
			wantType: ErrorTypeExecution,
			wantStep: OpSortValues,
		},
		{
			name:     "missing column is a schema error",
			stages:   NewPipeline(nil, nil).SortValues("Missing").Stages(),
			initial:  seedFrame(),
			wantType: ErrorTypeSchema,
			wantStep: OpSortValues,
		},
		{
			name:     "extract without extractor",
			stages:   NewPipeline(nil, nil).Extract("seabed.csv").Stages(),
			wantType: ErrorTypeExtraction,
			wantStep: OpExtract,
		},
		{
			name:     "unclassified failure",
			stages:   []Stage{failing},
			initial:  seedFrame(),
			wantType: ErrorTypeExecution,
			wantStep: "explode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewRunner(nil, nil).Run(context.Background(), tt.stages, tt.initial)
			if tt.wantType != "" {
				require.Error(t, err)
				assert.Nil(t, f)

				var opErr *OperationError
				require.ErrorAs(t, err, &opErr)
				assert.Equal(t, tt.wantType, opErr.Type)
				assert.Equal(t, tt.wantStep, opErr.Step)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rows, f.Len())
		})
	}
}

func TestRunnerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stages := NewPipeline(nil, nil).SortValues(domain.ColumnSalinity).Stages()
	_, err := NewRunner(nil, nil).Run(ctx, stages, seedFrame())
	require.Error(t, err)
	assert.Equal(t, ErrorTypeCancellation, GetErrorType(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunnerLogging(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	runner := NewRunner(logger, nil)

	ok := NewPipeline(nil, runner).SortValues(domain.ColumnSalinity).Stages()
	_, err := runner.Run(context.Background(), ok, seedFrame())
	require.NoError(t, err)
	testutil.AssertLogContains(t, handler, slog.LevelDebug, "stage_completed")
	testutil.AssertLogContains(t, handler, slog.LevelDebug, "pipeline_completed")
	testutil.AssertNoErrors(t, handler)

	handler.Clear()
	bad := NewPipeline(nil, runner).SortValues("Missing").Stages()
	_, err = runner.Run(context.Background(), bad, seedFrame())
	require.Error(t, err)
	testutil.AssertLogContains(t, handler, slog.LevelError, "stage_failed")
	assert.True(t, handler.ContainsAttr("error_type", string(ErrorTypeSchema)))
}

func TestRunnerRecordsMetrics(t *testing.T) {
	providers, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{
		ServiceName:   infrastructure.ServiceName,
		EnableMetrics: true,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	tracer, err := NewOperationTracer(providers)
	require.NoError(t, err)
	require.NotNil(t, tracer.Metrics())

	runner := NewRunner(nil, tracer)
	stages := NewPipeline(nil, runner).SortValues(domain.ColumnSalinity).Stages()
	_, err = runner.Run(context.Background(), stages, seedFrame())
	require.NoError(t, err)

	families, err := providers.Registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "pipeline_stages_total")
	assert.Contains(t, names, "pipeline_rows_processed_total")
}
