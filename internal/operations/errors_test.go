package operations

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oceancli/internal/dataprocessing"
)

func TestWrapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		step string
		want ErrorType
	}{
		{"extract step", errors.New("open seabed.csv: no such file"), OpExtract, ErrorTypeExtraction},
		{"extract sentinel", fmt.Errorf("%w: bad delimiter", dataprocessing.ErrExtract), OpConcatData, ErrorTypeExtraction},
		{"join", fmt.Errorf("%w: TimeStamp", dataprocessing.ErrJoin), OpRemoveValuesNotIn, ErrorTypeJoin},
		{"join over missing column", fmt.Errorf("%w: %w", dataprocessing.ErrJoin, dataprocessing.ErrMissingColumn), OpRemoveValuesNotIn, ErrorTypeJoin},
		{"schema", fmt.Errorf("%w: Salinity_PSU", dataprocessing.ErrMissingColumn), OpSortValues, ErrorTypeSchema},
		{"parse", fmt.Errorf("%w: bad stamp", dataprocessing.ErrParse), OpParseDatetimeColumn, ErrorTypeParse},
		{"cancelled", context.Canceled, OpSortValues, ErrorTypeCancellation},
		{"deadline", context.DeadlineExceeded, OpExtract, ErrorTypeCancellation},
		{"other", dataprocessing.ErrLengthMismatch, OpAddColumn, ErrorTypeExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opErr := WrapError(tt.err, tt.step)
			require.NotNil(t, opErr)
			assert.Equal(t, tt.want, opErr.Type)
			assert.Equal(t, tt.step, opErr.Step)
			assert.ErrorIs(t, opErr, tt.err)
		})
	}

	assert.Nil(t, WrapError(nil, OpSortValues))
}

func TestWrapErrorKeepsNestedOperationErrors(t *testing.T) {
	inner := WrapError(fmt.Errorf("%w: x", dataprocessing.ErrMissingColumn), OpSortValues)
	outer := WrapError(fmt.Errorf("source pipeline: %w", inner), OpConcatData)

	assert.Same(t, inner, outer)
	assert.Equal(t, OpSortValues, outer.Step)
}

func TestOperationErrorMessage(t *testing.T) {
	err := &OperationError{
		Type:    ErrorTypeSchema,
		Step:    OpSortValues,
		Message: "stage failed",
		Cause:   errors.New("missing column: Depth"),
	}
	assert.Equal(t, "[schema] sort_values: stage failed: missing column: Depth", err.Error())
	assert.Equal(t, "[validation] bad input", (&OperationError{Type: ErrorTypeValidation, Message: "bad input"}).Error())
	assert.Equal(t, "unknown operation error", (*OperationError)(nil).Error())

	assert.Equal(t, ErrorTypeExecution, GetErrorType(errors.New("plain")))
	assert.Equal(t, ErrorType(""), GetErrorType(nil))
}

func TestStepState(t *testing.T) {
	state := NewStepState(OpSortValues, "sort_values(TimeStamp)")
	assert.Equal(t, StepStatusPending, state.Status)
	assert.Zero(t, state.Duration())

	state.Start()
	assert.Equal(t, StepStatusActive, state.Status)
	time.Sleep(time.Millisecond)
	state.Complete(42)
	assert.Equal(t, StepStatusCompleted, state.Status)
	assert.Equal(t, 42, state.Rows)
	assert.Positive(t, state.Duration())

	failed := NewStepState(OpExtract, "extract(x)")
	failed.Start()
	failed.Fail(errors.New("boom"))
	assert.Equal(t, StepStatusFailed, failed.Status)
	assert.EqualError(t, failed.Error, "boom")
}
