package operations

import (
	"context"
	"errors"
	"fmt"

	"oceancli/internal/dataprocessing"
)

// ErrorType represents the type of operation error
type ErrorType string

const (
	ErrorTypeExtraction   ErrorType = "extraction"
	ErrorTypeSchema       ErrorType = "schema"
	ErrorTypeParse        ErrorType = "parse"
	ErrorTypeJoin         ErrorType = "join"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeValidation   ErrorType = "validation"
)

// OperationError is the error returned by a failed pipeline run or by an
// invalid stage descriptor.
type OperationError struct {
	Type    ErrorType `json:"type"`
	Step    string    `json:"step,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Step, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError creates an error for a stage that cannot be built.
func NewValidationError(step, message string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeValidation,
		Step:    step,
		Message: message,
	}
}

// NewCancellationError creates a new cancellation error
func NewCancellationError(step string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeCancellation,
		Step:    step,
		Message: "operation was cancelled",
		Cause:   cause,
	}
}

// WrapError classifies a stage failure. Errors that already are
// OperationErrors, such as failures of a nested source pipeline, are returned
// unchanged.
func WrapError(err error, step string) *OperationError {
	if err == nil {
		return nil
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr
	}

	out := &OperationError{
		Type:    classify(err, step),
		Step:    step,
		Message: "stage failed",
		Cause:   err,
	}
	if out.Type == ErrorTypeCancellation {
		out.Message = "operation was cancelled"
	}
	return out
}

func classify(err error, step string) ErrorType {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeCancellation
	case step == OpExtract, errors.Is(err, dataprocessing.ErrExtract):
		return ErrorTypeExtraction
	case errors.Is(err, dataprocessing.ErrJoin):
		return ErrorTypeJoin
	case errors.Is(err, dataprocessing.ErrMissingColumn):
		return ErrorTypeSchema
	case errors.Is(err, dataprocessing.ErrParse):
		return ErrorTypeParse
	}
	return ErrorTypeExecution
}

// GetErrorType returns the type of the error, or execution for errors that
// are not OperationErrors.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ErrorTypeExecution
}
