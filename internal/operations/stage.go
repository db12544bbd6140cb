package operations

import (
	"context"
	"sync"
	"time"

	"oceancli/internal/dataprocessing"
)

// Stage is a single step of a pipeline run.
type Stage interface {
	// ID returns the operation name, e.g. "filter_column".
	ID() string

	// Name returns a human-readable description including the parameters.
	Name() string

	// Execute transforms the current frame into the next one. Stages never
	// mutate their input.
	Execute(ctx context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error)
}

// StepStatus represents the current status of a Stage run
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// StepState represents the runtime state of a Stage
type StepState struct {
	mu        sync.RWMutex
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    StepStatus `json:"status"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Rows      int        `json:"rows"`
	Error     error      `json:"-"`
}

// NewStepState creates a new Stage state with default values
func NewStepState(id, name string) *StepState {
	return &StepState{
		ID:     id,
		Name:   name,
		Status: StepStatusPending,
	}
}

// Start marks the Stage as active and sets the start time
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
}

// Complete marks the Stage as completed with the number of rows it produced
func (s *StepState) Complete(rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusCompleted
	s.Rows = rows
}

// Fail marks the Stage as failed with the given error
func (s *StepState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusFailed
	s.Error = err
}

// Duration returns the duration of the Stage execution
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// BaseStage provides the identity of a Stage implementation
type BaseStage struct {
	id   string
	name string
}

// NewBaseStage creates a new base Stage
func NewBaseStage(id, name string) BaseStage {
	return BaseStage{id: id, name: name}
}

// ID returns the Stage ID
func (b *BaseStage) ID() string {
	if b == nil {
		return ""
	}
	return b.id
}

// Name returns the Stage name
func (b *BaseStage) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

type frameFunc func(ctx context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error)

// funcStage adapts a transformation function to Stage.
type funcStage struct {
	BaseStage
	fn frameFunc
}

func newStage(id, name string, fn frameFunc) *funcStage {
	return &funcStage{BaseStage: NewBaseStage(id, name), fn: fn}
}

func (s *funcStage) Execute(ctx context.Context, f *dataprocessing.Frame) (*dataprocessing.Frame, error) {
	return s.fn(ctx, f)
}
