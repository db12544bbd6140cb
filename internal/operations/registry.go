package operations

import (
	"fmt"
	"sync"
)

// StageBuilder appends the stage described by d to p.
type StageBuilder func(b *Builder, p Pipeline, d StageDescriptor) (Pipeline, error)

// Registry maps operation names to stage builders
type Registry struct {
	mu       sync.RWMutex
	builders map[string]StageBuilder
	order    []string // Maintains registration order
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]StageBuilder),
		order:    make([]string, 0),
	}
}

// DefaultRegistry returns a registry holding every built-in operation.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, op := range []struct {
		id string
		fn StageBuilder
	}{
		{OpExtract, buildExtract},
		{OpRenameColumns, buildRenameColumns},
		{OpSortValues, buildSortValues},
		{OpFilterColumn, buildFilterColumn},
		{OpFilterColumnAndInterpolate, buildFilterColumnAndInterpolate},
		{OpInterpolateOutliers, buildInterpolateOutliers},
		{OpCorrectDates, buildCorrectDates},
		{OpMergeColumns, buildMergeColumns},
		{OpParseDatetimeColumn, buildParseDatetimeColumn},
		{OpAddColumn, buildAddColumn},
		{OpConcatData, buildConcatData},
		{OpAveragePerTimestamp, buildAveragePerTimestamp},
		{OpAveragePerDayHour, buildAveragePerDayHour},
		{OpRemoveValuesNotIn, buildRemoveValuesNotIn},
	} {
		// Built-in ids are distinct, Register cannot fail here.
		_ = r.Register(op.id, op.fn)
	}
	return r
}

// Register adds a builder to the registry
func (r *Registry) Register(id string, fn StageBuilder) error {
	if fn == nil {
		return fmt.Errorf("cannot register nil builder")
	}
	if id == "" {
		return fmt.Errorf("operation name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[id]; exists {
		return fmt.Errorf("operation %s already registered", id)
	}

	r.builders[id] = fn
	r.order = append(r.order, id)
	return nil
}

// Get retrieves a builder by operation name
func (r *Registry) Get(id string) (StageBuilder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, exists := r.builders[id]
	if !exists {
		return nil, NewValidationError(id, "unknown operation")
	}

	return fn, nil
}

// Has checks if an operation is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.builders[id]
	return exists
}

// ListIDs returns all registered operation names in registration order
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Count returns the number of registered operations
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.builders)
}
