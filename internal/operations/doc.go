// Package operations builds and runs ETL pipelines over sensor data.
//
// A Pipeline is an immutable list of stages. Every builder method returns a
// new Pipeline, so a partially built pipeline can be shared between branches:
//
//	base := operations.NewPipeline(extractor, runner).
//		Extract("seabed.csv").
//		SortValues(domain.ColumnTimeStamp)
//	readings, err := operations.Load[*domain.SeabedReadings](ctx, base, dataprocessing.SeabedLoader{})
//
// Core Components:
//
// Stage: a single transformation of a dataprocessing.Frame. Stages never mutate
// their input.
//
// Runner: executes a stage list sequentially from an initial frame. The first
// failing stage aborts the run; there are no retries and no partial results.
// Every run and stage gets a span, and stage durations, rows and failures are
// recorded on the pipeline metrics when a meter is configured.
//
// Registry and Builder: map the operation names of YAML stage descriptors to
// builder methods, so pipelines can be declared in job files:
//
//	extractor:
//	  kind: csv
//	  dates: {columns: [TimeStamp]}
//	stages:
//	  - op: extract
//	    paths: ["seabed/*.csv"]
//	  - op: filter_column
//	    column: Salinity_PSU
//	    comparator: ">"
//	    value: 30
//
// Errors: failures are returned as *OperationError, typed extraction, schema,
// parse, join, execution or cancellation from the dataprocessing sentinel
// errors. Descriptors that cannot be built fail with a validation error.
package operations
