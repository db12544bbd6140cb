// Package app wires a processing run together.
//
// NewApplication initializes logging and telemetry from the configuration and
// builds the pipeline runner, the stage builder, the analyzer, the artifact
// writer and the mission service. Run checks the input and output
// directories and the job file, then processes the job. Stop writes the
// metrics textfile and shuts telemetry down.
//
//	application, err := app.NewApplication(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer application.Stop(context.Background())
//	report, err := application.Run(ctx, "jobs/canary.yaml")
package app
