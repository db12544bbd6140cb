package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"oceancli/internal/analysis"
	"oceancli/internal/config"
	apperrors "oceancli/internal/errors"
	"oceancli/internal/exporter"
	"oceancli/internal/infrastructure"
	"oceancli/internal/operations"
	"oceancli/internal/services"
	"oceancli/internal/validation"
)

// InputPattern is the file pattern counted by the startup health check.
const InputPattern = "*.csv"

// Application holds every component of a processing run, wired once from the
// configuration.
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Services      *ServiceContainer

	validator *validation.FileValidator
}

// ServiceContainer holds the pipeline and analysis components.
type ServiceContainer struct {
	Tracer    *operations.OperationTracer
	Runner    *operations.Runner
	Builder   *operations.Builder
	Analyzer  *analysis.Analyzer
	Publisher services.Publisher
	Writer    *services.ArtifactWriter
	Missions  *services.MissionService
}

// NewApplication initializes logging and telemetry and wires the services.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	paths := config.PathsFrom(cfg)
	if err := paths.EnsureDirectories(); err != nil {
		return nil, apperrors.NewStorageError("failed to create directories", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to initialize logger", err)
	}
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to initialize telemetry", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		validator:     validation.NewFileValidator(logger),
	}
	if err := a.initializeServices(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Application) initializeServices(ctx context.Context) error {
	tracer, err := operations.NewOperationTracer(a.OTelProviders)
	if err != nil {
		return apperrors.NewConfigError("failed to initialize pipeline tracing", err)
	}
	runner := operations.NewRunner(a.Logger, tracer)

	var publisher services.Publisher
	if a.Config.Storage.S3.Enabled() {
		p, err := exporter.NewS3Publisher(ctx, a.Config.Storage.S3, a.Logger)
		if err != nil {
			return apperrors.NewConfigError("failed to initialize S3 publishing", err)
		}
		publisher = p
	}

	c := &ServiceContainer{
		Tracer:    tracer,
		Runner:    runner,
		Builder:   operations.NewBuilder(nil, runner, a.Paths.InputDir, a.Logger),
		Analyzer:  analysis.NewAnalyzer(a.Logger),
		Publisher: publisher,
	}
	c.Writer = services.NewArtifactWriter(a.Config.Storage, a.Paths.OutputDir, publisher, tracer.Metrics(), a.Logger)
	c.Missions = services.NewMissionService(c.Builder, runner, c.Analyzer, c.Writer, tracer.Metrics(), a.Logger)
	a.Services = c

	a.Logger.InfoContext(ctx, "services_initialized",
		slog.Any("formats", a.Config.Storage.Formats),
		slog.Bool("s3_publishing", publisher != nil))
	return nil
}

// performStartupHealthCheck verifies the input directory, the output
// directory and the job file before any pipeline runs.
func (a *Application) performStartupHealthCheck(ctx context.Context, jobPath string) error {
	if err := a.validator.ValidateInputDirectory(a.Paths.InputDir, InputPattern); err != nil {
		return apperrors.NewConfigError("input directory check failed", err)
	}
	if err := a.validator.ValidateOutputDirectory(a.Paths.OutputDir); err != nil {
		return apperrors.NewStorageError("output directory check failed", err)
	}
	if err := a.validator.ValidateFile(jobPath); err != nil {
		return apperrors.NewNotFoundError("job file " + jobPath).WithContext("cause", err.Error())
	}
	a.Logger.InfoContext(ctx, "startup_health_check_passed")
	return nil
}

// Run processes the job file at jobPath.
func (a *Application) Run(ctx context.Context, jobPath string) (*services.Report, error) {
	ctx = infrastructure.ContextWithTraceID(ctx)
	if err := a.performStartupHealthCheck(ctx, jobPath); err != nil {
		return nil, err
	}

	job, err := services.LoadJob(jobPath)
	if err != nil {
		return nil, err
	}

	report, err := a.Services.Missions.Run(ctx, job)
	if err != nil {
		a.Logger.ErrorContext(ctx, "job_failed",
			slog.String("job", job.Name),
			slog.String("error", err.Error()))
		return report, err
	}
	return report, nil
}

// Stop writes the metrics textfile when configured, then shuts telemetry
// down and closes the log file.
func (a *Application) Stop(ctx context.Context) error {
	var errs []error
	if name := a.Config.Telemetry.MetricsFile; name != "" {
		if err := a.OTelProviders.WriteMetricsTextfile(a.Paths.Output(name)); err != nil {
			errs = append(errs, err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close log file: %w", err))
	}
	return errors.Join(errs...)
}
