package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"oceancli/internal/app"
	"oceancli/internal/config"
	apperrors "oceancli/internal/errors"
	"oceancli/pkg/contracts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		slog.Error("processing failed", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(apperrors.ExitCode(err))
}

// run processes the job named on the command line and writes the run report
// as JSON to stdout.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("processor", flag.ContinueOnError)
	configPath := fs.String("config", "", "configuration file (defaults and OCEAN_* variables otherwise)")
	jobPath := fs.String("job", "", "job file describing the missions to process")
	showVersion := fs.Bool("version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return apperrors.NewConfigError("invalid arguments", err)
	}

	if *showVersion {
		fmt.Fprintf(stdout, "processor %s\n", contracts.GetVersionInfo())
		return nil
	}
	if *jobPath == "" {
		return apperrors.NewConfigError("-job is required", nil)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return apperrors.NewConfigError("failed to load configuration", err)
	}

	application, err := app.NewApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Stop(context.Background()); err != nil {
			application.Logger.Warn("application_stop_failed", slog.String("error", err.Error()))
		}
	}()

	report, err := application.Run(ctx, *jobPath)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
