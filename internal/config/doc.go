// Package config provides centralized configuration management for oceancli.
// It handles loading configuration from multiple sources, validation, and provides
// a type-safe API for accessing configuration values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. The YAML configuration file passed to Load
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern OCEAN_<SECTION>_<FIELD>:
//
//	OCEAN_LOGGING_LEVEL=debug
//	OCEAN_PATHS_OUTPUT_DIR=/var/lib/oceancli
//	OCEAN_STORAGE_DECIMALS=4
//	OCEAN_STORAGE_FORMATS=csv,xlsx
//	OCEAN_STORAGE_S3_BUCKET=mission-results
//
// # Path Management
//
// Relative directories are resolved against the directory holding the
// configuration file, so a job can be run from anywhere:
//
//	paths := config.PathsFrom(cfg)
//	in := paths.Input("seabed/2023.csv")
//	out := paths.Output("seabed/describe.csv")
//
// # Validation
//
// Load validates the result with go-playground/validator. Every failing
// field is reported in a single error.
package config
