package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment override, e.g. OCEAN_STORAGE_DECIMALS.
const EnvPrefix = "OCEAN"

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"eq=json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// PathsConfig contains file system paths configuration. Relative paths are
// resolved against the directory of the configuration file.
type PathsConfig struct {
	InputDir  string `yaml:"input_dir" envconfig:"INPUT_DIR" validate:"required"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// StorageConfig controls how analysis tables are written.
type StorageConfig struct {
	// Decimals is the number of places floats are written with.
	Decimals   int      `yaml:"decimals" envconfig:"DECIMALS" validate:"min=0,max=15"`
	Formats    []string `yaml:"formats" envconfig:"FORMATS" validate:"min=1,dive,oneof=csv csv.sz xlsx sqlite"`
	DateLayout string   `yaml:"date_layout" envconfig:"DATE_LAYOUT" validate:"required"`
	WriteBOM   bool     `yaml:"write_bom" envconfig:"WRITE_BOM"`
	SQLitePath string   `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	S3         S3Config `yaml:"s3" envconfig:"S3"`
}

// S3Config enables publishing stored artifacts to a bucket. An empty Bucket
// disables publishing.
type S3Config struct {
	Bucket          string `yaml:"bucket" envconfig:"BUCKET"`
	Prefix          string `yaml:"prefix" envconfig:"PREFIX"`
	Region          string `yaml:"region" envconfig:"REGION" validate:"required_with=Bucket"`
	Endpoint        string `yaml:"endpoint" envconfig:"ENDPOINT" validate:"omitempty,url"`
	UsePathStyle    bool   `yaml:"use_path_style" envconfig:"USE_PATH_STYLE"`
	AccessKeyID     string `yaml:"access_key_id" envconfig:"ACCESS_KEY_ID" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `yaml:"secret_access_key" envconfig:"SECRET_ACCESS_KEY" validate:"required_with=AccessKeyID"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled       bool    `yaml:"enabled" envconfig:"ENABLED"`
	Environment   string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	TraceFile     string  `yaml:"trace_file" envconfig:"TRACE_FILE"`
	SampleRatio   float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
	// MetricsFile receives the run metrics in Prometheus text format.
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// Enabled reports whether artifacts are published to S3.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// HasFormat reports whether tables are stored in format.
func (s StorageConfig) HasFormat(format string) bool {
	for _, f := range s.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is not empty) and OCEAN_* environment variables, in that order of
// increasing precedence. Relative paths are resolved and the result is
// validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	baseDir := ""

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		baseDir = filepath.Dir(path)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.resolvePaths(baseDir); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. Keys absent from the file keep
// their current value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// resolvePaths makes the configured directories absolute.
func (c *Config) resolvePaths(baseDir string) error {
	paths, err := ResolvePaths(c.Paths, baseDir)
	if err != nil {
		return err
	}
	c.Paths.InputDir = paths.InputDir
	c.Paths.OutputDir = paths.OutputDir
	c.Paths.LogsDir = paths.LogsDir
	if c.Storage.SQLitePath != "" {
		c.Storage.SQLitePath = paths.Output(c.Storage.SQLitePath)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, formatFieldError(fe))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if c.Storage.HasFormat(FormatSQLite) && c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path is required when the sqlite format is enabled")
	}
	return nil
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_with", "required_unless":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fmt.Sprint(fe.Value()))
	case "eq":
		return fmt.Sprintf("%s must be %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s=%s validation", field, fe.Tag(), fe.Param())
	}
}

// Storage formats.
const (
	FormatCSV       = "csv"
	FormatCSVSnappy = "csv.sz"
	FormatXLSX      = "xlsx"
	FormatSQLite    = "sqlite"
)

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/oceancli.log",
		},
		Paths: PathsConfig{
			InputDir:  "data",
			OutputDir: "output",
			LogsDir:   "logs",
		},
		Storage: StorageConfig{
			Decimals:   3,
			Formats:    []string{FormatCSV},
			DateLayout: "2006-01-02 15:04:05",
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			Environment:   "development",
			TraceExporter: "none",
			SampleRatio:   1.0,
		},
	}
}
