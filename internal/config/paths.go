package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved directories of a run.
// This is the single source of truth for input and output locations.
type Paths struct {
	BaseDir   string
	InputDir  string
	OutputDir string
	LogsDir   string
}

// ResolvePaths makes every configured directory absolute. Relative entries
// are joined to baseDir; an empty baseDir means the working directory.
func ResolvePaths(cfg PathsConfig, baseDir string) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %s: %w", baseDir, err)
	}

	p := &Paths{BaseDir: base}
	p.InputDir = p.resolve(cfg.InputDir)
	p.OutputDir = p.resolve(cfg.OutputDir)
	p.LogsDir = p.resolve(cfg.LogsDir)
	return p, nil
}

// PathsFrom returns the Paths of an already loaded configuration.
func PathsFrom(cfg *Config) *Paths {
	return &Paths{
		InputDir:  cfg.Paths.InputDir,
		OutputDir: cfg.Paths.OutputDir,
		LogsDir:   cfg.Paths.LogsDir,
	}
}

func (p *Paths) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.BaseDir, path)
}

// EnsureDirectories creates the output and logs directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.OutputDir, p.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// Input returns the path of an input file. Absolute names are kept.
func (p *Paths) Input(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.InputDir, name)
}

// Output returns the path of an output artifact. Absolute names are kept.
func (p *Paths) Output(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.OutputDir, name)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved directories for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("path_resolution",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("input", p.InputDir),
			slog.String("output", p.OutputDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Bool("input_exists", FileExists(p.InputDir)))
}
