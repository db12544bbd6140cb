package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Manager creates output artifacts. Parent directories are created right
// before each write.
type Manager struct {
	logger *slog.Logger
}

// NewManager creates a new file manager instance. A nil logger uses slog.Default().
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// EnsureParent creates the parent directory of path with all its parents.
// It is idempotent.
func (m *Manager) EnsureParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// Create opens path for writing, truncating any previous content.
func (m *Manager) Create(path string) (*os.File, error) {
	if err := m.EnsureParent(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	m.logger.Debug("file_created", slog.String("path", path))
	return f, nil
}

// WriteFile writes data to path through write, closing the file afterwards.
// A failed write removes the partial file.
func (m *Manager) WriteFile(path string, write func(w io.Writer) error) error {
	f, err := m.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// FileExists checks if a file exists at the given path
func (m *Manager) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
