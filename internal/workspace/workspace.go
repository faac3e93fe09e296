package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// Manager owns one working directory: either an ephemeral timestamped
// directory (publish clones, archive downloads) or a fixed staging
// directory such as <downloadRoot>/<tag>.
type Manager struct {
	baseDir    string
	dir        string
	persistent bool
}

// NewManager creates a manager for an ephemeral directory under baseDir.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// NewPersistentManager creates a manager for the fixed directory baseDir/name.
// Cleanup leaves it in place.
func NewPersistentManager(baseDir, name string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if name == "" {
		name = "working"
	}
	return &Manager{
		baseDir:    baseDir,
		dir:        filepath.Join(baseDir, name),
		persistent: true,
	}
}

// Create makes the directory. Ephemeral directories get a fresh unique name on each call.
func (m *Manager) Create() error {
	if m.persistent {
		if err := os.MkdirAll(m.dir, 0o750); err != nil {
			return fmt.Errorf("failed to create staging directory: %w", err)
		}
		slog.Debug("Using staging directory", logfields.Path(m.dir))
		return nil
	}

	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace base: %w", err)
	}
	dir, err := os.MkdirTemp(m.baseDir, "docpipe-"+time.Now().Format("20060102-150405")+"-")
	if err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	m.dir = dir
	slog.Debug("Created workspace", logfields.Path(dir))
	return nil
}

// Reset empties a persistent directory so a re-fetch does not mix old and new files.
func (m *Manager) Reset() error {
	if !m.persistent {
		return fmt.Errorf("reset is only supported for persistent workspaces")
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to reset %s: %w", m.dir, err)
	}
	return m.Create()
}

// GetPath returns the managed directory, empty before Create for ephemeral managers.
func (m *Manager) GetPath() string {
	return m.dir
}

// Cleanup removes an ephemeral directory; persistent ones are kept.
func (m *Manager) Cleanup() error {
	if m.dir == "" {
		return nil
	}
	if m.persistent {
		slog.Debug("Keeping staging directory", logfields.Path(m.dir))
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Debug("Cleaned up workspace", logfields.Path(m.dir))
	m.dir = ""
	return nil
}

// CreateSubdir creates name inside the managed directory.
func (m *Manager) CreateSubdir(name string) (string, error) {
	if m.dir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	subdir := filepath.Join(m.dir, name)
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}
	return subdir, nil
}
