// Package configpatch applies a temporary textual patch to the generator
// configuration and guarantees the original bytes come back.
package configpatch

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// Patch replaces every occurrence of From with To in a file.
type Patch struct {
	Path string
	From string
	To   string
}

// Applied holds what is needed to undo a patch.
type Applied struct {
	path     string
	original []byte
	mode     os.FileMode
	changed  bool
	restored bool
}

// Changed reports whether the patch modified the file.
func (a *Applied) Changed() bool { return a.changed }

// Apply rewrites the file. When From does not occur the file is left
// untouched and a warning is logged.
func (p Patch) Apply(logger *slog.Logger) (*Applied, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := os.Stat(p.Path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryGenerator, "generator config not found").
			WithContext("path", p.Path).Build()
	}
	original, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read generator config").
			WithContext("path", p.Path).Build()
	}

	a := &Applied{path: p.Path, original: original, mode: info.Mode().Perm()}
	if p.From == "" || !bytes.Contains(original, []byte(p.From)) {
		logger.Warn("Config patch target not found, building unpatched", logfields.Path(p.Path), slog.String("from", p.From))
		return a, nil
	}

	patched := bytes.ReplaceAll(original, []byte(p.From), []byte(p.To))
	if err := os.WriteFile(p.Path, patched, a.mode); err != nil {
		// A partial write must not survive.
		_ = os.WriteFile(p.Path, original, a.mode)
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to patch generator config").
			WithContext("path", p.Path).Build()
	}
	a.changed = true
	logger.Info("Patched generator config", logfields.Path(p.Path), slog.String("from", p.From), slog.String("to", p.To))
	return a, nil
}

// Restore writes the original bytes back. It is safe to call more than once.
func (a *Applied) Restore() error {
	if a == nil || a.restored || !a.changed {
		return nil
	}
	if err := os.WriteFile(a.path, a.original, a.mode); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to restore generator config").
			WithContext("path", a.path).Build()
	}
	if err := os.Chmod(a.path, a.mode); err != nil {
		return fmt.Errorf("restore mode of %s: %w", a.path, err)
	}
	a.restored = true
	return nil
}

// With applies p, runs fn and restores the file whatever fn does,
// including panicking. A restore failure is joined to fn's error.
func With(p Patch, logger *slog.Logger, fn func() error) (err error) {
	applied, err := p.Apply(logger)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := applied.Restore(); rerr != nil {
			if logger != nil {
				logger.Error("Generator config left patched", logfields.Path(p.Path), logfields.Error(rerr))
			}
			err = joinErr(err, rerr)
		}
	}()
	return fn()
}

func joinErr(primary, secondary error) error {
	if primary == nil {
		return secondary
	}
	return fmt.Errorf("%w (additionally: %v)", primary, secondary)
}
