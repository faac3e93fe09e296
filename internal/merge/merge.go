// Package merge assembles one version's staged fragments into a single
// scan root: the base documentation first, then every application's
// fragment under its own _<app> namespace.
package merge

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/fsutil"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// Staged layout names under <downloadRoot>/<tag>/.
const (
	MergedDir    = "_merged"
	GeneratedDir = "_generated"
	LegacyDir    = "_generatedDoc"
	SrcDir       = "src"
	DocDir       = "doc"
)

// Result describes a merged tree.
type Result struct {
	// Root is the directory to compile, <tag>/_merged/doc.
	Root string
	// Base is the fragment copied first, empty when the version has none.
	Base string
	// Apps lists merged application names in merge order.
	Apps []string
	// Files counts copied files.
	Files int
}

// Merger merges staged fragments.
type Merger struct {
	logger *slog.Logger
}

// New creates a Merger. A nil logger means slog.Default().
func New(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{logger: logger}
}

// Merge rebuilds tagDir/_merged from the staged fragments.
func (m *Merger) Merge(ctx context.Context, tagDir string) (*Result, error) {
	if !fsutil.IsDir(tagDir) {
		return nil, errors.NotFoundError("staged version directory not found").WithContext("dir", tagDir).Build()
	}
	if err := m.Cleanup(tagDir); err != nil {
		return nil, err
	}

	mergedRoot := filepath.Join(tagDir, MergedDir)
	res := &Result{Root: filepath.Join(mergedRoot, DocDir)}

	// src/ is mirrored whole so src/doc becomes the root; a bare doc/ is copied as the root.
	switch {
	case fsutil.IsDir(filepath.Join(tagDir, SrcDir)):
		res.Base = filepath.Join(tagDir, SrcDir)
		if err := m.copy(res, res.Base, mergedRoot, true); err != nil {
			return nil, err
		}
	case fsutil.IsDir(filepath.Join(tagDir, DocDir)):
		res.Base = filepath.Join(tagDir, DocDir)
		if err := m.copy(res, res.Base, res.Root, true); err != nil {
			return nil, err
		}
	default:
		m.logger.Warn("No base documentation fragment", logfields.Dir(tagDir))
	}

	apps, err := discoverApps(tagDir)
	if err != nil {
		return nil, err
	}
	for _, app := range apps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := filepath.Join(res.Root, "_"+app.name)
		if err := m.copy(res, app.doc, target, true); err != nil {
			return nil, err
		}
		res.Apps = append(res.Apps, app.name)
		m.logger.Info("Merged application", logfields.App(app.name), logfields.Target(target))
	}

	legacy := filepath.Join(tagDir, LegacyDir)
	if fsutil.IsDir(legacy) {
		// Legacy archives ship generated pages separately; they never replace hand-written ones.
		if err := m.copy(res, legacy, res.Root, false); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(res.Root, 0o755); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create merge root").Build()
	}
	return res, nil
}

// Cleanup removes tagDir/_merged.
func (m *Merger) Cleanup(tagDir string) error {
	if err := os.RemoveAll(filepath.Join(tagDir, MergedDir)); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to remove merged tree").
			WithContext("dir", tagDir).Build()
	}
	return nil
}

func (m *Merger) copy(res *Result, src, dst string, overwrite bool) error {
	stats, err := fsutil.CopyDir(src, dst, fsutil.CopyOptions{Overwrite: overwrite})
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to merge fragment").
			WithContext("source", src).WithContext("target", dst).Build()
	}
	res.Files += stats.Files
	if stats.Skipped > 0 {
		m.logger.Debug("Kept existing files", logfields.Path(src), slog.Int("skipped", stats.Skipped))
	}
	for _, loop := range stats.Loops {
		m.logger.Warn("Skipping symlinked directory that loops back", logfields.Path(filepath.Join(src, loop)))
	}
	return nil
}

type appFragment struct {
	name string
	doc  string
}

// discoverApps finds <tag>/_generated/<app>/doc and <tag>/<app>/doc fragments.
// Apps are sorted by name; a _generated fragment shadows a top-level one of the same name.
func discoverApps(tagDir string) ([]appFragment, error) {
	found := map[string]string{}

	topLevel, err := os.ReadDir(tagDir)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to list staged version").
			WithContext("dir", tagDir).Build()
	}
	for _, e := range topLevel {
		if !isAppCandidate(e) {
			continue
		}
		if doc := filepath.Join(tagDir, e.Name(), DocDir); fsutil.IsDir(doc) {
			found[e.Name()] = doc
		}
	}

	generated, err := os.ReadDir(filepath.Join(tagDir, GeneratedDir))
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to list generated fragments").
			WithContext("dir", tagDir).Build()
	}
	for _, e := range generated {
		if !e.IsDir() {
			continue
		}
		if doc := filepath.Join(tagDir, GeneratedDir, e.Name(), DocDir); fsutil.IsDir(doc) {
			found[e.Name()] = doc
		}
	}

	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	slices.Sort(names)
	apps := make([]appFragment, len(names))
	for i, name := range names {
		apps[i] = appFragment{name: name, doc: found[name]}
	}
	return apps, nil
}

func isAppCandidate(e fs.DirEntry) bool {
	if !e.IsDir() {
		return false
	}
	switch name := e.Name(); {
	case name == SrcDir, name == DocDir:
		return false
	case strings.HasPrefix(name, "_"), strings.HasPrefix(name, "."):
		return false
	default:
		return true
	}
}
