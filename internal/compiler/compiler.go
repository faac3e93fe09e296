package compiler

import (
	"bytes"
	"context"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/locale"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

const (
	docsDir         = "docs"
	i18nDir         = "i18n"
	pluginDir       = "docusaurus-plugin-content-docs"
	currentDir      = "current"
	translationFile = "current.json"
	markerFile      = "version.json"
	localesFile     = "_locales.yml"
)

// Compiler writes one version's content into a generator project.
type Compiler struct {
	projectDir string
	compile    config.CompileConfig
	release    config.ReleaseInfo
	skip       map[string]bool
	now        func() time.Time
	logger     *slog.Logger
}

// Option customizes a Compiler.
type Option func(*Compiler)

// WithClock overrides the clock used for the marker timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) { c.now = now }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// New creates a compiler writing into paths.ProjectDir.
func New(paths config.Paths, compile config.CompileConfig, release config.ReleaseInfo, opts ...Option) *Compiler {
	c := &Compiler{
		projectDir: paths.ProjectDir,
		compile:    compile,
		release:    release,
		skip:       make(map[string]bool, len(compile.MarkerFiles)+1),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, name := range compile.MarkerFiles {
		c.skip[name] = true
	}
	c.skip[localesFile] = true
	for _, o := range opts {
		o(c)
	}
	return c
}

// scanState is the accumulator threaded through the recursive scan.
type scanState struct {
	srcRoot    string
	tag        string
	linkTarget []byte
	result     *Result
	// ancestors holds the resolved paths of the directories being scanned.
	ancestors map[string]bool
	// written maps each destination to the source that produced it.
	written map[string]string
}

// Compile scans srcDir and writes its content for tag. Content from a
// previous compile is removed first, so the output depends only on the input.
func (c *Compiler) Compile(ctx context.Context, srcDir, tag string) (*Result, error) {
	info, err := os.Stat(srcDir)
	if err != nil || !info.IsDir() {
		return nil, errors.NotFoundError("documentation source directory not found").
			WithCause(err).WithContext("dir", srcDir).WithContext("tag", tag).Build()
	}

	c.logger.Info("Compiling documentation", logfields.Tag(tag), logfields.Path(srcDir), logfields.Target(c.projectDir))

	if err := c.clean(); err != nil {
		return nil, err
	}

	root, err := filepath.EvalSymlinks(srcDir)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to resolve source directory").
			WithContext("dir", srcDir).Build()
	}
	st := &scanState{
		srcRoot:    srcDir,
		tag:        tag,
		linkTarget: []byte(c.compile.LinkTarget(tag)),
		result:     newResult(tag),
		ancestors:  map[string]bool{root: true},
		written:    make(map[string]string),
	}
	if err := c.scan(ctx, st, "", 0); err != nil {
		return nil, err
	}

	if err := c.writeTranslations(st.result); err != nil {
		return nil, err
	}
	marker, err := c.writeMarker(tag)
	if err != nil {
		return nil, err
	}
	st.result.MarkerPath = marker

	c.logger.Info("Compiled documentation",
		logfields.Tag(tag),
		logfields.Count(st.result.FileCount()),
		slog.Int("locales", len(st.result.Translations)),
		slog.Int("skipped_dirs", len(st.result.SkippedDirs)))
	return st.result, nil
}

// clean removes docs/ and every locale's current content tree and bundle.
func (c *Compiler) clean() error {
	targets := []string{filepath.Join(c.projectDir, docsDir)}
	entries, err := os.ReadDir(filepath.Join(c.projectDir, i18nDir))
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to list i18n directory").Build()
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		base := filepath.Join(c.projectDir, i18nDir, e.Name(), pluginDir)
		targets = append(targets, filepath.Join(base, currentDir), filepath.Join(base, translationFile))
	}
	for _, target := range targets {
		if err := os.RemoveAll(target); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to clean generated content").
				WithContext("path", target).Build()
		}
	}
	return nil
}

// scan visits srcRoot/rel. Unreadable directories are recorded and skipped.
func (c *Compiler) scan(ctx context.Context, st *scanState, rel string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(st.srcRoot, rel)
	c.logger.Debug("Scanning", logfields.Path("./"+filepath.ToSlash(rel)), slog.Int("depth", depth))

	entries, err := os.ReadDir(dir)
	if err != nil {
		c.logger.Warn("Skipping unreadable directory", logfields.Path(dir), logfields.Error(err))
		st.result.SkippedDirs = append(st.result.SkippedDirs, filepath.ToSlash(rel))
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		childRel := filepath.Join(rel, name)

		isDir, err := c.isDir(filepath.Join(dir, name), entry)
		if err != nil {
			c.logger.Warn("Skipping unreadable entry", logfields.Path(filepath.Join(dir, name)), logfields.Error(err))
			continue
		}

		if isDir {
			resolved, err := filepath.EvalSymlinks(filepath.Join(dir, name))
			if err != nil {
				c.logger.Warn("Skipping unreadable entry", logfields.Path(filepath.Join(dir, name)), logfields.Error(err))
				continue
			}
			if st.ancestors[resolved] {
				c.logger.Warn("Skipping symlinked directory that loops back", logfields.Path(filepath.Join(dir, name)))
				st.result.SkippedDirs = append(st.result.SkippedDirs, filepath.ToSlash(childRel))
				continue
			}
			c.collectLocales(st, childRel)
			st.ancestors[resolved] = true
			err = c.scan(ctx, st, childRel, depth+1)
			delete(st.ancestors, resolved)
			if err != nil {
				return err
			}
			continue
		}
		if c.skip[name] {
			continue
		}
		if err := c.copyFile(st, rel, name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) isDir(path string, entry fs.DirEntry) (bool, error) {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.IsDir(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// copyFile routes srcRoot/rel/name to its locale tree, rewriting repository links.
func (c *Compiler) copyFile(st *scanState, rel, name string) error {
	f := locale.Classify(name)
	destRel := filepath.Join(destinationDir(f.Locale, rel), f.TargetName())
	dest := filepath.Join(c.projectDir, destRel)
	src := filepath.Join(st.srcRoot, rel, name)

	data, err := os.ReadFile(src)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to read source file").
			WithContext("path", src).Build()
	}
	if c.compile.LinkMarker != "" {
		data = bytes.ReplaceAll(data, []byte(c.compile.LinkMarker), st.linkTarget)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create destination directory").
			WithContext("path", filepath.Dir(dest)).Build()
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write compiled file").
			WithContext("path", dest).Build()
	}

	srcRel := filepath.ToSlash(filepath.Join(rel, name))
	target := filepath.ToSlash(destRel)
	c.logger.Debug("Copied file", logfields.Path(srcRel), logfields.Target(target))
	if prev, ok := st.written[target]; ok {
		c.logger.Warn("Destination written twice, keeping the later source",
			logfields.Target(target), slog.String("previous", prev), logfields.Path(srcRel))
	} else {
		st.result.addFile(f.Locale, target)
	}
	st.written[target] = srcRel
	return nil
}

// destinationDir returns the project-relative directory for a locale.
func destinationDir(loc, rel string) string {
	if loc == "" {
		return filepath.Join(docsDir, rel)
	}
	return filepath.Join(i18nDir, loc, pluginDir, currentDir, rel)
}

// DestinationPath is the project-relative path a source file at rel lands on.
func DestinationPath(rel string) string {
	f := locale.Classify(filepath.Base(rel))
	dir := filepath.Dir(rel)
	if dir == "." {
		dir = ""
	}
	return filepath.ToSlash(filepath.Join(destinationDir(f.Locale, dir), f.TargetName()))
}
