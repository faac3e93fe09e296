// Package preview compiles a local documentation directory into the
// generator project as its current version and recompiles on every change.
package preview

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docpipe/internal/compiler"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/fsutil"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/merge"
)

// DefaultDebounce is how long the tree must stay quiet before a recompile.
const DefaultDebounce = 300 * time.Millisecond

// Compiler writes one version into the project.
type Compiler interface {
	Compile(ctx context.Context, srcDir, tag string) (*compiler.Result, error)
}

// Previewer watches one docs directory.
type Previewer struct {
	docsDir  string
	tag      string
	compiler Compiler
	merger   *merge.Merger
	logger   *slog.Logger
	debounce time.Duration

	// built is called after every compile; tests use it to observe rebuilds.
	built func(*compiler.Result, error)
}

// Option customizes a Previewer.
type Option func(*Previewer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(p *Previewer) { p.logger = l } }

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option { return func(p *Previewer) { p.debounce = d } }

// OnBuild registers fn to run after each compile.
func OnBuild(fn func(*compiler.Result, error)) Option { return func(p *Previewer) { p.built = fn } }

// New resolves docsDir and prepares a previewer compiling it as tag.
func New(docsDir, tag string, c Compiler, opts ...Option) (*Previewer, error) {
	abs, err := ResolveDocsDir(docsDir)
	if err != nil {
		return nil, err
	}
	p := &Previewer{
		docsDir:  abs,
		tag:      tag,
		compiler: c,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
		built:    func(*compiler.Result, error) {},
	}
	for _, o := range opts {
		o(p)
	}
	p.merger = merge.New(p.logger)
	return p, nil
}

// ResolveDocsDir returns the absolute path of dir, which must be a directory.
func ResolveDocsDir(dir string) (string, error) {
	if dir == "" {
		return "", errors.ValidationError("preview requires a docs directory").Build()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "resolve docs dir").Build()
	}
	if !fsutil.IsDir(abs) {
		return "", errors.NotFoundError("docs dir not found or not a directory").
			WithContext("dir", abs).UserAction().Build()
	}
	return abs, nil
}

// Staged reports whether dir uses the staged release layout and needs merging first.
func Staged(dir string) bool {
	for _, name := range []string{merge.SrcDir, merge.DocDir, merge.GeneratedDir, merge.LegacyDir} {
		if fsutil.IsDir(filepath.Join(dir, name)) {
			return true
		}
	}
	return false
}

// Build compiles the docs directory once.
func (p *Previewer) Build(ctx context.Context) (*compiler.Result, error) {
	src := p.docsDir
	if Staged(p.docsDir) {
		merged, err := p.merger.Merge(ctx, p.docsDir)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := p.merger.Cleanup(p.docsDir); err != nil {
				p.logger.Warn("Failed to remove merged tree", logfields.Error(err))
			}
		}()
		src = merged.Root
	}
	return p.compiler.Compile(ctx, src, p.tag)
}

// Run compiles once, then recompiles after each burst of changes until ctx is done.
// A failed compile is logged and the watch continues.
func (p *Previewer) Run(ctx context.Context) error {
	p.rebuild(ctx, "initial")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "failed to create file watcher").Build()
	}
	defer func() { _ = watcher.Close() }()
	p.addDirsRecursive(watcher, p.docsDir)
	p.logger.Info("Watching for changes", logfields.Dir(p.docsDir), logfields.Tag(p.tag))

	rebuildReq, trigger, stop := newDebouncer(p.debounce)
	defer stop()

	done := make(chan struct{})
	defer close(done)
	go p.watch(watcher, trigger, done)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Preview stopped")
			return nil
		case <-rebuildReq:
			p.rebuild(ctx, "change")
		}
	}
}

func (p *Previewer) rebuild(ctx context.Context, reason string) {
	start := time.Now()
	res, err := p.Build(ctx)
	if err != nil {
		p.logger.Warn("Preview compile failed", slog.String("reason", reason), logfields.Error(err))
	} else {
		p.logger.Info("Preview compiled", slog.String("reason", reason),
			logfields.Count(res.FileCount()), logfields.Duration(time.Since(start)))
	}
	p.built(res, err)
}

// watch forwards relevant events to trigger until done is closed.
func (p *Previewer) watch(w *fsnotify.Watcher, trigger func(), done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if p.ignored(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) && fsutil.IsDir(ev.Name) {
				p.addDirsRecursive(w, ev.Name)
			}
			p.logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			trigger()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			p.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (p *Previewer) addDirsRecursive(w *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && p.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			p.logger.Warn("Watch add failed", logfields.Dir(path), logfields.Error(err))
		}
		return nil
	})
}

// ignored filters the merge scratch tree, hidden entries and editor temp files.
func (p *Previewer) ignored(path string) bool {
	if rel, err := filepath.Rel(p.docsDir, path); err == nil {
		first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
		if first == merge.MergedDir {
			return true
		}
	}
	return shouldIgnoreEvent(path)
}

func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db":
		return true
	}
	return false
}

// newDebouncer returns a channel receiving one signal per quiet period after
// trigger calls, the trigger itself, and a stop func cancelling a pending signal.
func newDebouncer(d time.Duration) (<-chan struct{}, func(), func()) {
	var mu sync.Mutex
	var timer *time.Timer
	req := make(chan struct{}, 1)

	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(d, func() {
			select {
			case req <- struct{}{}:
			default:
			}
		})
	}
	stop := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}
	return req, trigger, stop
}
