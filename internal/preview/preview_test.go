package preview

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/compiler"
	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newCompiler(project string) *compiler.Compiler {
	cfg := config.Default()
	cfg.Paths.ProjectDir = project
	return compiler.New(cfg.Paths, cfg.Compile, config.ReleaseInfo{},
		compiler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func quiet() Option { return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))) }

func TestResolveDocsDir(t *testing.T) {
	_, err := ResolveDocsDir("")
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	_, err = ResolveDocsDir(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))

	abs, err := ResolveDocsDir(t.TempDir())
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))
}

func TestShouldIgnoreEvent(t *testing.T) {
	assert.True(t, shouldIgnoreEvent("/tmp/.hidden.md"))
	assert.True(t, shouldIgnoreEvent("/tmp/#foo#"))
	assert.True(t, shouldIgnoreEvent("/tmp/foo.swp"))
	assert.True(t, shouldIgnoreEvent("/tmp/intro.md~"))
	assert.True(t, shouldIgnoreEvent("/tmp/.DS_Store"))
	assert.False(t, shouldIgnoreEvent("/tmp/visible.md"))
}

func TestIgnoredSkipsMergedTree(t *testing.T) {
	docs := t.TempDir()
	p, err := New(docs, "main", newCompiler(t.TempDir()), quiet())
	require.NoError(t, err)

	assert.True(t, p.ignored(filepath.Join(docs, "_merged", "doc", "intro.md")))
	assert.False(t, p.ignored(filepath.Join(docs, "doc", "intro.md")))
}

func TestBuild_PlainDirectory(t *testing.T) {
	docs, project := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(docs, "intro.md"), "# Intro\n")
	writeFile(t, filepath.Join(docs, "guide", "setup.fr.md"), "# Installation\n")

	p, err := New(docs, "main", newCompiler(project), quiet())
	require.NoError(t, err)
	require.False(t, Staged(docs))

	res, err := p.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", res.Tag)
	assert.FileExists(t, filepath.Join(project, "docs", "intro.md"))
	assert.FileExists(t, filepath.Join(project, "i18n", "fr", "docusaurus-plugin-content-docs", "current", "guide", "setup.md"))
}

func TestBuild_StagedDirectoryIsMerged(t *testing.T) {
	docs, project := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(docs, "doc", "intro.md"), "# Intro\n")
	writeFile(t, filepath.Join(docs, "_generated", "expose", "doc", "api.md"), "# API\n")

	p, err := New(docs, "main", newCompiler(project), quiet())
	require.NoError(t, err)
	require.True(t, Staged(docs))

	_, err = p.Build(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(project, "docs", "intro.md"))
	assert.FileExists(t, filepath.Join(project, "docs", "_expose", "api.md"))
	assert.NoDirExists(t, filepath.Join(docs, "_merged"))
}

func TestRun_RecompilesOnChange(t *testing.T) {
	docs, project := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(docs, "intro.md"), "# Intro\n")

	builds := make(chan error, 8)
	p, err := New(docs, "main", newCompiler(project), quiet(),
		WithDebounce(20*time.Millisecond),
		OnBuild(func(_ *compiler.Result, err error) { builds <- err }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-builds:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("initial compile did not run")
	}

	// The watcher is registered after the initial compile; keep writing until a rebuild lands.
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
rebuilt:
	for {
		select {
		case err := <-builds:
			require.NoError(t, err)
			if _, statErr := os.Stat(filepath.Join(project, "docs", "sub", "new.md")); statErr == nil {
				break rebuilt
			}
		case <-tick.C:
			writeFile(t, filepath.Join(docs, "sub", "new.md"), "# New\n")
		case <-deadline:
			t.Fatal("no recompile after change")
		}
	}
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	req, trigger, stop := newDebouncer(30 * time.Millisecond)
	defer stop()
	for range 5 {
		trigger()
	}
	select {
	case <-req:
	case <-time.After(2 * time.Second):
		t.Fatal("no signal after quiet period")
	}
	select {
	case <-req:
		t.Fatal("burst produced more than one signal")
	case <-time.After(100 * time.Millisecond):
	}
}
