package compiler

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

// readTree returns every regular file under root keyed by slash path.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func newTestCompiler(project string, release config.ReleaseInfo) *Compiler {
	cfg := config.Default()
	cfg.Paths.ProjectDir = project
	clock := func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	return New(cfg.Paths, cfg.Compile, release, WithClock(clock))
}

func fixture(t *testing.T) string {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"intro.md":                   "See [code](@phrasea-repo/README.md).",
		"intro.fr.md":                "Voir [code](@phrasea-repo/README.md).",
		"intro.en.md":                "English override",
		".gitkeep":                   "",
		"_locales.yml":               "fr: Racine\n",
		"user/_locales.yml":          "en: User guide\nfr: Guide utilisateur\nxx-bad: nope\n",
		"user/start.md":              "start",
		"user/start.de.md":           "Anfang",
		"user/.gitkeep":              "",
		"user/nested/deep.md":        "deep",
		"_databox/tech/_locales.yml": "fr: \"Technique <é>\"\n",
		"_databox/tech/api.md":       "api",
	})
	return src
}

func TestCompile_RoutesFilesByLocale(t *testing.T) {
	src := fixture(t)
	project := t.TempDir()
	c := newTestCompiler(project, config.ReleaseInfo{RefName: "v3.1.0", RefType: "tag", DateTime: "2026-10-01T00:00:00Z"})

	res, err := c.Compile(context.Background(), src, "3.1.0")
	require.NoError(t, err)

	tree := readTree(t, project)
	// intro.en.md and intro.md share a destination; intro.md sorts last and wins.
	assert.Equal(t, "See [code](https://github.com/alchemy-fr/phrasea/blob/3.1.0/README.md).", tree["docs/intro.md"])
	assert.Equal(t, "Voir [code](https://github.com/alchemy-fr/phrasea/blob/3.1.0/README.md).",
		tree["i18n/fr/docusaurus-plugin-content-docs/current/intro.md"])
	assert.Equal(t, "start", tree["docs/user/start.md"])
	assert.Equal(t, "Anfang", tree["i18n/de/docusaurus-plugin-content-docs/current/user/start.md"])
	assert.Equal(t, "deep", tree["docs/user/nested/deep.md"])
	assert.Equal(t, "api", tree["docs/_databox/tech/api.md"])

	assert.NotContains(t, tree, "docs/.gitkeep")
	assert.NotContains(t, tree, "docs/_locales.yml")
	assert.NotContains(t, tree, "docs/user/_locales.yml")

	assert.Equal(t, 6, res.FileCount())
	assert.Equal(t, []string{"de", "fr"}, sortedKeys(res.Files, true))
	assert.Empty(t, res.SkippedDirs)
}

func TestCompile_RewritesLinksPerTag(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.md": "[x](@phrasea-repo/a) [y](@phrasea-repo/b) @phrasea-repo/c"})
	project := t.TempDir()
	c := newTestCompiler(project, config.ReleaseInfo{})

	_, err := c.Compile(context.Background(), src, "main")
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(project, "docs", "a.md"))
	require.NoError(t, err)
	assert.Equal(t,
		"[x](https://github.com/alchemy-fr/phrasea/blob/main/a) [y](https://github.com/alchemy-fr/phrasea/blob/main/b) @phrasea-repo/c",
		string(got))
}

func TestCompile_WritesTranslationBundles(t *testing.T) {
	src := fixture(t)
	project := t.TempDir()
	c := newTestCompiler(project, config.ReleaseInfo{})

	res, err := c.Compile(context.Background(), src, "3.1.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "fr"}, res.Locales())

	fr, err := os.ReadFile(filepath.Join(project, "i18n", "fr", "docusaurus-plugin-content-docs", "current.json"))
	require.NoError(t, err)
	want := `{
    "sidebar.techdocSidebar.category.tech": {
        "message": "Technique <é>",
        "description": "Sidebar title for directory _databox/tech"
    },
    "sidebar.techdocSidebar.category.user": {
        "message": "Guide utilisateur",
        "description": "Sidebar title for directory user"
    },
    "sidebar.userdocSidebar.category.tech": {
        "message": "Technique <é>",
        "description": "Sidebar title for directory _databox/tech"
    },
    "sidebar.userdocSidebar.category.user": {
        "message": "Guide utilisateur",
        "description": "Sidebar title for directory user"
    }
}`
	if diff := cmp.Diff(want, string(fr)); diff != "" {
		t.Fatalf("fr current.json mismatch (-want +got):\n%s", diff)
	}

	en := res.Translations["en"]
	assert.Equal(t, Translation{Message: "User guide", Description: "Sidebar title for directory user"},
		en[TranslationKey("userdocSidebar", "user")])
}

func TestCompile_WritesMarker(t *testing.T) {
	project := t.TempDir()
	c := newTestCompiler(project, config.ReleaseInfo{RefName: "main", RefType: "branch"})

	res, err := c.Compile(context.Background(), fixture(t), "main")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(project, "version.json"), res.MarkerPath)

	data, err := os.ReadFile(res.MarkerPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"refname":"main","reftype":"branch","datetime":"2026-10-15T12:00:00Z","tag":"main"}`, string(data))
}

func TestCompile_Idempotent(t *testing.T) {
	src := fixture(t)
	project := t.TempDir()

	first := newTestCompiler(project, config.ReleaseInfo{})
	_, err := first.Compile(context.Background(), src, "3.1.0")
	require.NoError(t, err)
	before := readTree(t, project)

	second := New(config.Paths{ProjectDir: project}, config.Default().Compile, config.ReleaseInfo{},
		WithClock(func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }))
	_, err = second.Compile(context.Background(), src, "3.1.0")
	require.NoError(t, err)
	after := readTree(t, project)

	delete(before, "version.json")
	delete(after, "version.json")
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("second compile changed the tree (-first +second):\n%s", diff)
	}
}

func TestCompile_RemovesStaleContent(t *testing.T) {
	project := t.TempDir()
	writeTree(t, project, map[string]string{
		"docs/old.md": "stale",
		"i18n/fr/docusaurus-plugin-content-docs/current/old.md":      "stale",
		"i18n/fr/docusaurus-plugin-content-docs/current.json":        "{}",
		"i18n/fr/docusaurus-plugin-content-docs/version-1.0/keep.md": "snapshot",
		"i18n/fr/docusaurus-theme-classic/navbar.json":               "{}",
	})
	src := t.TempDir()
	writeTree(t, src, map[string]string{"new.md": "fresh"})

	_, err := newTestCompiler(project, config.ReleaseInfo{}).Compile(context.Background(), src, "1.1.0")
	require.NoError(t, err)

	tree := readTree(t, project)
	assert.NotContains(t, tree, "docs/old.md")
	assert.NotContains(t, tree, "i18n/fr/docusaurus-plugin-content-docs/current/old.md")
	assert.NotContains(t, tree, "i18n/fr/docusaurus-plugin-content-docs/current.json")
	assert.Equal(t, "snapshot", tree["i18n/fr/docusaurus-plugin-content-docs/version-1.0/keep.md"])
	assert.Contains(t, tree, "i18n/fr/docusaurus-theme-classic/navbar.json")
	assert.Equal(t, "fresh", tree["docs/new.md"])
}

func TestCompile_SkipsUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a/x.md": "x", "b/y.md": "y"})
	locked := filepath.Join(src, "a")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	project := t.TempDir()
	res, err := newTestCompiler(project, config.ReleaseInfo{}).Compile(context.Background(), src, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.SkippedDirs)
	assert.FileExists(t, filepath.Join(project, "docs", "b", "y.md"))
}

func TestCompile_SkipsDanglingSymlink(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"ok.md": "ok"})
	require.NoError(t, os.Symlink(filepath.Join(src, "missing"), filepath.Join(src, "broken")))

	project := t.TempDir()
	res, err := newTestCompiler(project, config.ReleaseInfo{}).Compile(context.Background(), src, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, 1, res.FileCount())
}

func TestCompile_SkipsSymlinkLoop(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"ok.md": "ok", "shared/s.md": "s", "sub/b.md": "b"})
	require.NoError(t, os.Symlink(".", filepath.Join(src, "loop")))
	require.NoError(t, os.Symlink("..", filepath.Join(src, "sub", "up")))
	require.NoError(t, os.Symlink(filepath.Join("..", "shared"), filepath.Join(src, "sub", "linked")))

	project := t.TempDir()
	res, err := newTestCompiler(project, config.ReleaseInfo{}).Compile(context.Background(), src, "1.0.0")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"loop", "sub/up"}, res.SkippedDirs)
	assert.Equal(t, 4, res.FileCount())
	assert.FileExists(t, filepath.Join(project, "docs", "sub", "linked", "s.md"))
	assert.NoDirExists(t, filepath.Join(project, "docs", "loop"))
}

func TestCompile_WarnsOnSharedDestination(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"intro.en.md": "english", "intro.md": "plain", "other.md": "o"})
	project := t.TempDir()
	var logs bytes.Buffer
	cfg := config.Default()
	cfg.Paths.ProjectDir = project
	c := New(cfg.Paths, cfg.Compile, config.ReleaseInfo{}, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	res, err := c.Compile(context.Background(), src, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/intro.md", "docs/other.md"}, res.Files[""])
	assert.Equal(t, "plain", readTree(t, project)["docs/intro.md"])
	assert.Contains(t, logs.String(), "Destination written twice")
	assert.Contains(t, logs.String(), "previous=intro.en.md")
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("Destination written twice")))
}

func TestCompile_MissingSource(t *testing.T) {
	_, err := newTestCompiler(t.TempDir(), config.ReleaseInfo{}).Compile(context.Background(), filepath.Join(t.TempDir(), "nope"), "1.0.0")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestCompile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestCompiler(t.TempDir(), config.ReleaseInfo{}).Compile(ctx, fixture(t), "1.0.0")
	require.ErrorIs(t, err, context.Canceled)
}

func TestDestinationPath(t *testing.T) {
	assert.Equal(t, "i18n/fr/docusaurus-plugin-content-docs/current/intro.md", DestinationPath("intro.fr.md"))
	assert.Equal(t, "docs/intro.md", DestinationPath("intro.en.md"))
	assert.Equal(t, "docs/guide/intro.md", DestinationPath("guide/intro.md"))
}

func sortedKeys(m map[string][]string, skipDefault bool) []string {
	var out []string
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if skipDefault && k == "" {
			continue
		}
		out = append(out, k)
	}
	return out
}
