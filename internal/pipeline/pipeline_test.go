package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
	"git.home.luguber.info/inful/docpipe/internal/notify"
	"git.home.luguber.info/inful/docpipe/internal/runner"
)

const generatorConfig = `export default {
  presets: [["classic", { docs: { includeCurrentVersion: true } }]],
};
`

// fakePackageManager writes a pnpm stand-in that logs its arguments to logPath
// and imitates the generator scripts docpipe calls.
func fakePackageManager(t *testing.T, logPath string, failBuild bool) string {
	t.Helper()
	fail := ""
	if failBuild {
		fail = `echo "boom" >&2; exit 2`
	}
	script := fmt.Sprintf(`#!/bin/sh
echo "$*" >> %q
case "$1 $2" in
  "run gen-api-docs")
    mkdir -p "docs/$3_api"
    printf 'export default [{type: "category", label: "Asset", items: [{type: "doc", id: "%%s_api/get"}]}];\n' "$3" > "docs/$3_api/sidebar.ts"
    ;;
  "run docusaurus")
    mkdir -p "versioned_docs/version-$4"
    cp -R docs/. "versioned_docs/version-$4/"
    ;;
  "run build")
    grep -q "includeCurrentVersion: false" docusaurus.config.ts && echo "config patched"
    %s
    mkdir -p build
    echo "<html>site</html>" > build/index.html
    echo "build done"
    ;;
esac
`, logPath, fail)
	path := filepath.Join(t.TempDir(), "pnpm")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type fixture struct {
	cfg     *config.Config
	logPath string
}

func newFixture(t *testing.T, failBuild bool) *fixture {
	t.Helper()
	root := t.TempDir()
	project := filepath.Join(root, "project")
	downloads := filepath.Join(root, "downloads")

	writeFile(t, filepath.Join(project, "docusaurus.config.ts"), generatorConfig)
	writeFile(t, filepath.Join(project, "docs", "stale.md"), "stale")
	writeFile(t, filepath.Join(project, "versioned_docs", "version-0.9", "old.md"), "old")

	writeFile(t, filepath.Join(downloads, "v1.2.0", "doc", "intro.md"), "# 1.2 (@phrasea-repo/README.md)\n")
	writeFile(t, filepath.Join(downloads, "v1.2.0", "_generated", "databox", "doc", "api.md"), "databox api\n")
	writeFile(t, filepath.Join(downloads, "v2.0.0", "src", "doc", "intro.md"), "# 2.0.0\n")
	writeFile(t, filepath.Join(downloads, "v2.0.1", "src", "doc", "intro.md"), "# 2.0.1\n")
	writeFile(t, filepath.Join(downloads, "v2.0.1", "src", "doc", "intro.fr.md"), "# 2.0.1 fr\n")
	writeFile(t, filepath.Join(downloads, "main", "doc", "intro.md"), "# main\n")
	writeFile(t, filepath.Join(downloads, "README.txt"), "not a version")

	logPath := filepath.Join(root, "pnpm.log")
	cfg := config.Default()
	cfg.Paths = config.Paths{ProjectDir: project, DownloadDir: downloads, WorkspaceDir: filepath.Join(root, "ws")}
	cfg.Generator.PackageManager = fakePackageManager(t, logPath, failBuild)
	cfg.Generator.APIApps = []string{"databox", "expose"}
	cfg.Generator.CommandTimeout = config.Duration(30 * time.Second)
	cfg.Generator.IdleTimeout = cfg.Generator.CommandTimeout
	cfg.Generator.BuildTimeout = cfg.Generator.CommandTimeout
	cfg.Versions.CurrentTag = "main"
	cfg.Release = config.ReleaseInfo{RefName: "v2.0.1", RefType: "tag", DateTime: "2024-05-01T10:00:00Z"}
	return &fixture{cfg: cfg, logPath: logPath}
}

func (f *fixture) project(parts ...string) string {
	return filepath.Join(append([]string{f.cfg.Paths.ProjectDir}, parts...)...)
}

func (f *fixture) commands(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(f.logPath)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func (f *fixture) read(t *testing.T, parts ...string) string {
	t.Helper()
	data, err := os.ReadFile(f.project(parts...))
	require.NoError(t, err)
	return string(data)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type capturedConn struct{ data []byte }

func (c *capturedConn) Publish(_ string, data []byte) error {
	c.data = data
	return nil
}

func (c *capturedConn) FlushTimeout(time.Duration) error { return nil }
func (c *capturedConn) Close()                           {}

func capturingNotifier(conn *capturedConn) *notify.Notifier {
	return notify.New(config.NotifyConfig{NATSURL: "nats://test", Subject: "docpipe.builds", Timeout: config.Duration(time.Second)},
		quietLogger(), func(string, ...nats.Option) (notify.Conn, error) { return conn, nil })
}

func TestBuild_CompilesVersionsInOrder(t *testing.T) {
	f := newFixture(t, false)
	prom := metrics.NewPrometheusRecorder(nil, "")
	f.cfg.Metrics.TextFile = filepath.Join(t.TempDir(), "docpipe.prom")
	conn := &capturedConn{}

	p := New(f.cfg, WithLogger(quietLogger()), WithOutput(io.Discard), WithPrometheus(prom),
		WithNotifier(capturingNotifier(conn)), WithRunID("run-1"))
	report, err := p.Build(context.Background(), BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"run gen-api-docs databox",
		"run docusaurus docs:version 1.2",
		"run docusaurus docs:version 2.0",
		"run docusaurus docs:version main",
		"run build",
	}, f.commands(t))

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, []string{"v1.2.0", "v2.0.1", "main"}, report.Versions)
	assert.Equal(t, []string{"v2.0.0"}, report.Dropped)
	assert.Equal(t, metrics.BuildOutcomeSuccess, report.Outcome)
	for _, stage := range []StageName{StageDiscover, StageReset, StageVersions, StageSite} {
		assert.Equal(t, metrics.ResultSuccess, report.StageResults[stage], stage)
	}

	// Project reset, snapshots taken from each compiled version.
	assert.Equal(t, "[]", f.read(t, "versions.json"))
	assert.NoDirExists(t, f.project("versioned_docs", "version-0.9"))
	assert.Contains(t, f.read(t, "versioned_docs", "version-1.2", "intro.md"),
		"(https://github.com/alchemy-fr/phrasea/blob/v1.2.0/README.md)")
	assert.Equal(t, "databox api\n", f.read(t, "versioned_docs", "version-1.2", "_databox", "api.md"))
	assert.Contains(t, f.read(t, "versioned_docs", "version-1.2", "databox_api", "sidebar.ts"), `key:"databox_Asset"`)
	assert.Equal(t, "# 2.0.1\n", f.read(t, "versioned_docs", "version-2.0", "intro.md"))
	assert.Equal(t, "# main\n", f.read(t, "docs", "intro.md"))
	assert.NoFileExists(t, f.project("docs", "stale.md"))
	assert.NoDirExists(t, f.project("versioned_docs", "version-main", "databox_api"))

	// Merged trees are removed after each version.
	for _, tag := range report.Versions {
		assert.NoDirExists(t, filepath.Join(f.cfg.Paths.DownloadDir, tag, "_merged"))
	}

	// Config was patched during the build and restored after.
	assert.Equal(t, generatorConfig, f.read(t, "docusaurus.config.ts"))
	assert.Contains(t, f.read(t, "build", "build.html"), "config patched")
	assert.Contains(t, f.read(t, "build", "build.html"), "build done")
	assert.Equal(t, `<html lang="en"><pre></pre></html>`, f.read(t, "build", "build-error.html"))
	assert.Contains(t, f.read(t, "build", "version.html"), "REFNAME:v2.0.1\nREFTYPE:tag\nDATETIME:2024-05-01T10:00:00Z")
	assert.Len(t, report.Artifacts, 3)

	var ev map[string]any
	require.NoError(t, json.Unmarshal(conn.data, &ev))
	assert.Equal(t, "run-1", ev["id"])
	assert.Equal(t, "succeeded", ev["status"])
	assert.Equal(t, []any{"v1.2.0", "v2.0.1", "main"}, ev["versions"])

	textfile, err := os.ReadFile(f.cfg.Metrics.TextFile)
	require.NoError(t, err)
	assert.Contains(t, string(textfile), "docpipe_versions 3")
	assert.Contains(t, string(textfile), `docpipe_command_duration_seconds_count{command="docs:version",result="success"} 3`)
}

func TestBuild_FailedBuildRestoresConfigAndWritesArtifacts(t *testing.T) {
	f := newFixture(t, true)
	conn := &capturedConn{}

	p := New(f.cfg, WithLogger(quietLogger()), WithOutput(io.Discard), WithNotifier(capturingNotifier(conn)))
	report, err := p.Build(context.Background(), BuildOptions{Serve: true})
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageSite, se.Stage)
	assert.Equal(t, StageErrorFatal, se.Kind)
	assert.True(t, errors.HasCategory(err, errors.CategoryCommand))
	assert.Equal(t, metrics.BuildOutcomeFailed, report.Outcome)
	assert.Equal(t, metrics.ResultFatal, report.StageResults[StageSite])

	assert.Equal(t, generatorConfig, f.read(t, "docusaurus.config.ts"), "config restored byte for byte")
	assert.Equal(t, `<html lang="en"><pre>boom
</pre></html>`, f.read(t, "build", "build-error.html"))
	assert.Contains(t, f.read(t, "build", "build.html"), "config patched")

	assert.NotContains(t, f.commands(t), "run serve", "serve is skipped after a failed build")

	var ev map[string]any
	require.NoError(t, json.Unmarshal(conn.data, &ev))
	assert.Equal(t, "failed", ev["status"])
	assert.Contains(t, ev["error"], "site_build")
}

func TestBuild_Cancelled(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(f.cfg, WithLogger(quietLogger()), WithOutput(io.Discard)).Build(ctx, BuildOptions{})
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageErrorCanceled, se.Kind)
	assert.Equal(t, StageDiscover, se.Stage)
	assert.Equal(t, metrics.BuildOutcomeCanceled, report.Outcome)
	assert.NoFileExists(t, f.logPath)
}

func TestBuild_PublishRequiresRepository(t *testing.T) {
	f := newFixture(t, false)
	_, err := New(f.cfg, WithLogger(quietLogger())).Build(context.Background(), BuildOptions{Publish: true})
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
	assert.NoFileExists(t, f.logPath)
}

func TestDiscoverVersions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2.0.0", "bad-tag", "1.2.0", "1.2.3", ".hidden"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, name), 0o755))
	}
	writeFile(t, filepath.Join(dir, "3.0.0"), "a file, not a version")

	kept, dropped, err := DiscoverVersions(dir, "")
	require.NoError(t, err)
	var names []string
	for _, k := range kept {
		names = append(names, k.Name)
	}
	assert.Equal(t, []string{"bad-tag", "1.2.3", "2.0.0"}, names)
	require.Len(t, dropped, 1)
	assert.Equal(t, "1.2.0", dropped[0].Name)

	_, _, err = DiscoverVersions(filepath.Join(dir, "missing"), "")
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestDiscoverStage_NoVersions(t *testing.T) {
	f := newFixture(t, false)
	f.cfg.Paths.DownloadDir = t.TempDir()

	_, err := New(f.cfg, WithLogger(quietLogger())).Build(context.Background(), BuildOptions{})
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestCommandLabel(t *testing.T) {
	cases := map[string]runner.Command{
		"build":        runner.New("pnpm", "run", "build"),
		"docs:version": runner.New("pnpm", "run", "docusaurus", "docs:version", "1.2"),
		"gen-api-docs": runner.New("pnpm", "run", "gen-api-docs", "databox"),
		"pnpm":         runner.New("/usr/bin/pnpm"),
	}
	for want, cmd := range cases {
		assert.Equal(t, want, commandLabel(cmd))
	}
}

func TestReportFinish(t *testing.T) {
	r := newReport("x")
	r.finish(&StageError{Kind: StageErrorCanceled, Stage: StageSite, Err: context.Canceled})
	assert.Equal(t, metrics.BuildOutcomeCanceled, r.Outcome)

	r = newReport("x")
	r.finish(io.ErrUnexpectedEOF)
	assert.Equal(t, metrics.BuildOutcomeFailed, r.Outcome)
	assert.GreaterOrEqual(t, r.Duration(), time.Duration(0))
}
