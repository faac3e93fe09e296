package sidebar

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/runner"
)

const generated = `import type { SidebarsConfig } from "@docusaurus/plugin-content-docs";

const sidebar: SidebarsConfig = {
  apisidebar: [
    {
      type: "doc",
      id: "databox_api/databox-api",
    },
    {
      type: "category",
      label: "Asset",
      items: [
        {
          type: "doc",
          id: 'databox_api/get-asset',
          label: "Get asset",
          className: "api-method get",
        },
      ],
    },
  ],
};

export default sidebar.apisidebar;
`

const patched = `import type { SidebarsConfig } from "@docusaurus/plugin-content-docs";

const sidebar: SidebarsConfig = {
  apisidebar: [
    {
      type: "doc",
      id:"databox_api/databox-api", key:"databox_databox_api/databox-api",
    },
    {
      type: "category", label:"Asset", key:"databox_Asset",
      items: [
        {
          type: "doc",
          id:'databox_api/get-asset', key:'databox_databox_api/get-asset',
          label: "Get asset",
          className: "api-method get",
        },
      ],
    },
  ],
};

export default sidebar.apisidebar;
`

func TestPatch(t *testing.T) {
	out, n := Patch([]byte(generated), "databox")
	assert.Equal(t, 3, n)
	if diff := cmp.Diff(patched, string(out)); diff != "" {
		t.Errorf("patched sidebar mismatch (-want +got):\n%s", diff)
	}
}

func TestPatch_EscapedQuotesAndWordPrefix(t *testing.T) {
	src := `{type: "category", label: "Say \"hi\"", docId: "skip", id: "x"}`
	out, n := Patch([]byte(src), "app")
	assert.Equal(t, 2, n)
	assert.Equal(t,
		`{type: "category", label:"Say \"hi\"", key:"app_Say \"hi\"", docId: "skip", id:"x", key:"app_x"}`,
		string(out))
}

func TestPatch_NothingToKey(t *testing.T) {
	out, n := Patch([]byte("export default [];\n"), "expose")
	assert.Zero(t, n)
	assert.Equal(t, "export default [];\n", string(out))
}

type fakeRunner struct {
	calls []runner.Command
	write func(cmd runner.Command) error
}

func (f *fakeRunner) Run(_ context.Context, cmd runner.Command) (*runner.Output, error) {
	f.calls = append(f.calls, cmd)
	if f.write != nil {
		if err := f.write(cmd); err != nil {
			return &runner.Output{ExitCode: 1}, err
		}
	}
	return &runner.Output{}, nil
}

func newGenerator(t *testing.T, r CommandRunner) *Generator {
	t.Helper()
	return &Generator{
		ProjectDir:     t.TempDir(),
		PackageManager: "pnpm",
		Runner:         r,
		Logger:         slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
}

func TestGenerate_RunsGeneratorThenPatches(t *testing.T) {
	fake := &fakeRunner{}
	g := newGenerator(t, fake)
	fake.write = func(cmd runner.Command) error {
		dir := g.APIDir("databox")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		return os.WriteFile(filepath.Join(dir, "sidebar.ts"), []byte(generated), 0o644)
	}

	require.NoError(t, g.Generate(context.Background(), "databox"))

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "pnpm", fake.calls[0].Name)
	assert.Equal(t, []string{"run", "gen-api-docs", "databox"}, fake.calls[0].Args)
	assert.Equal(t, g.ProjectDir, fake.calls[0].Dir)

	backup, err := os.ReadFile(filepath.Join(g.APIDir("databox"), "sidebar-bkp.ts"))
	require.NoError(t, err)
	assert.Equal(t, generated, string(backup))

	got, err := os.ReadFile(filepath.Join(g.APIDir("databox"), "sidebar.ts"))
	require.NoError(t, err)
	assert.Equal(t, patched, string(got))
}

func TestGenerate_CommandFailureSkipsPatch(t *testing.T) {
	boom := errors.CommandError("command exited with code 1").Build()
	fake := &fakeRunner{write: func(runner.Command) error { return boom }}
	g := newGenerator(t, fake)

	err := g.Generate(context.Background(), "expose")
	require.ErrorIs(t, err, boom)
	assert.NoDirExists(t, g.APIDir("expose"))
}

func TestPatchFile_MissingSidebar(t *testing.T) {
	g := newGenerator(t, &fakeRunner{})
	_, err := g.PatchFile("uploader")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryGenerator))
}

func TestPatchFile_AlreadyPatchedIsLeftAlone(t *testing.T) {
	g := newGenerator(t, &fakeRunner{})
	dir := g.APIDir("databox")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sidebar.ts"), []byte(patched), 0o644))

	n, err := g.PatchFile("databox")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoFileExists(t, filepath.Join(dir, "sidebar-bkp.ts"))

	got, err := os.ReadFile(filepath.Join(dir, "sidebar.ts"))
	require.NoError(t, err)
	assert.Equal(t, patched, string(got))
}

func TestHasKeys(t *testing.T) {
	assert.True(t, HasKeys([]byte(patched), "databox"))
	assert.False(t, HasKeys([]byte(patched), "expose"))
	assert.False(t, HasKeys([]byte(generated), "databox"))
	assert.False(t, HasKeys([]byte(`{type: "category", label: "API key: rotation"}`), "databox"))
	assert.False(t, HasKeys([]byte(`{type: "category", label: "monkey:'databox_x'"}`), "databox"))
}

func TestPatchFile_KeyTextInLabelIsPatched(t *testing.T) {
	g := newGenerator(t, &fakeRunner{})
	dir := g.APIDir("databox")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	src := `[{type: "category", label: "API key: rotation", items: [{type: "doc", id: "databox_api/rotate"}]}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sidebar.ts"), []byte(src), 0o644))

	n, err := g.PatchFile("databox")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, filepath.Join(dir, "sidebar-bkp.ts"))

	got, err := os.ReadFile(filepath.Join(dir, "sidebar.ts"))
	require.NoError(t, err)
	assert.Equal(t,
		`[{type: "category", label:"API key: rotation", key:"databox_API key: rotation", items: [{type: "doc", id:"databox_api/rotate", key:"databox_databox_api/rotate"}]}]`,
		string(got))
}
