// Package sidebar generates per-application API docs and makes their
// generated sidebar entries unique across applications by adding key props.
package sidebar

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/fsutil"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/runner"
)

const (
	sidebarFile = "sidebar.ts"
	backupFile  = "sidebar-bkp.ts"
)

// CommandRunner runs generator commands.
type CommandRunner interface {
	Run(ctx context.Context, cmd runner.Command) (*runner.Output, error)
}

// Generator runs `<pm> run gen-api-docs <app>` and patches the result.
type Generator struct {
	ProjectDir     string
	PackageManager string
	Timeout        time.Duration
	Runner         CommandRunner
	Logger         *slog.Logger
}

// APIDir returns docs/<app>_api inside the project.
func (g *Generator) APIDir(app string) string {
	return filepath.Join(g.ProjectDir, "docs", app+"_api")
}

// Generate produces and patches the API docs of one application.
func (g *Generator) Generate(ctx context.Context, app string) error {
	cmd := runner.New(g.PackageManager, "run", "gen-api-docs", app).
		In(g.ProjectDir).
		WithTimeout(g.Timeout).
		WithIdleTimeout(g.Timeout)
	if _, err := g.Runner.Run(ctx, cmd); err != nil {
		return err
	}
	_, err := g.PatchFile(app)
	return err
}

// PatchFile backs up docs/<app>_api/sidebar.ts to sidebar-bkp.ts and adds key props.
// It returns the number of keys added.
func (g *Generator) PatchFile(app string) (int, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dir := g.APIDir(app)
	src := filepath.Join(dir, sidebarFile)

	data, err := os.ReadFile(src)
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryGenerator, "generated API sidebar not found").
			WithContext("app", app).WithContext("path", src).Build()
	}
	if HasKeys(data, app) {
		logger.Warn("Sidebar already carries keys, leaving it unchanged", logfields.App(app), logfields.Path(src))
		return 0, nil
	}
	if err := fsutil.CopyFile(src, filepath.Join(dir, backupFile)); err != nil {
		return 0, errors.WrapError(err, errors.CategoryFileSystem, "failed to back up sidebar").
			WithContext("path", src).Build()
	}

	patched, n := Patch(data, app)
	info, err := os.Stat(src)
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryFileSystem, "failed to stat sidebar").Build()
	}
	if err := os.WriteFile(src, patched, info.Mode().Perm()); err != nil {
		return 0, errors.WrapError(err, errors.CategoryFileSystem, "failed to write patched sidebar").
			WithContext("path", src).Build()
	}
	logger.Info("Added sidebar keys", logfields.App(app), logfields.Path(src), logfields.Count(n))
	return n, nil
}

// A quoted string literal body, with either quote style and backslash escapes.
const (
	dq = `"((?:\\.|[^"\\])*)"`
	sq = `'((?:\\.|[^'\\])*)'`
)

var (
	categoryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`type:\s*"category"\s*,\s*label:\s*` + dq),
		regexp.MustCompile(`type:\s*"category"\s*,\s*label:\s*` + sq),
	}
	idPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(^|\W)id:\s*` + dq),
		regexp.MustCompile(`(^|\W)id:\s*` + sq),
	}
)

// Patch adds key:"<app>_<label>" to every category entry and key:"<app>_<id>"
// to every id, keeping the original quote style. Category labels are keyed
// first so that both rewrites see the generator's original text.
func Patch(src []byte, app string) ([]byte, int) {
	out := string(src)
	count := 0

	for i, re := range categoryPatterns {
		q := quoteOf(i)
		out = re.ReplaceAllStringFunc(out, func(m string) string {
			label := re.FindStringSubmatch(m)[1]
			count++
			return fmt.Sprintf(`type: "category", label:%s%s%s, key:%s%s_%s%s`, q, label, q, q, app, label, q)
		})
	}
	for i, re := range idPatterns {
		q := quoteOf(i)
		out = re.ReplaceAllStringFunc(out, func(m string) string {
			sub := re.FindStringSubmatch(m)
			count++
			return fmt.Sprintf(`%sid:%s%s%s, key:%s%s_%s%s`, sub[1], q, sub[2], q, q, app, sub[2], q)
		})
	}
	return []byte(out), count
}

func quoteOf(i int) string {
	if i == 0 {
		return `"`
	}
	return `'`
}

// HasKeys reports whether src already carries key props added for app,
// e.g. when patched twice. Text such as "key:" inside a label does not count.
func HasKeys(src []byte, app string) bool {
	re := regexp.MustCompile(`(^|[\s,{])key:\s*["']` + regexp.QuoteMeta(app) + `_`)
	return re.Match(src)
}
