// Package artifacts writes the HTML files left next to the built site:
// captured build output, captured build errors and the release identity.
package artifacts

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

const (
	BuildDir      = "build"
	BuildFile     = "build.html"
	BuildErrFile  = "build-error.html"
	VersionFile   = "version.html"
	defaultLocale = "en"
)

// Set is the content of one artifact run.
type Set struct {
	Stdout  string
	Stderr  string
	Release config.ReleaseInfo
	// Now stamps version.html when Release.DateTime is empty.
	Now time.Time
}

// VersionText is the body of version.html.
func (s Set) VersionText() string {
	dt := s.Release.DateTime
	if dt == "" {
		now := s.Now
		if now.IsZero() {
			now = time.Now()
		}
		dt = now.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("REFNAME:%s\nREFTYPE:%s\nDATETIME:%s", s.Release.RefName, s.Release.RefType, dt)
}

// Write renders all three artifacts into <projectDir>/build, creating it if needed.
// It returns the written paths.
func Write(projectDir string, s Set) ([]string, error) {
	dir := filepath.Join(projectDir, BuildDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create build directory").
			WithContext("path", dir).Build()
	}

	files := []struct {
		name string
		body string
	}{
		{BuildFile, s.Stdout},
		{BuildErrFile, s.Stderr},
		{VersionFile, s.VersionText()},
	}
	written := make([]string, 0, len(files))
	for _, f := range files {
		data, err := Render(f.body)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, errors.WrapError(err, errors.CategoryFileSystem, "failed to write artifact").
				WithContext("path", path).Build()
		}
		written = append(written, path)
	}
	return written, nil
}

// Render wraps text in <html lang="en"><pre>…</pre></html> with HTML escaping.
func Render(text string) ([]byte, error) {
	root := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Html,
		Data:     "html",
		Attr:     []html.Attribute{{Key: "lang", Val: defaultLocale}},
	}
	pre := &html.Node{Type: html.ElementNode, DataAtom: atom.Pre, Data: "pre"}
	pre.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	root.AppendChild(pre)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to render artifact").Build()
	}
	return buf.Bytes(), nil
}
