package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"git.home.luguber.info/inful/docpipe/internal/config"
)

func TestRender_EscapesText(t *testing.T) {
	out, err := Render("a < b && <script>")
	require.NoError(t, err)
	assert.Equal(t, `<html lang="en"><pre>a &lt; b &amp;&amp; &lt;script&gt;</pre></html>`, string(out))
}

func TestRender_RoundTripsThroughParser(t *testing.T) {
	body := "line 1\nline <2>\n"
	out, err := Render(body)
	require.NoError(t, err)

	doc, err := html.Parse(strings.NewReader(string(out)))
	require.NoError(t, err)
	var text string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "pre" && n.FirstChild != nil {
			text = n.FirstChild.Data
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	assert.Equal(t, body, text)
}

func TestVersionText(t *testing.T) {
	s := Set{Release: config.ReleaseInfo{RefName: "v1.2.0", RefType: "tag", DateTime: "2024-05-01T10:00:00Z"}}
	assert.Equal(t, "REFNAME:v1.2.0\nREFTYPE:tag\nDATETIME:2024-05-01T10:00:00Z", s.VersionText())

	s = Set{Release: config.ReleaseInfo{RefName: "main", RefType: "branch"}, Now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	assert.Equal(t, "REFNAME:main\nREFTYPE:branch\nDATETIME:2025-01-02T03:04:05Z", s.VersionText())
}

func TestWrite_CreatesAllArtifacts(t *testing.T) {
	project := t.TempDir()
	paths, err := Write(project, Set{
		Stdout:  "built",
		Stderr:  "warn: x",
		Release: config.ReleaseInfo{RefName: "main", RefType: "branch", DateTime: "now"},
	})
	require.NoError(t, err)
	require.Len(t, paths, 3)

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(project, "build", name))
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, `<html lang="en"><pre>built</pre></html>`, read("build.html"))
	assert.Equal(t, `<html lang="en"><pre>warn: x</pre></html>`, read("build-error.html"))
	assert.Equal(t, "<html lang=\"en\"><pre>REFNAME:main\nREFTYPE:branch\nDATETIME:now</pre></html>", read("version.html"))
}
