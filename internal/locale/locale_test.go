package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want File
	}{
		{"intro.fr.md", File{Name: "intro.fr.md", Base: "intro", Ext: ".md", Locale: "fr"}},
		{"intro.en.md", File{Name: "intro.en.md", Base: "intro", Ext: ".md"}},
		{"intro.md", File{Name: "intro.md", Base: "intro", Ext: ".md"}},
		{"guide.v2.de.mdx", File{Name: "guide.v2.de.mdx", Base: "guide.v2", Ext: ".mdx", Locale: "de"}},
		{"config.v2.md", File{Name: "config.v2.md", Base: "config.v2", Ext: ".md"}},
		{"release.notes.md", File{Name: "release.notes.md", Base: "release.notes", Ext: ".md"}},
		{"logo.FR.png", File{Name: "logo.FR.png", Base: "logo", Ext: ".png", Locale: "fr"}},
		{"README", File{Name: "README", Base: "README"}},
		{"archive.zz.md", File{Name: "archive.zz.md", Base: "archive", Ext: ".md", Locale: "zz"}},
		{"intro.api.md", File{Name: "intro.api.md", Base: "intro", Ext: ".md", Locale: "api"}},
		{"intro.v12.md", File{Name: "intro.v12.md", Base: "intro.v12", Ext: ".md"}},
		{".fr.md", File{Name: ".fr.md", Base: ".fr", Ext: ".md"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.name)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Locale == "", got.IsDefault())
		})
	}
}

func TestClassify_TargetName(t *testing.T) {
	assert.Equal(t, "intro.md", Classify("intro.fr.md").TargetName())
	assert.Equal(t, "intro.md", Classify("intro.en.md").TargetName())
	assert.Equal(t, "intro.md", Classify("intro.md").TargetName())
}

func TestNormalize(t *testing.T) {
	for _, code := range []string{"fr", "de", "en", "es", "fil", "zz", "xx"} {
		got, ok := Normalize(code)
		assert.True(t, ok, code)
		assert.Equal(t, code, got)
	}
	for _, code := range []string{"", "f", "v2", "fr-ca", "notes", "é", "f1"} {
		_, ok := Normalize(code)
		assert.False(t, ok, code)
	}
	assert.True(t, Valid("IT"))
	got, _ := Normalize("PtB")
	assert.Equal(t, "ptb", got)
}
