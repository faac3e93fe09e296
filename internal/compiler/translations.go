package compiler

import (
	"bytes"
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/locale"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// Translation is one entry of a Docusaurus current.json bundle.
type Translation struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}

// TranslationKey is the bundle key for a sidebar category.
func TranslationKey(sidebar, dirName string) string {
	return "sidebar." + sidebar + ".category." + dirName
}

// collectLocales registers the labels of srcRoot/rel/_locales.yml, if present.
// A malformed file is logged and ignored.
func (c *Compiler) collectLocales(st *scanState, rel string) {
	path := filepath.Join(st.srcRoot, rel, localesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("Cannot read locale labels", logfields.Path(path), logfields.Error(err))
		}
		return
	}

	var labels map[string]string
	if err := yaml.Unmarshal(data, &labels); err != nil {
		c.logger.Warn("Ignoring malformed locale labels", logfields.Path(path), logfields.Error(err))
		return
	}

	dirName := filepath.Base(rel)
	entry := Translation{Description: "Sidebar title for directory " + filepath.ToSlash(rel)}
	for _, code := range slices.Sorted(maps.Keys(labels)) {
		label := labels[code]
		loc, ok := locale.Normalize(code)
		if !ok {
			c.logger.Warn("Ignoring unknown locale in labels", logfields.Path(path), logfields.Locale(code))
			continue
		}
		entry.Message = label
		for _, sidebar := range c.compile.Sidebars {
			st.result.addTranslation(loc, TranslationKey(sidebar, dirName), entry)
		}
	}
}

// writeTranslations writes one current.json per locale. Keys are sorted and
// output is indented with four spaces, without HTML escaping.
func (c *Compiler) writeTranslations(res *Result) error {
	for _, loc := range res.Locales() {
		target := filepath.Join(c.projectDir, i18nDir, loc, pluginDir, translationFile)
		data, err := encodeJSON(res.Translations[loc])
		if err != nil {
			return errors.WrapError(err, errors.CategoryInternal, "failed to encode translations").
				WithContext("locale", loc).Build()
		}
		if err := writeFile(target, data); err != nil {
			return err
		}
		c.logger.Info("Wrote translations", logfields.Locale(loc), logfields.Path(target), logfields.Count(len(res.Translations[loc])))
	}
	return nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create directory").
			WithContext("path", filepath.Dir(path)).Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write file").
			WithContext("path", path).Build()
	}
	return nil
}

