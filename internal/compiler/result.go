package compiler

import (
	"maps"
	"slices"
)

// Result summarizes one compile.
type Result struct {
	Tag string
	// Files lists written project-relative paths per locale; "" is the default locale.
	Files map[string][]string
	// Translations holds the current.json bundle per locale.
	Translations map[string]map[string]Translation
	SkippedDirs  []string
	MarkerPath   string
}

func newResult(tag string) *Result {
	return &Result{
		Tag:          tag,
		Files:        make(map[string][]string),
		Translations: make(map[string]map[string]Translation),
	}
}

func (r *Result) addFile(loc, path string) {
	r.Files[loc] = append(r.Files[loc], path)
}

func (r *Result) addTranslation(loc, key string, t Translation) {
	bundle, ok := r.Translations[loc]
	if !ok {
		bundle = make(map[string]Translation)
		r.Translations[loc] = bundle
	}
	bundle[key] = t
}

// FileCount is the number of files written across all locales.
func (r *Result) FileCount() int {
	n := 0
	for _, files := range r.Files {
		n += len(files)
	}
	return n
}

// Locales returns the locales with translation bundles, sorted.
func (r *Result) Locales() []string {
	return slices.Sorted(maps.Keys(r.Translations))
}
