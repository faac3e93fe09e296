// Package locale classifies documentation file names by their locale suffix.
//
// A file is named basename[.locale].ext. The locale segment is optional;
// "en" and no segment both mean the default locale.
package locale

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Default is the locale whose content goes to the untranslated docs tree.
const Default = "en"

// File is a classified file name.
type File struct {
	Name   string // original file name
	Base   string // name without locale and extension
	Ext    string // extension including the dot, may be empty
	Locale string // empty for the default locale
}

// IsDefault reports whether the file belongs to the default locale.
func (f File) IsDefault() bool { return f.Locale == "" }

// TargetName is the file name used in the destination tree.
func (f File) TargetName() string { return f.Base + f.Ext }

// Classify splits name into base, locale and extension.
// Only the last dot-separated segment of the extensionless name is
// considered, and only if it is two or three letters.
func Classify(name string) File {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	f := File{Name: name, Base: stem, Ext: ext}

	idx := strings.LastIndexByte(stem, '.')
	if idx <= 0 {
		return f
	}
	code, ok := Normalize(stem[idx+1:])
	if !ok {
		return f
	}
	f.Base = stem[:idx]
	if code != Default {
		f.Locale = code
	}
	return f
}

var lower = cases.Lower(language.Und)

// Normalize validates a locale suffix. Any two or three ASCII letters are
// a locale code; it is returned lower-cased.
func Normalize(code string) (string, bool) {
	if n := len(code); n < 2 || n > 3 {
		return "", false
	}
	for i := 0; i < len(code); i++ {
		c := code[i] | 0x20
		if c < 'a' || c > 'z' {
			return "", false
		}
	}
	return lower.String(code), true
}

// Valid reports whether code can be used as a translation locale key,
// e.g. a key of a _locales.yml file.
func Valid(code string) bool {
	_, ok := Normalize(code)
	return ok
}
