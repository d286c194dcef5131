// Package translate translates UI and diagnosis text through Google
// Translate with a shared cache.
package translate

import (
	"strings"
	"unicode"
)

var scripts = map[string]*unicode.RangeTable{
	"kn": unicode.Kannada,
	"hi": unicode.Devanagari,
	"mr": unicode.Devanagari,
	"ta": unicode.Tamil,
	"te": unicode.Telugu,
	"bn": unicode.Bengali,
	"gu": unicode.Gujarati,
	"ml": unicode.Malayalam,
	"pa": unicode.Gurmukhi,
	"ur": unicode.Arabic,
	"or": unicode.Oriya,
}

// InExpectedScript reports whether text contains at least one character of
// the script used by lang. English, empty text and languages without a
// known script always pass.
func InExpectedScript(text, lang string) bool {
	base := baseLanguage(lang)
	if text == "" || base == "en" {
		return true
	}
	table, ok := scripts[base]
	if !ok {
		return true
	}
	for _, r := range text {
		if unicode.Is(table, r) {
			return true
		}
	}
	return false
}

func baseLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	return lang
}
