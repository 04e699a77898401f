// Package normalize cleans free text entered by clients before it is stored.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Text returns raw in NFC form with invalid bytes and control characters
// removed and runs of whitespace collapsed to a single space.
//
//	"  Middlemarch\t\n" -> "Middlemarch"
//	"War  and Peace"    -> "War and Peace"
func Text(raw string) string {
	if raw == "" {
		return ""
	}

	s := norm.NFC.String(sanitizeString(raw))

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sanitizeString drops invalid UTF-8 and non-whitespace control characters.
func sanitizeString(s string) string {
	if utf8.ValidString(s) && !strings.ContainsFunc(s, isStrippedControl) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r == utf8.RuneError || isStrippedControl(r) {
			return -1
		}
		return r
	}, strings.ToValidUTF8(s, ""))
}

func isStrippedControl(r rune) bool {
	return unicode.IsControl(r) && !unicode.IsSpace(r)
}
