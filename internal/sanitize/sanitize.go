// Package sanitize turns arbitrary text into safe file-name fragments.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxLen is the maximum length of a sanitized fragment.
const MaxLen = 50

var unsafeRe = regexp.MustCompile(`[^a-zA-Z0-9_ -]`)

// Filename keeps letters, digits, space, hyphen and underscore, truncates the
// result to MaxLen characters and trims surrounding whitespace.
func Filename(text string) string {
	s := unsafeRe.ReplaceAllString(text, "")
	if len(s) > MaxLen {
		s = s[:MaxLen]
	}
	return strings.TrimSpace(s)
}

// FirstLine returns the sanitized first line of text.
func FirstLine(text string) string {
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		text = text[:i]
	}
	return Filename(text)
}
