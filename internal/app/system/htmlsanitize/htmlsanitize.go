// Package htmlsanitize cleans user-supplied text before it is stored.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText strips all markup from s, collapses whitespace, and caps the
// result at max runes (max <= 0 means no cap). Entities escaped by the
// policy are decoded again so "R&D" stays "R&D".
func PlainText(s string, max int) string {
	out := html.UnescapeString(strict.Sanitize(s))
	out = strings.Join(strings.Fields(out), " ")
	if max > 0 {
		if r := []rune(out); len(r) > max {
			out = strings.TrimSpace(string(r[:max]))
		}
	}
	return out
}
