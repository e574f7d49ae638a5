package normalize

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// sanitizer applies NFKC so fullwidth digits, ligatures and compatibility
// forms compare equal, and drops invisible runes that mailers sometimes emit
var sanitizer = transform.Chain(
	norm.NFKC,
	runes.Remove(invisible{}),
)

// invisible is a runes.Set of zero-width and replacement characters
type invisible struct{}

func (invisible) Contains(r rune) bool {
	switch r {
	case '\ufffd', '\u200b', '\u200c', '\u200d', '\ufeff', '\u00ad':
		return true
	}
	return false
}

// Sanitize normalizes Unicode text before tokenization. Returns the
// trimmed result; input that fails to transform passes through trimmed
func Sanitize(s string) string {
	out, _, err := transform.String(sanitizer, s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(out)
}
