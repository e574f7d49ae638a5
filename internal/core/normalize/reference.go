package normalize

import (
	"strings"
	"unicode"

	"alertrecon/internal/core/canon"
)

// minTokenLength filters noise tokens out of the reference bundle
const minTokenLength = 3

// Reference builds the normalized reference bundle. nil when input is blank
func Reference(input string) *canon.ReferenceBundle {
	original := input
	s := Sanitize(input)
	if s == "" {
		return nil
	}

	cleaned := collapseWhitespace(s)

	var alnum strings.Builder
	for _, r := range cleaned {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum.WriteRune(unicode.ToUpper(r))
		}
	}

	var tokens []string
	for _, tok := range splitNonAlnum(cleaned) {
		if len(tok) >= minTokenLength {
			tokens = append(tokens, strings.ToUpper(tok))
		}
	}

	return &canon.ReferenceBundle{
		Original: original,
		Cleaned:  cleaned,
		AlphaNum: alnum.String(),
		Tokens:   tokens,
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func splitNonAlnum(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
