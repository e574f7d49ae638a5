// Package money parses free-form amount strings into exact fixed-point
// decimals. Floats are never used for amounts anywhere in the pipeline
package money

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the fixed fraction precision applied to every canonical amount
const Scale = 2

// currency markers stripped before numeric parsing, longest first so that
// "NGN" wins over "N"
var markers = []string{
	"naira", "dollar", "pound", "euro",
	"NGN", "USD", "GBP", "EUR",
	"₦", "$", "£", "€", "N",
}

var numericToken = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)

// Parse extracts the first numeric token from input and returns it at
// scale 2. Grouping commas are stripped. ok is false when no numeric
// token exists or the token does not parse
func Parse(input string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return decimal.Zero, false
	}

	for _, m := range markers {
		if len(m) > 1 {
			// word markers are case-insensitive
			s = caseInsensitiveReplace(s, m)
		} else {
			s = strings.ReplaceAll(s, m, " ")
		}
	}

	tok := numericToken.FindString(s)
	if tok == "" {
		return decimal.Zero, false
	}
	tok = strings.ReplaceAll(tok, ",", "")

	d, err := decimal.NewFromString(tok)
	if err != nil {
		return decimal.Zero, false
	}
	return Quantize(d), true
}

// Quantize brings d to the canonical scale without losing value
// (inputs with more fraction digits are rounded half-up)
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Equal reports exact equality of two canonical amounts
func Equal(a, b decimal.Decimal) bool { return a.Equal(b) }

// WithinTolerance reports |a-b| <= ref * tolerance, with tolerance given
// as a fraction (0.01 == 1%)
func WithinTolerance(a, b, ref decimal.Decimal, tolerance decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	return diff.LessThanOrEqual(ref.Abs().Mul(tolerance))
}

func caseInsensitiveReplace(s, marker string) string {
	lower := strings.ToLower(s)
	lm := strings.ToLower(marker)
	var b strings.Builder
	for {
		i := strings.Index(lower, lm)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteByte(' ')
		s = s[i+len(marker):]
		lower = lower[i+len(lm):]
	}
}
