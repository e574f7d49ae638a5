// Package normalize canonicalizes the semi-structured fields of alert emails
// and provider records: amounts, currencies, timestamps, references, bank
// identity, and the composite grouping key. Every function is pure
package normalize

import "strings"

// DefaultCurrency is applied when a non-empty but unrecognized token arrives
const DefaultCurrency = "NGN"

var currencyLookup = map[string]string{
	"ngn": "NGN", "naira": "NGN", "₦": "NGN", "n": "NGN",
	"usd": "USD", "dollar": "USD", "dollars": "USD", "$": "USD",
	"gbp": "GBP", "pound": "GBP", "pounds": "GBP", "£": "GBP",
	"eur": "EUR", "euro": "EUR", "euros": "EUR", "€": "EUR",
}

// Currency maps a symbol, name, or code to ISO-4217. Empty input stays
// empty; unknown non-empty input falls back to DefaultCurrency
func Currency(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return ""
	}
	if iso, ok := currencyLookup[s]; ok {
		return iso
	}
	return DefaultCurrency
}
