// Package rules implements the weighted matching rules applied to an
// (email, transaction) pair. Every rule is a pure function returning a raw
// score in [0,1] plus a detail map; weighting and ranking live in the scorer
package rules

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"alertrecon/internal/core/canon"
	"alertrecon/internal/core/money"
)

// Rule names, stable across config and persisted match details
const (
	NameExactAmount     = "exact_amount"
	NameExactReference  = "exact_reference"
	NameFuzzyReference  = "fuzzy_reference"
	NameTimestamp       = "timestamp_proximity"
	NameAccountMatch    = "account_match"
	NameCompositeKey    = "composite_key"
	NameBankMatch       = "bank_match"
	NameCurrencyMatch   = "currency_match"   // diagnostic, zero weight by default
	NameTransactionType = "transaction_type" // diagnostic, zero weight by default
)

// Score is a single rule outcome
type Score struct {
	Raw     float64
	Details map[string]any
}

// Func evaluates one rule against a pair
type Func func(e *canon.Email, t *canon.Transaction) Score

// Rule pairs a stable name with its evaluation function
type Rule struct {
	Name string
	Fn   Func
}

// Params carries the knobs the rules share with retrieval
type Params struct {
	AmountTolerance decimal.Decimal // fraction, 0.01 == 1%
	WindowHours     float64
	MinSimilarity   float64
	AccountSimMin   float64
}

// DefaultParams mirrors the retrieval defaults
func DefaultParams() Params {
	return Params{
		AmountTolerance: decimal.NewFromFloat(0.01),
		WindowHours:     48,
		MinSimilarity:   0.6,
		AccountSimMin:   0.8,
	}
}

// Set returns all rules in their stable evaluation order
func Set(p Params) []Rule {
	return []Rule{
		{Name: NameExactAmount, Fn: exactAmount(p)},
		{Name: NameExactReference, Fn: exactReference},
		{Name: NameFuzzyReference, Fn: fuzzyReference(p)},
		{Name: NameTimestamp, Fn: timestampProximity(p)},
		{Name: NameAccountMatch, Fn: accountMatch(p)},
		{Name: NameCompositeKey, Fn: compositeKey},
		{Name: NameBankMatch, Fn: bankMatch},
		{Name: NameCurrencyMatch, Fn: currencyMatch},
		{Name: NameTransactionType, Fn: transactionType},
	}
}

func exactAmount(p Params) Func {
	return func(e *canon.Email, t *canon.Transaction) Score {
		if e.Amount == nil {
			return Score{Raw: 0, Details: map[string]any{"reason": "email amount missing"}}
		}
		d := map[string]any{
			"email_amount": e.Amount.StringFixed(2),
			"tx_amount":    t.Amount.StringFixed(2),
		}
		switch {
		case money.Equal(*e.Amount, t.Amount):
			d["match"] = "exact"
			return Score{Raw: 1.0, Details: d}
		case money.WithinTolerance(t.Amount, *e.Amount, *e.Amount, p.AmountTolerance):
			d["match"] = "tolerance"
			return Score{Raw: 0.95, Details: d}
		default:
			return Score{Raw: 0, Details: d}
		}
	}
}

func exactReference(e *canon.Email, t *canon.Transaction) Score {
	if e.Reference == nil || t.Reference == nil {
		return Score{Raw: 0, Details: map[string]any{"reason": "reference missing"}}
	}
	d := map[string]any{
		"email_ref": e.Reference.AlphaNum,
		"tx_ref":    t.Reference.AlphaNum,
	}
	switch {
	case e.Reference.AlphaNum != "" && e.Reference.AlphaNum == t.Reference.AlphaNum:
		d["match"] = "alphanumeric"
		return Score{Raw: 1.0, Details: d}
	case e.Reference.Cleaned == t.Reference.Cleaned:
		d["match"] = "cleaned"
		return Score{Raw: 0.95, Details: d}
	case tokensAligned(e.Reference.Tokens, t.Reference.Tokens):
		d["match"] = "token_aligned"
		return Score{Raw: 0.85, Details: d}
	default:
		return Score{Raw: 0, Details: d}
	}
}

// tokensAligned reports whether two token lists pair off one to one, each
// pair equal or an abbreviation of its partner. Bank wire formats shorten
// words between the alert and the ledger ("TRF" vs "TRANSFER") while
// keeping the numeric parts intact; a full pairing is strong evidence the
// references describe the same transfer. Single-token lists are excluded:
// one coincidental pairing is too thin to credit
func tokensAligned(a, b []string) bool {
	if len(a) < 2 || len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, ta := range a {
		found := false
		for j, tb := range b {
			if used[j] || !tokenMatches(ta, tb) {
				continue
			}
			used[j] = true
			found = true
			break
		}
		if !found {
			return false
		}
	}
	return true
}

// tokenMatches accepts equal tokens, or an abbreviation: the shorter token
// starts with the same rune and its runes appear in order within the longer
func tokenMatches(a, b string) bool {
	if a == b {
		return true
	}
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 || short[0] != long[0] {
		return false
	}
	i := 0
	for _, r := range long {
		if i < len(short) && short[i] == r {
			i++
		}
	}
	return i == len(short)
}

func fuzzyReference(p Params) Func {
	return func(e *canon.Email, t *canon.Transaction) Score {
		if e.Reference == nil || t.Reference == nil {
			return Score{Raw: 0, Details: map[string]any{"reason": "reference missing"}}
		}
		a := strings.ToLower(e.Reference.Cleaned)
		b := strings.ToLower(t.Reference.Cleaned)
		sim := BestSimilarity(a, b)
		d := map[string]any{"similarity": sim}
		if sim < p.MinSimilarity {
			return Score{Raw: 0, Details: d}
		}
		return Score{Raw: sim, Details: d}
	}
}

func timestampProximity(p Params) Func {
	return func(e *canon.Email, t *canon.Transaction) Score {
		if e.Instant == nil {
			return Score{Raw: 0.5, Details: map[string]any{"reason": "email instant missing"}}
		}
		dh := math.Abs(e.Instant.Sub(t.Instant).Hours())
		d := map[string]any{"delta_hours": dh}
		switch {
		case dh <= 1:
			return Score{Raw: 1.0, Details: d}
		case dh <= p.WindowHours:
			return Score{Raw: 1.0 - dh/p.WindowHours, Details: d}
		default:
			return Score{Raw: 0, Details: d}
		}
	}
}

func accountMatch(p Params) Func {
	return func(e *canon.Email, t *canon.Transaction) Score {
		ea := strings.TrimSpace(e.AccountRef)
		ta := strings.TrimSpace(t.AccountRef)
		if ea == "" || ta == "" {
			return Score{Raw: 0, Details: map[string]any{"reason": "account missing"}}
		}
		d := map[string]any{
			"email_last4": canon.AccountLast4(ea),
			"tx_last4":    canon.AccountLast4(ta),
		}
		if ea == ta || canon.AccountLast4(ea) == canon.AccountLast4(ta) {
			d["match"] = "exact"
			return Score{Raw: 1.0, Details: d}
		}
		if sim := Ratio(ea, ta); sim >= p.AccountSimMin {
			d["similarity"] = sim
			return Score{Raw: sim, Details: d}
		}
		return Score{Raw: 0, Details: d}
	}
}

// compositeKey components scored: currency, amount string, date bucket,
// account last4, and token overlap above 0.5
const compositeComponents = 5

func compositeKey(e *canon.Email, t *canon.Transaction) Score {
	if e.Key == nil || t.Key == nil {
		return Score{Raw: 0, Details: map[string]any{"reason": "composite key missing"}}
	}
	ek, tk := e.Key, t.Key
	d := map[string]any{"email_key": ek.String(), "tx_key": tk.String()}
	if ek.String() == tk.String() {
		d["match"] = "full"
		return Score{Raw: 1.0, Details: d}
	}

	matched := 0
	if ek.Currency == tk.Currency {
		matched++
	}
	if ek.AmountString == tk.AmountString {
		matched++
	}
	if ek.DateBucket == tk.DateBucket {
		matched++
	}
	if ek.AccountLast4 != "" && ek.AccountLast4 == tk.AccountLast4 {
		matched++
	}
	if overlap := tokenOverlap(ek.TopTokens, tk.TopTokens); overlap > 0.5 {
		matched++
		d["token_overlap"] = overlap
	}
	d["components"] = matched
	return Score{Raw: float64(matched) / float64(compositeComponents), Details: d}
}

func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	shared := 0
	for _, t := range b {
		if set[t] {
			shared++
		}
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return float64(shared) / float64(longest)
}

func bankMatch(e *canon.Email, t *canon.Transaction) Score {
	if e.Enrichment == nil || t.Enrichment == nil {
		return Score{Raw: 0, Details: map[string]any{"reason": "enrichment missing"}}
	}
	d := map[string]any{
		"email_bank": e.Enrichment.BankCode,
		"tx_bank":    t.Enrichment.BankCode,
	}
	if e.Enrichment.BankCode != t.Enrichment.BankCode {
		return Score{Raw: 0, Details: d}
	}
	avg := (e.Enrichment.Confidence + t.Enrichment.Confidence) / 2
	d["match"] = "code"
	return Score{Raw: avg, Details: d}
}

// currencyMatch is diagnostic only unless a weight is configured for it
func currencyMatch(e *canon.Email, t *canon.Transaction) Score {
	d := map[string]any{"email_currency": e.Currency, "tx_currency": t.Currency}
	if e.Currency == "" || t.Currency == "" {
		return Score{Raw: 0.5, Details: d}
	}
	if e.Currency == t.Currency {
		return Score{Raw: 1.0, Details: d}
	}
	return Score{Raw: 0, Details: d}
}

// transactionType is diagnostic only unless a weight is configured for it
func transactionType(e *canon.Email, t *canon.Transaction) Score {
	d := map[string]any{"email_type": string(e.TxType), "tx_status": t.Status}
	if e.TxType == "" || e.TxType == canon.TxUnknown {
		return Score{Raw: 0.5, Details: d}
	}
	// provider records mark direction through status labels
	st := strings.ToLower(t.Status)
	switch e.TxType {
	case canon.TxCredit:
		if strings.Contains(st, "credit") || st == "successful" || st == "success" {
			return Score{Raw: 1.0, Details: d}
		}
	case canon.TxDebit:
		if strings.Contains(st, "debit") {
			return Score{Raw: 1.0, Details: d}
		}
	}
	return Score{Raw: 0, Details: d}
}
