// Package extract implements the field-extraction port with pattern rules
// over the alert body. Bank alert templates are rigid enough that labeled
// fields cover the common cases; anything it cannot find is left blank for
// the normalizer to treat as missing
package extract

import (
	"context"
	"regexp"
	"strings"

	"alertrecon/internal/core/canon"
	emaildom "alertrecon/internal/services/emails/domain"
)

// Structured implements emaildom.ExtractorPort
type Structured struct{}

// New constructs the pattern extractor
func New() *Structured { return &Structured{} }

var (
	// labeled amount first, bare currency-marked amount as fallback
	amountLabeled = regexp.MustCompile(`(?i)(?:amount|amt|value)\s*[:=]?\s*((?:NGN|USD|GBP|EUR|₦|\$|£|€)?\s*-?\d[\d,]*(?:\.\d{1,2})?)`)
	amountMarked  = regexp.MustCompile(`(?i)((?:NGN|USD|GBP|EUR|₦|\$|£|€)\s*\d[\d,]*(?:\.\d{1,2})?)`)

	currencyPat = regexp.MustCompile(`(?i)\b(NGN|USD|GBP|EUR)\b|[₦$£€]`)

	referencePat = regexp.MustCompile(`(?i)(?:ref(?:erence)?(?:\s*(?:no|number|id))?|trn|narration|remarks?)\s*[:=]\s*([^\r\n]+)`)

	// masked or trailing account digits
	accountPat = regexp.MustCompile(`(?i)(?:acc(?:oun)?t(?:\s*(?:no|number))?)\s*[:=]?\s*((?:[*Xx]+)?\d{2,})`)

	datePat = regexp.MustCompile(`(?i)(?:date|time|on)\s*[:=]?\s*(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}(?::\d{2})?|\d{2}[/-]\d{2}[/-]\d{4}\s+\d{2}:\d{2}(?::\d{2})?|\d{2} [A-Za-z]{3} \d{4} \d{2}:\d{2}(?::\d{2})?)`)

	creditPat = regexp.MustCompile(`(?i)\b(credit(?:ed)?|deposit|received|inflow|cr)\b`)
	debitPat  = regexp.MustCompile(`(?i)\b(debit(?:ed)?|withdraw(?:al|n)?|outflow|dr)\b`)
)

// Extract implements emaildom.ExtractorPort. It never fails: an alert it
// cannot read comes back with IsAlert false and low confidence
func (s *Structured) Extract(_ context.Context, raw emaildom.Raw) (emaildom.Extracted, error) {
	text := raw.Subject + "\n" + raw.Body

	var ext emaildom.Extracted
	ext.Method = canon.ExtractStructured

	if m := amountLabeled.FindStringSubmatch(text); m != nil {
		ext.Amount = strings.TrimSpace(m[1])
	} else if m := amountMarked.FindStringSubmatch(text); m != nil {
		ext.Amount = strings.TrimSpace(m[1])
	}
	if m := currencyPat.FindString(text); m != "" {
		ext.Currency = m
	}
	if m := referencePat.FindStringSubmatch(text); m != nil {
		ext.Reference = strings.TrimSpace(m[1])
	}
	if m := accountPat.FindStringSubmatch(text); m != nil {
		ext.Account = strings.TrimSpace(m[1])
	}
	if m := datePat.FindStringSubmatch(text); m != nil {
		ext.Instant = strings.TrimSpace(m[1])
	}

	ext.TxType = canon.TxUnknown
	switch {
	case creditPat.MatchString(text) && !debitPat.MatchString(text):
		ext.TxType = canon.TxCredit
	case debitPat.MatchString(text) && !creditPat.MatchString(text):
		ext.TxType = canon.TxDebit
	}

	// a transaction alert carries an amount and a direction
	ext.IsAlert = ext.Amount != "" && ext.TxType != canon.TxUnknown
	ext.Confidence = confidence(ext)
	return ext, nil
}

// confidence scores coverage of the fields the matcher leans on
func confidence(e emaildom.Extracted) float64 {
	var c float64
	if e.Amount != "" {
		c += 0.40
	}
	if e.Reference != "" {
		c += 0.25
	}
	if e.Instant != "" {
		c += 0.15
	}
	if e.Account != "" {
		c += 0.10
	}
	if e.TxType != canon.TxUnknown {
		c += 0.10
	}
	return c
}
