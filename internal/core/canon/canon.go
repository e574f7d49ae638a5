// Package canon holds the canonical, normalized record types every stage of
// the reconciliation pipeline exchanges. Values are read-only snapshots:
// stages never mutate a canonical record they received
package canon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TxType classifies the direction of a transaction as extracted from an alert
type TxType string

// Transaction direction values
const (
	TxCredit  TxType = "credit"
	TxDebit   TxType = "debit"
	TxUnknown TxType = "unknown"
)

// ExtractionMethod records how the email fields were obtained
type ExtractionMethod string

// Extraction method values
const (
	ExtractStructured ExtractionMethod = "structured"
	ExtractModel      ExtractionMethod = "model"
	ExtractHybrid     ExtractionMethod = "hybrid"
)

// ReferenceBundle is the normalized view of a transaction reference.
// Cleaned keeps punctuation with collapsed whitespace; AlphaNum is the
// uppercase alphanumeric-only form; Tokens preserves source order and
// only holds tokens of length >= 3
type ReferenceBundle struct {
	Original string   `json:"original"`
	Cleaned  string   `json:"cleaned"`
	AlphaNum string   `json:"alphanumeric"`
	Tokens   []string `json:"tokens"`
}

// Enrichment is bank identity inferred from sender metadata
type Enrichment struct {
	BankCode   string  `json:"bank_code"`
	BankName   string  `json:"bank_name"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// CompositeKey is a coarse deterministic fingerprint for cheap candidate
// grouping. It never uniquely identifies a record
type CompositeKey struct {
	AmountString string   `json:"amount"`
	Currency     string   `json:"currency"`
	DateBucket   string   `json:"date_bucket"` // "YYYY-MM-DD-HH", UTC hour start
	TopTokens    []string `json:"top_tokens"`  // up to three, sorted
	AccountLast4 string   `json:"account_last4"`
}

// String renders the stable form amount|currency|bucket|tok1_tok2_tok3|last4
func (k CompositeKey) String() string {
	var b strings.Builder
	b.WriteString(k.AmountString)
	b.WriteByte('|')
	b.WriteString(k.Currency)
	b.WriteByte('|')
	b.WriteString(k.DateBucket)
	b.WriteByte('|')
	b.WriteString(strings.Join(k.TopTokens, "_"))
	b.WriteByte('|')
	b.WriteString(k.AccountLast4)
	return b.String()
}

// Email is the canonical form of an ingested bank-alert email.
// Amount/Instant/Reference are nil when the extractor could not produce them
type Email struct {
	ID        int64
	MessageID string
	Sender    string
	SenderNm  string
	Subject   string
	Body      string
	Received  time.Time

	Amount     *decimal.Decimal
	Currency   string // ISO-4217 or "" when unknown
	Reference  *ReferenceBundle
	AccountRef string
	Instant    *time.Time // transaction instant from the alert body, UTC
	TxType     TxType

	ExtractConfidence float64
	ExtractMethod     ExtractionMethod
	IsAlert           bool

	Enrichment *Enrichment
	Key        *CompositeKey
}

// Transaction is the canonical form of a provider transaction record
type Transaction struct {
	ID         int64
	Source     string
	ExternalID string

	Amount     decimal.Decimal
	Currency   string
	Instant    time.Time // UTC
	Reference  *ReferenceBundle
	AccountRef string

	Description      string
	CounterpartyName string
	CounterpartyMail string
	Status           string

	Enrichment *Enrichment
	Key        *CompositeKey
}

// AccountLast4 returns the trailing 4 characters of an account reference,
// or the whole value when shorter
func AccountLast4(account string) string {
	account = strings.TrimSpace(account)
	if len(account) <= 4 {
		return account
	}
	return account[len(account)-4:]
}
