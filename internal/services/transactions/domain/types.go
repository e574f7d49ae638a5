// Package domain defines the core types and ports for the transactions service
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"alertrecon/internal/core/canon"
)

// Raw is a provider record as delivered by the source API, before
// normalization. String fields arrive in provider-local formats
type Raw struct {
	ExternalID string
	Amount     string
	Currency   string
	Instant    string
	Status     string

	Reference        string
	Description      string
	AccountRef       string
	CounterpartyName string
	CounterpartyMail string
}

// Transaction is the persisted form: canonical fields plus verification state
type Transaction struct {
	canon.Transaction
	Verified   bool
	VerifiedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CandidateQuery narrows the transaction table to plausible matches for
// one email. Tolerance is a fraction of Amount (0.01 == 1%)
type CandidateQuery struct {
	Amount              decimal.Decimal
	Currency            string
	Instant             *time.Time
	WindowHours         int
	Tolerance           decimal.Decimal
	RequireSameCurrency bool
	ExcludeMatched      bool
	Limit               int
}

// BatchStats enumerates the outcome of one poll batch
type BatchStats struct {
	Fetched   int `json:"fetched"`
	New       int `json:"new"`
	Duplicate int `json:"duplicate"`
	Stored    int `json:"stored"`
	Failed    int `json:"failed"`
}
