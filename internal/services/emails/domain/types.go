// Package domain defines the core types and ports for the emails service
package domain

import (
	"time"

	"alertrecon/internal/core/canon"
)

// Raw is an email as delivered by a source, before filtering or extraction
type Raw struct {
	MessageID  string
	Sender     string
	SenderName string
	Subject    string
	Body       string
	Received   time.Time
}

// Extracted is the structured record the extraction collaborator returns.
// String fields are raw and still need normalization
type Extracted struct {
	Amount     string
	Currency   string
	Reference  string
	Account    string
	Instant    string
	TxType     canon.TxType
	Confidence float64
	Method     canon.ExtractionMethod
	IsAlert    bool
}

// Email is the persisted form: canonical fields plus processing state
type Email struct {
	canon.Email
	Processed    bool
	ParsingError *string
	IngestedAt   time.Time
	UpdatedAt    time.Time
}

// FilterConfig drives the pre-filter applied before extraction
type FilterConfig struct {
	AllowedDomains  []string
	SubjectKeywords []string
	SubjectDenylist []string
	MinBodyLength   int
}

// BatchStats enumerates the outcome of one ingest batch
type BatchStats struct {
	Fetched   int `json:"fetched"`
	Filtered  int `json:"filtered"`
	New       int `json:"new"`
	Duplicate int `json:"duplicate"`
	Stored    int `json:"stored"`
	Failed    int `json:"failed"`
}
