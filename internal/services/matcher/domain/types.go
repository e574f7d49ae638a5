// Package domain defines the core types and ports for the matcher service
package domain

import (
	"encoding/json"
	"time"

	"alertrecon/internal/core/scorer"
)

// Match is the persisted match row. At most one exists per email;
// rematch replaces it atomically
type Match struct {
	ID            string
	EmailID       int64
	TransactionID *int64
	Confidence    float64
	Status        string // stored status: matched / review / rejected / no_candidates / pending
	Method        string
	Details       json.RawMessage
	Alternatives  json.RawMessage
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AlternativeCount decodes the stored alternatives blob length
func (m *Match) AlternativeCount() int {
	if len(m.Alternatives) == 0 {
		return 0
	}
	var alts []json.RawMessage
	if err := json.Unmarshal(m.Alternatives, &alts); err != nil {
		return 0
	}
	return len(alts)
}

// Alternative is one stored alternative candidate
type Alternative struct {
	TransactionID int64   `json:"transaction_id"`
	ExternalID    string  `json:"external_id"`
	Total         float64 `json:"total"`
	Rank          int     `json:"rank"`
}

// Result summarizes one scoring run for an email
type Result struct {
	EmailID       int64         `json:"email_id"`
	MatchID       string        `json:"match_id"`
	Status        scorer.Status `json:"status"`
	Confidence    float64       `json:"confidence"`
	TransactionID *int64        `json:"transaction_id,omitempty"`
	Candidates    int           `json:"candidates"`
	Alternatives  int           `json:"alternatives"`
	RuleScores    []scorer.RuleScore
	Elapsed       time.Duration `json:"-"`
}

// RunStats aggregates one matching pass over unmatched emails
type RunStats struct {
	Emails      int `json:"emails"`
	AutoMatched int `json:"auto_matched"`
	NeedsReview int `json:"needs_review"`
	Rejected    int `json:"rejected"`
	NoCandidate int `json:"no_candidates"`
	Failed      int `json:"failed"`
}
