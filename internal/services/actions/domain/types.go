// Package domain defines the core types and ports for the actions service
package domain

import (
	"encoding/json"
	"time"
)

// Outcome categorizes a persisted match for action policy lookup
type Outcome string

// Outcome values
const (
	OutcomeMatched   Outcome = "MATCHED"
	OutcomeAmbiguous Outcome = "AMBIGUOUS"
	OutcomeUnmatched Outcome = "UNMATCHED"
	OutcomeReview    Outcome = "REVIEW"
	OutcomeRejected  Outcome = "REJECTED"
)

// Kind identifies one action type
type Kind string

// Action kinds
const (
	KindMarkVerified   Kind = "mark_verified"
	KindUpdateStatus   Kind = "update_status"
	KindNotifyExternal Kind = "notify_external_system"
	KindSendWebhook    Kind = "send_webhook"
	KindCreateTicket   Kind = "create_ticket"
	KindSendEmail      Kind = "send_email"
	KindFlagUnmatched  Kind = "flag_unmatched"
	KindEscalate       Kind = "escalate"
)

// Critical reports whether failures of this kind are retried
func (k Kind) Critical() bool {
	return k == KindMarkVerified || k == KindUpdateStatus
}

// Policy maps an outcome to its ordered action list
type Policy map[Outcome][]Kind

// DefaultPolicy is the shipped outcome table. REJECTED dispatches nothing
// by default; operators opt in via config
func DefaultPolicy() Policy {
	return Policy{
		OutcomeMatched:   {KindMarkVerified, KindUpdateStatus, KindNotifyExternal},
		OutcomeAmbiguous: {KindCreateTicket, KindSendEmail, KindEscalate},
		OutcomeUnmatched: {KindFlagUnmatched, KindCreateTicket, KindSendEmail},
		OutcomeReview:    {KindCreateTicket, KindSendEmail},
		OutcomeRejected:  {},
	}
}

// Payload is the typed body handed to every action handler. Webhook
// handlers POST it verbatim
type Payload struct {
	Event         string         `json:"event"`
	MatchID       string         `json:"matchId"`
	EmailID       int64          `json:"emailId"`
	TransactionID *int64         `json:"transactionId,omitempty"`
	Status        string         `json:"status"`
	Confidence    float64        `json:"confidence"`
	Outcome       Outcome        `json:"outcome"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// HandlerResult is what a handler returns
type HandlerResult struct {
	Status   string // "success" or "failed"
	Outcome  string // handler-specific label, e.g. "webhook_sent"
	Message  string
	Metadata map[string]any
}

// ActionResult is the dispatcher's record of one executed action
type ActionResult struct {
	Kind     Kind          `json:"kind"`
	Status   string        `json:"status"`
	Outcome  string        `json:"outcome"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Retries  int           `json:"retries"`
}

// Audit is one append-then-update row per attempted action
type Audit struct {
	ID            string
	Kind          Kind
	MatchID       string
	EmailID       int64
	TransactionID *int64
	MatchStatus   string
	Confidence    float64
	Actor         string
	StartedAt     time.Time
	EndedAt       *time.Time
	DurationMs    *int64
	Status        string // pending / running / success / failed / skipped / retrying
	Outcome       string
	Message       string
	Error         string
	RetryCount    int
	Payload       json.RawMessage
}

// Audit statuses
const (
	AuditPending  = "pending"
	AuditRunning  = "running"
	AuditSuccess  = "success"
	AuditFailed   = "failed"
	AuditSkipped  = "skipped"
	AuditRetrying = "retrying"
)
