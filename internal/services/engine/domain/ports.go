package domain

import (
	"context"
	"time"

	"alertrecon/internal/platform/resilience"
	emaildom "alertrecon/internal/services/emails/domain"
	matchdom "alertrecon/internal/services/matcher/domain"
	txdom "alertrecon/internal/services/transactions/domain"
)

// EmailIngester is what the orchestrator needs from the emails module
type EmailIngester interface {
	IngestBatch(ctx context.Context, since, until time.Time, limit int) (emaildom.BatchStats, error)
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	BreakerState() resilience.BreakerState
}

// TxPoller is what the orchestrator needs from the transactions module
type TxPoller interface {
	PollBatch(ctx context.Context, since, until time.Time, limit int) (txdom.BatchStats, error)
	BreakerState() resilience.BreakerState
}

// Matcher is what the orchestrator needs from the matcher module
type Matcher interface {
	MatchAll(ctx context.Context, limit int, skipActions bool) (matchdom.RunStats, error)
	Rematch(ctx context.Context, emailID int64, skipActions bool) (matchdom.Result, error)
	SetObserver(fn func(matchdom.Result))
}

// AuditCleaner is what the orchestrator needs from the actions module
type AuditCleaner interface {
	CleanupAudits(ctx context.Context, retentionDays int) (int64, error)
}

// OrchestratorPort is the external surface consumed by the API and CLI
type OrchestratorPort interface {
	Start(ctx context.Context) error
	Stop()
	TriggerCycle() TriggerResult
	RunCycle(ctx context.Context) (RunRecord, error)
	Status() Status
	Metrics(recent int) Aggregates
	Rematch(ctx context.Context, emailID int64, skipActions bool) (matchdom.Result, error)
	Cleanup(ctx context.Context) (audits, emails int64, err error)
}
