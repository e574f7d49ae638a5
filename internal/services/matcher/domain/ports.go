package domain

import (
	"context"

	emaildom "alertrecon/internal/services/emails/domain"
	txdom "alertrecon/internal/services/transactions/domain"
)

// RunnerPort is the external port of the matcher module
type RunnerPort interface {
	MatchEmail(ctx context.Context, email emaildom.Email, skipActions bool) (Result, error)
	MatchAll(ctx context.Context, limit int, skipActions bool) (RunStats, error)
	Rematch(ctx context.Context, emailID int64, skipActions bool) (Result, error)
}

// PostMatchHook runs after a match is persisted. The action dispatcher
// implements it and is injected at wiring time, which keeps the matcher
// free of a dispatcher dependency
type PostMatchHook interface {
	AfterMatch(ctx context.Context, m Match, email emaildom.Email, tx *txdom.Transaction) error
}
