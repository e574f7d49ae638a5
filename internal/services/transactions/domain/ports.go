package domain

import (
	"context"
	"time"
)

// SourcePort is the uniform puller contract for transaction sources.
// Dedup key downstream is (Label(), Raw.ExternalID)
type SourcePort interface {
	Fetch(ctx context.Context, since, until time.Time, limit, offset int) ([]Raw, error)
	ByID(ctx context.Context, id string) (*Raw, error)
	Validate(ctx context.Context) error
	Label() string
}

// PollPort is the external port of the transactions module
type PollPort interface {
	PollBatch(ctx context.Context, since, until time.Time, limit int) (BatchStats, error)
}

// ReaderPort exposes persisted transactions to the matcher and dispatcher
type ReaderPort interface {
	Candidates(ctx context.Context, q CandidateQuery) ([]Transaction, error)
	ByExternalID(ctx context.Context, source, externalID string) (*Transaction, error)
	MarkVerified(ctx context.Context, id int64) error
}
