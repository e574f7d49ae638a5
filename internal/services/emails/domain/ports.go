package domain

import (
	"context"
	"time"
)

// SourcePort is the uniform puller contract for email sources
type SourcePort interface {
	Fetch(ctx context.Context, since, until time.Time, limit, offset int) ([]Raw, error)
	ByID(ctx context.Context, id string) (*Raw, error)
	Validate(ctx context.Context) error
	Label() string
}

// ExtractorPort is the opaque field-extraction collaborator
type ExtractorPort interface {
	Extract(ctx context.Context, raw Raw) (Extracted, error)
}

// IngestPort is the external port of the emails module
type IngestPort interface {
	IngestBatch(ctx context.Context, since, until time.Time, limit int) (BatchStats, error)
}

// ReaderPort exposes persisted emails to the matcher
type ReaderPort interface {
	ListUnmatched(ctx context.Context, limit int) ([]Email, error)
	ByID(ctx context.Context, id int64) (*Email, error)
	MarkProcessed(ctx context.Context, id int64, parseErr *string) error
}
