// Package repo provides the append-only action audit repository
package repo

import (
	"context"
	"encoding/json"
	"time"

	"alertrecon/internal/modkit/repokit"
	"alertrecon/internal/platform/store"
	str "alertrecon/internal/platform/strings"
	"alertrecon/internal/services/actions/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Patch is the mutable subset of an audit row after append
type Patch struct {
	Status     string
	Outcome    string
	Message    string
	Error      string
	EndedAt    time.Time
	DurationMs int64
	RetryCount int
	Payload    json.RawMessage
}

// Storage defines the audit repository. Rows are append-then-update:
// only the Patch fields ever change after insert
type Storage interface {
	Append(ctx context.Context, a domain.Audit) error
	Update(ctx context.Context, id string, p Patch) error
	ListForMatch(ctx context.Context, matchID string) ([]domain.Audit, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Append implements Storage
func (s *pg) Append(ctx context.Context, a domain.Audit) error {
	return store.ExecOne(ctx, s.q, `
		INSERT INTO action_audits
			(id, action_kind, match_id, email_id, transaction_id,
			match_status, confidence, actor, started_at, status,
			outcome, message, error, retry_count, payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		a.ID, string(a.Kind), a.MatchID, a.EmailID, a.TransactionID,
		a.MatchStatus, a.Confidence, a.Actor, a.StartedAt, a.Status,
		str.SQLNull(a.Outcome), str.SQLNull(a.Message), str.SQLNull(a.Error),
		a.RetryCount, nullJSON(a.Payload),
	)
}

// Update implements Storage
func (s *pg) Update(ctx context.Context, id string, p Patch) error {
	return store.ExecOne(ctx, s.q, `
		UPDATE action_audits
		SET status = $2, outcome = $3, message = $4, error = $5,
			ended_at = $6, duration_ms = $7, retry_count = $8,
			payload = COALESCE($9, payload)
		WHERE id = $1`,
		id, p.Status, str.SQLNull(p.Outcome), str.SQLNull(p.Message), str.SQLNull(p.Error),
		p.EndedAt, p.DurationMs, p.RetryCount, nullJSON(p.Payload),
	)
}

// ListForMatch implements Storage, oldest first
func (s *pg) ListForMatch(ctx context.Context, matchID string) ([]domain.Audit, error) {
	return store.Many(ctx, s.q, scanAudit, `
		SELECT id::text, action_kind, match_id::text, email_id, transaction_id,
			match_status, confidence::float8, actor, started_at, ended_at,
			duration_ms, status, outcome, message, error, retry_count, payload
		FROM action_audits
		WHERE match_id = $1
		ORDER BY started_at ASC`,
		matchID,
	)
}

// DeleteBefore removes audit rows older than cutoff (retention)
func (s *pg) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM action_audits WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func scanAudit(r store.Row) (domain.Audit, error) {
	var (
		a       domain.Audit
		kind    string
		outcome *string
		message *string
		errStr  *string
		payload []byte
	)
	if err := r.Scan(
		&a.ID, &kind, &a.MatchID, &a.EmailID, &a.TransactionID,
		&a.MatchStatus, &a.Confidence, &a.Actor, &a.StartedAt, &a.EndedAt,
		&a.DurationMs, &a.Status, &outcome, &message, &errStr, &a.RetryCount, &payload,
	); err != nil {
		return domain.Audit{}, err
	}
	a.Kind = domain.Kind(kind)
	a.Outcome = str.Deref(outcome)
	a.Message = str.Deref(message)
	a.Error = str.Deref(errStr)
	a.Payload = payload
	return a, nil
}
