// Package repo provides the matches repository implementation
package repo

import (
	"context"
	"encoding/json"

	"alertrecon/internal/modkit/repokit"
	"alertrecon/internal/platform/store"
	str "alertrecon/internal/platform/strings"
	"alertrecon/internal/services/matcher/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the matches repository. MarkEmailProcessed lives here so
// the match swap and the processed flag commit in one transaction
type Storage interface {
	GetForEmail(ctx context.Context, emailID int64) (*domain.Match, error)
	Replace(ctx context.Context, m domain.Match) error
	DeleteForEmail(ctx context.Context, emailID int64) error
	MarkEmailProcessed(ctx context.Context, emailID int64) error
}

const matchCols = `
	id::text, email_id, transaction_id, confidence::float8, status, match_method,
	details, alternatives, notes, created_at, updated_at`

// GetForEmail implements Storage; perr.ErrNotFound when no match exists
func (s *pg) GetForEmail(ctx context.Context, emailID int64) (*domain.Match, error) {
	m, err := store.One(ctx, s.q, scanMatch,
		`SELECT `+matchCols+` FROM matches WHERE email_id = $1`, emailID)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Replace deletes any existing match for the email and inserts the new one.
// Callers run it inside one transaction so the swap is atomic
func (s *pg) Replace(ctx context.Context, m domain.Match) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM matches WHERE email_id = $1`, m.EmailID); err != nil {
		return err
	}
	return store.ExecOne(ctx, s.q, `
		INSERT INTO matches
			(id, email_id, transaction_id, confidence, status, match_method,
			details, alternatives, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())`,
		m.ID, m.EmailID, m.TransactionID, m.Confidence, m.Status, m.Method,
		nullJSON(m.Details), nullJSON(m.Alternatives), str.SQLNull(m.Notes),
	)
}

// MarkEmailProcessed flips the processed flag alongside the match swap
func (s *pg) MarkEmailProcessed(ctx context.Context, emailID int64) error {
	return store.ExecOne(ctx, s.q, `
		UPDATE emails
		SET processed = true, parsing_error = NULL, updated_at = now()
		WHERE id = $1`,
		emailID,
	)
}

// DeleteForEmail implements Storage
func (s *pg) DeleteForEmail(ctx context.Context, emailID int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM matches WHERE email_id = $1`, emailID)
	return err
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func scanMatch(r store.Row) (domain.Match, error) {
	var (
		m       domain.Match
		details []byte
		alts    []byte
		notes   *string
	)
	if err := r.Scan(
		&m.ID, &m.EmailID, &m.TransactionID, &m.Confidence, &m.Status, &m.Method,
		&details, &alts, &notes, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return domain.Match{}, err
	}
	m.Details = details
	m.Alternatives = alts
	m.Notes = str.Deref(notes)
	return m, nil
}
