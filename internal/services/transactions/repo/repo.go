// Package repo provides the transactions repository implementation
package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"alertrecon/internal/core/canon"
	"alertrecon/internal/core/normalize"
	"alertrecon/internal/modkit/repokit"
	"alertrecon/internal/platform/store"
	str "alertrecon/internal/platform/strings"
	"alertrecon/internal/services/transactions/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the transactions repository
type Storage interface {
	Upsert(ctx context.Context, t domain.Transaction) (created bool, err error)
	ByID(ctx context.Context, id int64) (*domain.Transaction, error)
	ByExternalID(ctx context.Context, source, externalID string) (*domain.Transaction, error)
	Candidates(ctx context.Context, q domain.CandidateQuery) ([]domain.Transaction, error)
	CandidatesByKeyBucket(ctx context.Context, amount decimal.Decimal, currency string, bucket time.Time) ([]domain.Transaction, error)
	MarkVerified(ctx context.Context, id int64) error
}

const txCols = `
	id, source, external_id, amount::text, currency, occurred_at,
	reference, account_ref, description, customer_name, customer_email, status,
	bank_code, bank_name, bank_category, bank_confidence,
	verified, verified_at, created_at, updated_at`

// Upsert inserts the canonical transaction, idempotent by (source, external_id).
// Returns created=false on duplicate without mutating the existing row
func (s *pg) Upsert(ctx context.Context, t domain.Transaction) (bool, error) {
	var bankCode, bankName, bankCat, bankConf any
	if t.Enrichment != nil {
		bankCode, bankName, bankCat = t.Enrichment.BankCode, t.Enrichment.BankName, t.Enrichment.Category
		bankConf = t.Enrichment.Confidence
	}
	var key any
	if t.Key != nil {
		key = t.Key.String()
	}

	tag, err := s.q.Exec(ctx, `
		INSERT INTO transactions
			(source, external_id, amount, currency, occurred_at,
			reference, account_ref, description, customer_name, customer_email, status,
			bank_code, bank_name, bank_category, bank_confidence,
			composite_key, created_at, updated_at)
		VALUES
			($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
		ON CONFLICT (source, external_id) DO NOTHING`,
		t.Source, t.ExternalID, t.Amount.StringFixed(2), t.Currency, t.Instant,
		refOriginal(t.Reference), str.SQLNull(t.AccountRef), str.SQLNull(t.Description),
		str.SQLNull(t.CounterpartyName), str.SQLNull(t.CounterpartyMail), t.Status,
		bankCode, bankName, bankCat, bankConf,
		key,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ByID implements Storage
func (s *pg) ByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	t, err := store.One(ctx, s.q, scanTx, `SELECT `+txCols+` FROM transactions WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ByExternalID implements Storage
func (s *pg) ByExternalID(ctx context.Context, source, externalID string) (*domain.Transaction, error) {
	t, err := store.One(ctx, s.q, scanTx,
		`SELECT `+txCols+` FROM transactions WHERE source = $1 AND external_id = $2`,
		source, externalID)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Candidates implements the amount/time window search. Result ordering is
// left to the scorer
func (s *pg) Candidates(ctx context.Context, q domain.CandidateQuery) ([]domain.Transaction, error) {
	delta := q.Amount.Abs().Mul(q.Tolerance)
	lo := q.Amount.Sub(delta)
	hi := q.Amount.Add(delta)

	var sb strings.Builder
	var args []any
	arg := func(v any) string { args = append(args, v); return fmt.Sprintf("$%d", len(args)) }

	sb.WriteString(`SELECT ` + txCols + ` FROM transactions t WHERE t.amount BETWEEN `)
	sb.WriteString(arg(lo.StringFixed(4)))
	sb.WriteString(` AND `)
	sb.WriteString(arg(hi.StringFixed(4)))

	if q.RequireSameCurrency && q.Currency != "" {
		sb.WriteString(` AND t.currency = ` + arg(q.Currency))
	}
	if q.Instant != nil && q.WindowHours > 0 {
		window := time.Duration(q.WindowHours) * time.Hour
		sb.WriteString(` AND t.occurred_at BETWEEN ` + arg(q.Instant.Add(-window)) +
			` AND ` + arg(q.Instant.Add(window)))
	}
	if q.ExcludeMatched {
		// only auto-matches block candidacy; alternatives do not
		sb.WriteString(` AND NOT EXISTS (
			SELECT 1 FROM matches m
			WHERE m.transaction_id = t.id AND m.status = 'matched')`)
	}
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ` + arg(q.Limit))
	}

	return store.Many(ctx, s.q, scanTx, sb.String(), args...)
}

// CandidatesByKeyBucket is the tight path: exact amount and currency within
// the composite-key hour bucket plus one hour either side
func (s *pg) CandidatesByKeyBucket(
	ctx context.Context,
	amount decimal.Decimal,
	currency string,
	bucket time.Time,
) ([]domain.Transaction, error) {
	return store.Many(ctx, s.q, scanTx, `
		SELECT `+txCols+`
		FROM transactions t
		WHERE t.amount = $1
		  AND t.currency = $2
		  AND t.occurred_at >= $3
		  AND t.occurred_at < $4`,
		amount.StringFixed(2), currency,
		bucket.Add(-time.Hour), bucket.Add(2*time.Hour),
	)
}

// MarkVerified flips the verified flag once, monotonically
func (s *pg) MarkVerified(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `
		UPDATE transactions
		SET verified = true, verified_at = COALESCE(verified_at, now()), updated_at = now()
		WHERE id = $1 AND verified = false`,
		id,
	)
	return err
}

func refOriginal(r *canon.ReferenceBundle) any {
	if r == nil {
		return nil
	}
	return r.Original
}

// scanTx rebuilds the canonical transaction; the reference bundle and
// composite key are recomputed from stored originals
func scanTx(r store.Row) (domain.Transaction, error) {
	var (
		t          domain.Transaction
		amount     string
		reference  *string
		accountRef *string
		desc       *string
		custName   *string
		custMail   *string
		bankCode   *string
		bankName   *string
		bankCat    *string
		bankConf   *float64
	)
	if err := r.Scan(
		&t.ID, &t.Source, &t.ExternalID, &amount, &t.Currency, &t.Instant,
		&reference, &accountRef, &desc, &custName, &custMail, &t.Status,
		&bankCode, &bankName, &bankCat, &bankConf,
		&t.Verified, &t.VerifiedAt, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return domain.Transaction{}, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("bad stored amount %q: %w", amount, err)
	}
	t.Amount = d.Round(2)
	t.Instant = t.Instant.UTC()
	t.AccountRef = str.Deref(accountRef)
	t.Description = str.Deref(desc)
	t.CounterpartyName = str.Deref(custName)
	t.CounterpartyMail = str.Deref(custMail)
	if reference != nil {
		t.Reference = normalize.Reference(*reference)
	}
	if bankCode != nil {
		t.Enrichment = &canon.Enrichment{
			BankCode:   *bankCode,
			BankName:   str.Deref(bankName),
			Category:   str.Deref(bankCat),
			Confidence: derefFloat(bankConf),
		}
	}
	instant := t.Instant
	t.Key = normalize.Key(&t.Amount, t.Currency, &instant, t.Reference, t.AccountRef)
	return t, nil
}

func derefFloat(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
