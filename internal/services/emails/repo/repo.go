// Package repo provides the emails repository implementation
package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"alertrecon/internal/core/canon"
	"alertrecon/internal/core/normalize"
	"alertrecon/internal/modkit/repokit"
	"alertrecon/internal/platform/store"
	str "alertrecon/internal/platform/strings"
	"alertrecon/internal/services/emails/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the emails repository
type Storage interface {
	Upsert(ctx context.Context, e domain.Email) (created bool, err error)
	ByID(ctx context.Context, id int64) (*domain.Email, error)
	ByMessageID(ctx context.Context, messageID string) (*domain.Email, error)
	ListUnmatched(ctx context.Context, limit int) ([]domain.Email, error)
	MarkProcessed(ctx context.Context, id int64, parseErr *string) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

const emailCols = `
	id, message_id, sender, sender_name, subject, body, received_at,
	amount::text, currency, reference, account_ref, tx_instant, tx_type,
	extract_confidence, extract_method, is_alert,
	bank_code, bank_name, bank_category, bank_confidence,
	processed, parsing_error, ingested_at, updated_at`

// Upsert inserts the canonical email, idempotent by message_id.
// Returns created=false on duplicate without mutating the existing row
func (s *pg) Upsert(ctx context.Context, e domain.Email) (bool, error) {
	var amount any
	if e.Amount != nil {
		amount = e.Amount.StringFixed(2)
	}
	var bankCode, bankName, bankCat any
	var bankConf any
	if e.Enrichment != nil {
		bankCode, bankName, bankCat = e.Enrichment.BankCode, e.Enrichment.BankName, e.Enrichment.Category
		bankConf = e.Enrichment.Confidence
	}
	var key any
	if e.Key != nil {
		key = e.Key.String()
	}

	tag, err := s.q.Exec(ctx, `
		INSERT INTO emails
			(message_id, sender, sender_name, subject, body, received_at,
			amount, currency, reference, account_ref, tx_instant, tx_type,
			extract_confidence, extract_method, is_alert,
			bank_code, bank_name, bank_category, bank_confidence,
			composite_key, ingested_at, updated_at)
		VALUES
			($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,now(),now())
		ON CONFLICT (message_id) DO NOTHING`,
		e.MessageID, e.Sender, e.SenderNm, e.Subject, e.Body, e.Received,
		amount, str.SQLNull(e.Currency), refOriginal(e.Reference), str.SQLNull(e.AccountRef),
		e.Instant, string(e.TxType),
		e.ExtractConfidence, string(e.ExtractMethod), e.IsAlert,
		bankCode, bankName, bankCat, bankConf,
		key,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ByID implements Storage
func (s *pg) ByID(ctx context.Context, id int64) (*domain.Email, error) {
	e, err := store.One(ctx, s.q, scanEmail, `SELECT `+emailCols+` FROM emails WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ByMessageID implements Storage
func (s *pg) ByMessageID(ctx context.Context, messageID string) (*domain.Email, error) {
	e, err := store.One(ctx, s.q, scanEmail,
		`SELECT `+emailCols+` FROM emails WHERE message_id = $1`, messageID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListUnmatched returns alert emails with no match row, oldest first.
// limit <= 0 means unbounded
func (s *pg) ListUnmatched(ctx context.Context, limit int) ([]domain.Email, error) {
	sql := `
		SELECT ` + emailCols + `
		FROM emails e
		WHERE e.processed = false
		  AND e.is_alert = true
		  AND e.parsing_error IS NULL
		  AND NOT EXISTS (SELECT 1 FROM matches m WHERE m.email_id = e.id)
		ORDER BY e.received_at ASC`
	if limit > 0 {
		return store.Many(ctx, s.q, scanEmail, sql+` LIMIT $1`, limit)
	}
	return store.Many(ctx, s.q, scanEmail, sql)
}

// MarkProcessed implements Storage. A nil parseErr marks the email done;
// a non-nil error records it and leaves the email unprocessed for a later cycle
func (s *pg) MarkProcessed(ctx context.Context, id int64, parseErr *string) error {
	return store.ExecOne(ctx, s.q, `
		UPDATE emails
		SET processed = ($2::text IS NULL), parsing_error = $2, updated_at = now()
		WHERE id = $1`,
		id, str.SQLNullPtr(parseErr),
	)
}

// DeleteProcessedBefore removes processed emails older than cutoff (retention)
func (s *pg) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		DELETE FROM emails WHERE processed = true AND received_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func refOriginal(r *canon.ReferenceBundle) any {
	if r == nil {
		return nil
	}
	return r.Original
}

// scanEmail rebuilds the canonical email from a row. Reference bundle,
// enrichment-dependent composite key and tokens are recomputed from the
// stored originals since canonicalization is pure
func scanEmail(r store.Row) (domain.Email, error) {
	var (
		e          domain.Email
		amount     *string
		currency   *string
		reference  *string
		accountRef *string
		instant    *time.Time
		txType     *string
		method     *string
		bankCode   *string
		bankName   *string
		bankCat    *string
		bankConf   *float64
	)
	if err := r.Scan(
		&e.ID, &e.MessageID, &e.Sender, &e.SenderNm, &e.Subject, &e.Body, &e.Received,
		&amount, &currency, &reference, &accountRef, &instant, &txType,
		&e.ExtractConfidence, &method, &e.IsAlert,
		&bankCode, &bankName, &bankCat, &bankConf,
		&e.Processed, &e.ParsingError, &e.IngestedAt, &e.UpdatedAt,
	); err != nil {
		return domain.Email{}, err
	}

	if amount != nil {
		if d, err := decimal.NewFromString(*amount); err == nil {
			d = d.Round(2)
			e.Amount = &d
		}
	}
	e.Currency = str.Deref(currency)
	e.AccountRef = str.Deref(accountRef)
	if instant != nil {
		utc := instant.UTC()
		e.Instant = &utc
	}
	e.TxType = canon.TxType(str.Deref(txType))
	e.ExtractMethod = canon.ExtractionMethod(str.Deref(method))
	if reference != nil {
		e.Reference = normalize.Reference(*reference)
	}
	if bankCode != nil {
		e.Enrichment = &canon.Enrichment{
			BankCode:   *bankCode,
			BankName:   str.Deref(bankName),
			Category:   str.Deref(bankCat),
			Confidence: derefFloat(bankConf),
		}
	}
	e.Key = normalize.Key(e.Amount, e.Currency, e.Instant, e.Reference, e.AccountRef)
	return e, nil
}

func derefFloat(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
